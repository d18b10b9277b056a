package fixedstep

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func candyConfig() Config {
	return Config{
		PreTakenWeights: []float64{0.3, 0.5, 0.2},
		Multipliers:     map[int]float64{1: 1.25, 2: 2.99},
		MaxBet:          100000,
	}
}

func newMachine(t *testing.T, seed int64) *Machine {
	t.Helper()
	m, err := New(candyConfig(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return m
}

func TestNewRejectsBadWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := New(Config{PreTakenWeights: []float64{1, 1}}, rng)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = New(Config{PreTakenWeights: []float64{1, -1, 1}}, rng)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = New(Config{PreTakenWeights: []float64{0, 0, 0}}, rng)
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestStartHiddenWithinRange(t *testing.T) {
	m := newMachine(t, 42)

	seen := make(map[int64]int)
	for i := 0; i < 1000; i++ {
		s, err := m.Start(100)
		require.NoError(t, err)
		require.GreaterOrEqual(t, s.Hidden, int64(0))
		require.LessOrEqual(t, s.Hidden, int64(2))
		seen[s.Hidden]++
	}

	// All three pre-taken counts should occur with these weights.
	assert.Len(t, seen, 3)
	// The middle weight dominates.
	assert.Greater(t, seen[1], seen[0])
	assert.Greater(t, seen[1], seen[2])
}

func TestTakeCrossingThresholdLoses(t *testing.T) {
	m := newMachine(t, 1)

	// Two steps already gone: the first take loses.
	result := m.Take(State{Bet: 100, Taken: 0, Hidden: 2})
	assert.True(t, result.Lost)

	// One gone: first take survives, second loses.
	result = m.Take(State{Bet: 100, Taken: 0, Hidden: 1})
	require.False(t, result.Lost)
	result = m.Take(result.State)
	assert.True(t, result.Lost)

	// None gone: two takes survive, third loses.
	s := State{Bet: 100, Taken: 0, Hidden: 0}
	for i := 0; i < 2; i++ {
		result = m.Take(s)
		require.False(t, result.Lost, "take %d", i+1)
		s = result.State
	}
	result = m.Take(s)
	assert.True(t, result.Lost)
}

func TestMultiplierTable(t *testing.T) {
	m := newMachine(t, 1)

	assert.Equal(t, 1.0, m.Multiplier(State{Bet: 100, Taken: 0}))
	assert.Equal(t, 1.25, m.Multiplier(State{Bet: 100, Taken: 1}))
	assert.Equal(t, 2.99, m.Multiplier(State{Bet: 100, Taken: 2}))
	// Beyond the table: last defined step.
	assert.Equal(t, 2.99, m.Multiplier(State{Bet: 100, Taken: 5}))
}

func TestPayoutFloors(t *testing.T) {
	m := newMachine(t, 1)

	assert.Equal(t, int64(125), m.Payout(State{Bet: 100, Taken: 1}))
	assert.Equal(t, int64(299), m.Payout(State{Bet: 100, Taken: 2}))
	assert.Equal(t, int64(2), m.Payout(State{Bet: 2, Taken: 1}), "floor(2 * 1.25) = 2")
	assert.Equal(t, int64(100), m.Payout(State{Bet: 100, Taken: 0}), "leaving immediately returns the stake")
}

func TestStateFieldRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hidden := rapid.Int64Range(0, 2).Draw(t, "hidden")
		taken := rapid.Int64Range(0, 2-hidden).Draw(t, "taken")
		s := State{
			Bet:    rapid.Int64Range(1, 1000000).Draw(t, "bet"),
			Taken:  taken,
			Hidden: hidden,
		}

		got, err := StateFromFields(s.Fields())
		if err != nil {
			t.Fatalf("round trip rejected valid state: %v", err)
		}
		if got != s {
			t.Fatalf("round trip changed state: %+v != %+v", got, s)
		}
	})
}

func TestStateFromFieldsRejectsImplausible(t *testing.T) {
	cases := [][]int64{
		{0, 0, 0},   // zero bet
		{100, -1, 0},
		{100, 0, -1},
		{100, 0, 3}, // hidden at the threshold
		{100, 2, 1}, // already past the threshold
		{100, 0},    // wrong arity
	}
	for _, fields := range cases {
		_, err := StateFromFields(fields)
		assert.ErrorIs(t, err, ErrInvalidState, "fields %v", fields)
	}
}
