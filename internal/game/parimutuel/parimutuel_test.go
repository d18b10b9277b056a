package parimutuel

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
	"facility-bot/internal/pkg/lock"
)

type fakeLedger struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[int64]int64)}
}

func (f *fakeLedger) set(userID, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = balance
}

func (f *fakeLedger) get(userID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeLedger) Withdraw(_ context.Context, userID, amount int64, _, _ string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < amount {
		return nil, assert.AnError
	}
	f.balances[userID] -= amount
	return &model.Account{UserID: userID, Balance: f.balances[userID]}, nil
}

func (f *fakeLedger) Credit(_ context.Context, userID, amount int64, _, _ string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	return &model.Account{UserID: userID, Balance: f.balances[userID]}, nil
}

type fakeNotifier struct {
	closed chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{closed: make(chan string, 4)}
}

func (f *fakeNotifier) RoundClosed(_ int64, text string) {
	f.closed <- text
}

func newService(t *testing.T, cfg Config, ledger Ledger, notifier Notifier, seed int64) *Service {
	t.Helper()
	events := outbox.New(64, zerolog.Nop())
	return New(cfg, ledger, notifier, events, lock.NewKeyLock(), rand.New(rand.NewSource(seed)), zerolog.Nop())
}

func TestParseChoice(t *testing.T) {
	c, err := ParseChoice("17")
	require.NoError(t, err)
	assert.Equal(t, ChoiceSingle, c.Kind)
	assert.Equal(t, 17, c.Number)

	c, err = ParseChoice("ODD")
	require.NoError(t, err)
	assert.Equal(t, ChoiceParity, c.Kind)
	assert.True(t, c.Flag)

	c, err = ParseChoice("dozen2")
	require.NoError(t, err)
	assert.Equal(t, ChoiceDozen, c.Kind)
	assert.Equal(t, 2, c.Dozen)

	for _, bad := range []string{"37", "-1", "red", "", "dozen4"} {
		_, err := ParseChoice(bad)
		assert.ErrorIs(t, err, ErrInvalidChoice, "input %q", bad)
	}
}

func TestChoiceMatching(t *testing.T) {
	odd, _ := ParseChoice("odd")
	even, _ := ParseChoice("even")
	low, _ := ParseChoice("low")
	high, _ := ParseChoice("high")
	dozen1, _ := ParseChoice("dozen1")
	zero, _ := ParseChoice("0")

	assert.True(t, odd.Matches(7))
	assert.False(t, odd.Matches(8))
	assert.True(t, even.Matches(8))
	// Zero is the house edge: it pays no parity, half, or dozen bet.
	assert.False(t, odd.Matches(0))
	assert.False(t, even.Matches(0))
	assert.False(t, low.Matches(0))
	assert.False(t, dozen1.Matches(0))
	assert.True(t, zero.Matches(0))

	assert.True(t, low.Matches(18))
	assert.False(t, low.Matches(19))
	assert.True(t, high.Matches(19))
	assert.True(t, dozen1.Matches(12))
	assert.False(t, dozen1.Matches(13))
}

// Draw 7: an odd bet pays 2x, a straight-up 7 pays 36x. Draw 8 pays
// neither of them.
func TestSettleWorkedExample(t *testing.T) {
	oddChoice, _ := ParseChoice("odd")
	sevenChoice, _ := ParseChoice("7")

	makeRound := func(ledger *fakeLedger) *round {
		ledger.set(1, 0) // stakes already taken at bet time
		ledger.set(2, 0)
		return &round{
			channelID: 555,
			players:   map[int64]bool{1: true, 2: true},
			bets: []Bet{
				{UserID: 1, Choice: oddChoice, Amount: 100},
				{UserID: 2, Choice: sevenChoice, Amount: 100},
			},
		}
	}

	t.Run("draw 7", func(t *testing.T) {
		ledger := newFakeLedger()
		notifier := newFakeNotifier()
		s := newService(t, Config{RoundDuration: time.Minute}, ledger, notifier, 1)

		s.settle(makeRound(ledger), 7)

		assert.Equal(t, int64(200), ledger.get(1), "odd pays 2x")
		assert.Equal(t, int64(3600), ledger.get(2), "straight-up pays 36x")
	})

	t.Run("draw 8", func(t *testing.T) {
		ledger := newFakeLedger()
		notifier := newFakeNotifier()
		s := newService(t, Config{RoundDuration: time.Minute}, ledger, notifier, 1)

		s.settle(makeRound(ledger), 8)

		assert.Equal(t, int64(0), ledger.get(1))
		assert.Equal(t, int64(0), ledger.get(2))
	})
}

func TestPlaceOpensAndRejectsRepeat(t *testing.T) {
	ledger := newFakeLedger()
	notifier := newFakeNotifier()
	s := newService(t, Config{RoundDuration: time.Hour}, ledger, notifier, 1)

	choice, _ := ParseChoice("odd")
	ledger.set(1, 300)

	snap, err := s.Place(context.Background(), 555, 1, choice, 100)
	require.NoError(t, err)
	assert.True(t, snap.Opened)
	assert.Equal(t, int64(200), ledger.get(1))

	// Same player again: rejected, no funds moved.
	_, err = s.Place(context.Background(), 555, 1, choice, 100)
	assert.ErrorIs(t, err, ErrAlreadyBet)
	assert.Equal(t, int64(200), ledger.get(1))

	// A different player appends to the same round.
	ledger.set(2, 100)
	snap, err = s.Place(context.Background(), 555, 2, choice, 100)
	require.NoError(t, err)
	assert.False(t, snap.Opened)
	assert.Len(t, snap.Bets, 2)
}

func TestPlaceValidation(t *testing.T) {
	ledger := newFakeLedger()
	s := newService(t, Config{RoundDuration: time.Hour, MaxBet: 500}, ledger, newFakeNotifier(), 1)

	choice, _ := ParseChoice("even")

	_, err := s.Place(context.Background(), 555, 1, choice, 0)
	assert.ErrorIs(t, err, ErrInvalidBet)

	_, err = s.Place(context.Background(), 555, 1, choice, 501)
	assert.ErrorIs(t, err, ErrBetTooLarge)
}

func TestTimerClosesRoundAndReopens(t *testing.T) {
	ledger := newFakeLedger()
	notifier := newFakeNotifier()
	s := newService(t, Config{RoundDuration: 20 * time.Millisecond}, ledger, notifier, 1)

	choice, _ := ParseChoice("odd")
	ledger.set(1, 200)

	_, err := s.Place(context.Background(), 555, 1, choice, 100)
	require.NoError(t, err)

	select {
	case <-notifier.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("round never closed")
	}

	// The channel is free again: the same player can open a new round.
	snap, err := s.Place(context.Background(), 555, 1, choice, 100)
	require.NoError(t, err)
	assert.True(t, snap.Opened)
}
