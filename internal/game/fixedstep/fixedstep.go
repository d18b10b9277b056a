// Package fixedstep implements the candy bowl game: a short session
// over a shared pool of three steps, some of which are already gone
// before the player's first turn. Taking one more step than the pool
// allows loses the stake; leaving settles the current multiplier.
// Like the progressive games, state round-trips through the message
// token and has no server-side owner.
package fixedstep

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
)

const bpScale = 10000

// lossThreshold is the pool size: hidden plus taken steps reaching it
// loses the session.
const lossThreshold = 3

// Machine errors.
var (
	ErrInvalidBet     = errors.New("bet must be positive")
	ErrBetTooLarge    = errors.New("bet exceeds maximum")
	ErrInvalidState   = errors.New("session state is not plausible")
	ErrInvalidWeights = errors.New("pre-taken weights must cover 0..2")
)

// Config parameterizes the candy game. PreTakenWeights index i is the
// relative weight of i steps being gone before the first turn.
// Multipliers maps taken-step counts to payout multipliers; counts
// beyond the table fall back to the highest defined count.
type Config struct {
	PreTakenWeights []float64
	Multipliers     map[int]float64
	MaxBet          int64
}

// State is one session's full state between turns.
type State struct {
	Bet    int64
	Taken  int64
	Hidden int64
}

// Fields flattens the state for the codec.
func (s State) Fields() []int64 {
	return []int64{s.Bet, s.Taken, s.Hidden}
}

// StateFromFields rebuilds a State from decoded codec fields and
// rejects values no legitimate session could hold.
func StateFromFields(fields []int64) (State, error) {
	if len(fields) != 3 {
		return State{}, ErrInvalidState
	}
	s := State{Bet: fields[0], Taken: fields[1], Hidden: fields[2]}
	if s.Bet <= 0 || s.Taken < 0 || s.Hidden < 0 || s.Hidden >= lossThreshold {
		return State{}, ErrInvalidState
	}
	if s.Hidden+s.Taken >= lossThreshold {
		// A lost session never re-renders controls; a token claiming
		// to be past the threshold is forged.
		return State{}, ErrInvalidState
	}
	return s, nil
}

// StepResult is the outcome of one take.
type StepResult struct {
	Lost  bool
	State State
}

// Machine runs candy sessions. Safe for concurrent use.
type Machine struct {
	cfg         Config
	totalWeight float64
	maxStep     int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Machine. Returns ErrInvalidWeights unless the weight
// table has one entry per possible pre-taken count.
func New(cfg Config, rng *rand.Rand) (*Machine, error) {
	if len(cfg.PreTakenWeights) != lossThreshold {
		return nil, ErrInvalidWeights
	}
	var total float64
	for _, w := range cfg.PreTakenWeights {
		if w < 0 {
			return nil, ErrInvalidWeights
		}
		total += w
	}
	if total <= 0 {
		return nil, ErrInvalidWeights
	}

	maxStep := 0
	for step := range cfg.Multipliers {
		if step > maxStep {
			maxStep = step
		}
	}

	return &Machine{cfg: cfg, totalWeight: total, maxStep: maxStep, rng: rng}, nil
}

// MaxBet returns the maximum stake, zero meaning unlimited.
func (m *Machine) MaxBet() int64 {
	return m.cfg.MaxBet
}

// ValidateBet checks a stake before the session opens.
func (m *Machine) ValidateBet(bet int64) error {
	if bet <= 0 {
		return ErrInvalidBet
	}
	if m.cfg.MaxBet > 0 && bet > m.cfg.MaxBet {
		return ErrBetTooLarge
	}
	return nil
}

// Start opens a session with a weighted draw of already-consumed
// steps. The draw stays hidden from the player until the session
// ends.
func (m *Machine) Start(bet int64) (State, error) {
	if err := m.ValidateBet(bet); err != nil {
		return State{}, err
	}

	m.mu.Lock()
	roll := m.rng.Float64() * m.totalWeight
	m.mu.Unlock()

	hidden := int64(len(m.cfg.PreTakenWeights) - 1)
	for i, w := range m.cfg.PreTakenWeights {
		if roll < w {
			hidden = int64(i)
			break
		}
		roll -= w
	}

	return State{Bet: bet, Taken: 0, Hidden: hidden}, nil
}

// Take consumes one more step. Crossing the pool size loses the
// stake; otherwise the session continues with the new count.
func (m *Machine) Take(s State) StepResult {
	next := State{Bet: s.Bet, Taken: s.Taken + 1, Hidden: s.Hidden}
	if next.Hidden+next.Taken >= lossThreshold {
		return StepResult{Lost: true, State: next}
	}
	return StepResult{State: next}
}

// Multiplier returns the payout multiplier for the current taken
// count. Counts without a table entry use the highest defined count;
// zero steps pay the stake back unchanged.
func (m *Machine) Multiplier(s State) float64 {
	if s.Taken == 0 {
		return 1.0
	}
	if mult, ok := m.cfg.Multipliers[int(s.Taken)]; ok {
		return mult
	}
	if mult, ok := m.cfg.Multipliers[m.maxStep]; ok && s.Taken > int64(m.maxStep) {
		return mult
	}
	return 1.0
}

// Payout is the amount credited on leaving: floor(bet * multiplier).
func (m *Machine) Payout(s State) int64 {
	return s.Bet * toBP(m.Multiplier(s)) / bpScale
}

// Steps returns the defined multiplier steps in ascending order, for
// display.
func (m *Machine) Steps() []int {
	steps := make([]int, 0, len(m.cfg.Multipliers))
	for step := range m.cfg.Multipliers {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps
}

func toBP(v float64) int64 {
	return int64(v * bpScale)
}
