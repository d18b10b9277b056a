// Package progressive implements the "raise or cash out" session
// machine behind the crystallization and cognitive climb games. A
// session is a linear chain of climbing steps with monotonically
// increasing risk and reward; it ends when a loss roll hits or the
// player stops. State lives entirely in the hosting message's token,
// never on the server.
package progressive

import (
	"errors"
	"math/rand"
	"sync"
)

// Basis-point scale for multiplier and risk. State round-trips
// through an integer codec, so fractional values are carried as
// basis points: 10000 = multiplier 1.00 = risk 100%.
const bpScale = 10000

// maxMultiplierBP bounds a decoded multiplier; anything above this is
// a forged or corrupted token, not a playable session.
const maxMultiplierBP = 1000 * bpScale

// Machine errors.
var (
	ErrInvalidBet   = errors.New("bet must be positive")
	ErrBetTooLarge  = errors.New("bet exceeds maximum")
	ErrInvalidState = errors.New("session state is not plausible")
)

// Config parameterizes one progressive game instance. When the risk
// increment range is empty the risk stays fixed at InitialRisk and
// the multiplier increment is drawn independently from its own range;
// otherwise the increments are linked: the fractional position of the
// drawn risk increment inside its range picks the same fractional
// position inside the multiplier increment range, so a riskier step
// is rewarded proportionally.
type Config struct {
	Name             string
	InitialRisk      float64
	InitialMultMin   float64
	InitialMultMax   float64
	RiskIncrementMin float64
	RiskIncrementMax float64
	MultIncrementMin float64
	MultIncrementMax float64
	MaxBet           int64
}

// State is one session's full state between turns. It is encoded
// into the message's controls and reconstructed on every action.
type State struct {
	Bet          int64
	MultiplierBP int64
	RiskBP       int64
}

// Multiplier returns the payout multiplier as a float.
func (s State) Multiplier() float64 {
	return float64(s.MultiplierBP) / bpScale
}

// Risk returns the loss probability in [0, 1].
func (s State) Risk() float64 {
	return float64(s.RiskBP) / bpScale
}

// Payout is the amount credited on cash-out: floor(bet * multiplier).
// Integer arithmetic, no float rounding drift.
func (s State) Payout() int64 {
	return s.Bet * s.MultiplierBP / bpScale
}

// Fields flattens the state for the codec.
func (s State) Fields() []int64 {
	return []int64{s.Bet, s.MultiplierBP, s.RiskBP}
}

// StateFromFields rebuilds a State from decoded codec fields and
// rejects values no legitimate session could hold.
func StateFromFields(fields []int64) (State, error) {
	if len(fields) != 3 {
		return State{}, ErrInvalidState
	}
	s := State{Bet: fields[0], MultiplierBP: fields[1], RiskBP: fields[2]}
	if s.Bet <= 0 || s.MultiplierBP <= 0 || s.MultiplierBP > maxMultiplierBP {
		return State{}, ErrInvalidState
	}
	if s.RiskBP < 0 || s.RiskBP > bpScale {
		return State{}, ErrInvalidState
	}
	return s, nil
}

// StepResult is the outcome of one raise.
type StepResult struct {
	Lost  bool
	State State // updated state when survived; the pre-step state when lost
}

// Machine runs progressive sessions for one game instance. Safe for
// concurrent use; the rand source is guarded.
type Machine struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Machine. rng is injected so tests can pin rolls.
func New(cfg Config, rng *rand.Rand) *Machine {
	return &Machine{cfg: cfg, rng: rng}
}

// Name returns the game instance name.
func (m *Machine) Name() string {
	return m.cfg.Name
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

// Start opens a session: initial multiplier drawn from the configured
// range, risk at its configured starting point.
func (m *Machine) Start(bet int64) (State, error) {
	if err := m.ValidateBet(bet); err != nil {
		return State{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mult := m.uniform(m.cfg.InitialMultMin, m.cfg.InitialMultMax)
	return State{
		Bet:          bet,
		MultiplierBP: toBP(mult),
		RiskBP:       toBP(m.cfg.InitialRisk),
	}, nil
}

// Raise plays one climbing step: a loss roll against the current
// risk, then on survival a linked increment to risk and multiplier.
// Multiplier and risk never decrease across surviving steps.
func (m *Machine) Raise(s State) StepResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() < s.Risk() {
		return StepResult{Lost: true, State: s}
	}

	var riskInc, multInc float64
	if m.cfg.RiskIncrementMax > m.cfg.RiskIncrementMin {
		riskInc = m.uniform(m.cfg.RiskIncrementMin, m.cfg.RiskIncrementMax)
		frac := (riskInc - m.cfg.RiskIncrementMin) / (m.cfg.RiskIncrementMax - m.cfg.RiskIncrementMin)
		multInc = m.cfg.MultIncrementMin + frac*(m.cfg.MultIncrementMax-m.cfg.MultIncrementMin)
	} else {
		multInc = m.uniform(m.cfg.MultIncrementMin, m.cfg.MultIncrementMax)
	}

	next := State{
		Bet:          s.Bet,
		MultiplierBP: s.MultiplierBP + toBP(multInc),
		RiskBP:       s.RiskBP + toBP(riskInc),
	}
	if next.RiskBP > bpScale {
		next.RiskBP = bpScale
	}
	return StepResult{State: next}
}

// uniform draws from [min, max). Callers hold m.mu.
func (m *Machine) uniform(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + m.rng.Float64()*(max-min)
}

func toBP(v float64) int64 {
	return int64(v * bpScale)
}
