package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"facility-bot/internal/config"
	"facility-bot/internal/model"
)

// ErrWorkOnCooldown is returned when a participant works again before
// the cooldown expires.
var ErrWorkOnCooldown = errors.New("work is on cooldown")

// WorkOutcome describes the result of a shift.
type WorkOutcome struct {
	Amount    int64 // positive reward or negative penalty as requested
	Balance   int64 // balance after the mutation
	Succeeded bool  // false only for a failed risky shift
}

// WorkService hands out shift rewards. Cooldowns are tracked in
// memory only; a restart forgives them, which is acceptable for a
// 4-hour window.
type WorkService struct {
	ledger *LedgerService
	cfg    config.EconomyConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	lastWork map[int64]time.Time
}

// NewWorkService creates a WorkService. rng is injected so tests can
// pin outcomes.
func NewWorkService(ledger *LedgerService, cfg config.EconomyConfig, rng *rand.Rand) *WorkService {
	return &WorkService{
		ledger:   ledger,
		cfg:      cfg,
		rng:      rng,
		lastWork: make(map[int64]time.Time),
	}
}

// Work performs a safe shift: a guaranteed reward drawn uniformly
// from the configured range. Returns ErrWorkOnCooldown with the
// remaining wait when called too early.
func (s *WorkService) Work(ctx context.Context, userID int64) (*WorkOutcome, time.Duration, error) {
	if remaining := s.startShift(userID); remaining > 0 {
		return nil, remaining, ErrWorkOnCooldown
	}

	reward := s.drawRange(s.cfg.WorkRewardMin, s.cfg.WorkRewardMax)
	account, err := s.ledger.Credit(ctx, userID, reward, model.KindWork, "shift reward")
	if err != nil {
		s.forgiveShift(userID)
		return nil, 0, fmt.Errorf("failed to pay shift: %w", err)
	}

	return &WorkOutcome{Amount: reward, Balance: account.Balance, Succeeded: true}, 0, nil
}

// RiskyWork performs a hazardous shift: with the configured chance it
// pays more than a safe shift, otherwise it costs a penalty. The
// penalty clamps at a zero balance like any other deduction.
func (s *WorkService) RiskyWork(ctx context.Context, userID int64) (*WorkOutcome, time.Duration, error) {
	if remaining := s.startShift(userID); remaining > 0 {
		return nil, remaining, ErrWorkOnCooldown
	}

	if s.roll() < s.cfg.RiskyWorkChance {
		reward := s.drawRange(s.cfg.RiskyWorkRewardMin, s.cfg.RiskyWorkRewardMax)
		account, err := s.ledger.Credit(ctx, userID, reward, model.KindWork, "hazardous shift reward")
		if err != nil {
			s.forgiveShift(userID)
			return nil, 0, fmt.Errorf("failed to pay hazardous shift: %w", err)
		}
		return &WorkOutcome{Amount: reward, Balance: account.Balance, Succeeded: true}, 0, nil
	}

	penalty := s.drawRange(s.cfg.RiskyWorkPenaltyMin, s.cfg.RiskyWorkPenaltyMax)
	account, err := s.ledger.Penalize(ctx, userID, penalty, model.KindWork, "hazardous shift incident")
	if err != nil {
		s.forgiveShift(userID)
		return nil, 0, fmt.Errorf("failed to apply shift penalty: %w", err)
	}
	return &WorkOutcome{Amount: -penalty, Balance: account.Balance, Succeeded: false}, 0, nil
}

// startShift claims the cooldown slot. Returns the remaining wait
// when the participant is still cooling down, zero when the shift may
// proceed.
func (s *WorkService) startShift(userID int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if last, ok := s.lastWork[userID]; ok {
		if remaining := s.cfg.WorkCooldown - now.Sub(last); remaining > 0 {
			return remaining
		}
	}
	s.lastWork[userID] = now
	return 0
}

// forgiveShift releases a claimed cooldown slot after a failed payout
// so the participant can retry.
func (s *WorkService) forgiveShift(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastWork, userID)
}

// roll draws the hazardous-shift success roll. Shifts run on
// concurrent handler goroutines and the rand source is not
// goroutine-safe, so it gets its own guard.
func (s *WorkService) roll() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *WorkService) drawRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return min + s.rng.Int63n(max-min+1)
}
