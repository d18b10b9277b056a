// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"facility-bot/internal/model"
	"facility-bot/internal/repository"
)

// Common errors for ledger operations.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidTarget = errors.New("invalid transfer target")
)

// ErrInsufficientFunds is re-exported so callers need not import the
// repository package to classify a failed debit.
var ErrInsufficientFunds = repository.ErrInsufficientFunds

// LedgerService owns every balance mutation. Balances never go below
// zero, credits feed reputation, and each mutation appends an audit
// entry with a monotonically increasing sequence number.
//
// Audit writes are best-effort: the balance change is already
// committed when the entry is appended, so an append failure is
// logged and swallowed rather than rolled back.
type LedgerService struct {
	accounts *repository.AccountRepository
	ledger   *repository.LedgerRepository
	log      zerolog.Logger

	seq atomic.Int64
}

// NewLedgerService creates a LedgerService and recovers the audit
// sequence counter by scanning the most recent entries. scanDepth
// bounds the scan; entries older than that cannot hold the maximum
// sequence because sequences are assigned in insertion order.
func NewLedgerService(
	ctx context.Context,
	accounts *repository.AccountRepository,
	ledger *repository.LedgerRepository,
	scanDepth int,
	log zerolog.Logger,
) (*LedgerService, error) {
	s := &LedgerService{
		accounts: accounts,
		ledger:   ledger,
		log:      log.With().Str("component", "ledger").Logger(),
	}

	last, err := ledger.LastSequence(ctx, scanDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to recover audit sequence: %w", err)
	}
	s.seq.Store(last)

	return s, nil
}

// EnsureAccount ensures an account exists, creating one with a zero
// balance if necessary. Returns the account and whether it was newly
// created. New accounts get an audit entry marking their opening.
func (s *LedgerService) EnsureAccount(ctx context.Context, userID int64) (*model.Account, bool, error) {
	account, created, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}
	if created {
		s.record(ctx, userID, 0, account.Balance, model.KindInitial, "account opened")
	}
	return account, created, nil
}

// Account retrieves an account by participant ID.
func (s *LedgerService) Account(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accounts.GetByID(ctx, userID)
}

// Balance retrieves a participant's current balance.
func (s *LedgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return account.Balance, nil
}

// Credit adds amount to a participant's balance and reputation.
func (s *LedgerService) Credit(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.Adjust(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit: %w", err)
	}

	s.record(ctx, userID, amount, account.Balance, kind, reason)
	return account, nil
}

// Penalize deducts up to amount from a participant's balance,
// clamping at zero. Reputation is untouched. The audit entry records
// the requested deduction; the resulting balance shows how much
// actually moved.
func (s *LedgerService) Penalize(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.Adjust(ctx, userID, -amount)
	if err != nil {
		return nil, fmt.Errorf("failed to penalize: %w", err)
	}

	s.record(ctx, userID, -amount, account.Balance, kind, reason)
	return account, nil
}

// Withdraw deducts exactly amount from a participant's balance.
// Returns ErrInsufficientFunds without moving anything when the
// balance does not cover the amount. Bets go through here.
func (s *LedgerService) Withdraw(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.Withdraw(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	s.record(ctx, userID, -amount, account.Balance, kind, reason)
	return account, nil
}

// Transfer moves amount from one participant to another. The source
// must cover the full amount and the target must be a different,
// existing account. The transfer debits and credits atomically; the
// recipient's reputation grows by the received amount.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID, amount int64) (fromBalance, toBalance int64, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if fromID == toID {
		return 0, 0, ErrInvalidTarget
	}

	exists, err := s.accounts.Exists(ctx, toID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check transfer target: %w", err)
	}
	if !exists {
		return 0, 0, ErrInvalidTarget
	}

	fromBalance, toBalance, err = s.accounts.Transfer(ctx, fromID, toID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) || errors.Is(err, repository.ErrAccountNotFound) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("failed to transfer: %w", err)
	}

	reason := fmt.Sprintf("transfer to %d", toID)
	s.record(ctx, fromID, -amount, fromBalance, model.KindTransfer, reason)
	reason = fmt.Sprintf("transfer from %d", fromID)
	s.record(ctx, toID, amount, toBalance, model.KindTransfer, reason)

	return fromBalance, toBalance, nil
}

// SetBalance overwrites a participant's balance. Admin only.
func (s *LedgerService) SetBalance(ctx context.Context, userID, balance int64, reason string) (*model.Account, error) {
	if balance < 0 {
		return nil, ErrInvalidAmount
	}

	before, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}

	account, err := s.accounts.SetBalance(ctx, userID, balance)
	if err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}

	s.record(ctx, userID, account.Balance-before.Balance, account.Balance, model.KindAdminSet, reason)
	return account, nil
}

// SetReputation overwrites a participant's reputation. Admin only;
// together with the bulk reset these are the only paths that can
// lower reputation.
func (s *LedgerService) SetReputation(ctx context.Context, userID, reputation int64, reason string) (*model.Account, error) {
	if reputation < 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.accounts.SetReputation(ctx, userID, reputation)
	if err != nil {
		return nil, fmt.Errorf("failed to set reputation: %w", err)
	}

	s.record(ctx, userID, 0, account.Balance, model.KindAdminSet, reason)
	return account, nil
}

// ResetAllReputation zeroes every participant's reputation. This is
// the only path that lowers reputation. Returns how many accounts
// were touched.
func (s *LedgerService) ResetAllReputation(ctx context.Context) (int64, error) {
	affected, err := s.accounts.ResetAllReputation(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset reputation: %w", err)
	}
	return affected, nil
}

// History returns a participant's most recent audit entries.
func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	return s.ledger.ByUser(ctx, userID, limit)
}

// Note appends a zero-delta audit entry, used to mark outcomes that
// move no funds, like a forfeited stake at the end of a lost session.
func (s *LedgerService) Note(ctx context.Context, userID int64, kind, reason string) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("audit note skipped, balance unavailable")
		return
	}
	s.record(ctx, userID, 0, balance, kind, reason)
}

// record appends an audit entry with the next sequence number.
// Best-effort: failures are logged, never propagated.
func (s *LedgerService) record(ctx context.Context, userID, delta, resulting int64, kind, reason string) {
	entry := &model.LedgerEntry{
		Sequence:  s.seq.Add(1),
		UserID:    userID,
		Delta:     delta,
		Resulting: resulting,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Int64("user_id", userID).
			Int64("delta", delta).
			Str("kind", kind).
			Msg("audit append failed; balance change already committed")
	}
}
