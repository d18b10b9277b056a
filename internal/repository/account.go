// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"facility-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const accountColumns = "user_id, balance, reputation, created_at, updated_at"

// AccountRepository handles account persistence. All balance mutations
// are single atomic UPDATE statements; callers never read-modify-write
// a balance themselves.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.UserID, &a.Balance, &a.Reputation, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create creates a new account with a zero balance.
func (r *AccountRepository) Create(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (user_id, balance, reputation, created_at, updated_at)
		VALUES ($1, 0, 0, NOW(), NOW())
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// GetByID retrieves an account by participant id.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetOrCreate retrieves an account, creating it lazily on first
// reference. Returns whether the account was newly created.
func (r *AccountRepository) GetOrCreate(ctx context.Context, userID int64) (*model.Account, bool, error) {
	a, err := r.GetByID(ctx, userID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	a, err = r.Create(ctx, userID)
	if err != nil {
		// Another request may have created the account concurrently.
		a, err = r.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return a, false, nil
	}
	return a, true, nil
}

// Adjust applies a signed delta to the balance in one atomic update.
// The downward side clamps at zero; positive deltas also raise
// reputation by the same amount. Returns the updated account.
func (r *AccountRepository) Adjust(ctx context.Context, userID int64, delta int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = GREATEST(balance + $2, 0),
		    reputation = reputation + CASE WHEN $2 > 0 THEN $2 ELSE 0 END,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return a, nil
}

// Withdraw removes an exact stake from the balance. Unlike Adjust it
// does not clamp: the update only applies when the balance covers the
// amount, otherwise ErrInsufficientFunds is returned and nothing moves.
func (r *AccountRepository) Withdraw(ctx context.Context, userID int64, amount int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either no account or not enough funds; the caller is
			// expected to have ensured the account exists.
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}
	return a, nil
}

// SetBalance sets the balance to an exact non-negative value.
// Used for admin operations only.
func (r *AccountRepository) SetBalance(ctx context.Context, userID int64, balance int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET balance = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID, balance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return a, nil
}

// SetReputation sets reputation to an exact non-negative value.
func (r *AccountRepository) SetReputation(ctx context.Context, userID int64, reputation int64) (*model.Account, error) {
	const query = `
		UPDATE accounts
		SET reputation = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(r.pool.QueryRow(ctx, query, userID, reputation))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to set reputation: %w", err)
	}
	return a, nil
}

// ResetAllReputation zeroes every account's reputation. This is the
// only operation that decreases reputation.
func (r *AccountRepository) ResetAllReputation(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `UPDATE accounts SET reputation = 0, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset reputation: %w", err)
	}
	return result.RowsAffected(), nil
}

// Transfer moves amount between two existing accounts under one
// transaction. Both legs commit or neither does. The debit leg uses
// the same guarded update as Withdraw.
func (r *AccountRepository) Transfer(ctx context.Context, fromID, toID, amount int64) (fromBalance, toBalance int64, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, fromID, amount).Scan(&fromBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrInsufficientFunds
		}
		return 0, 0, fmt.Errorf("failed to debit sender: %w", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance + $2,
		    reputation = reputation + $2,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, toID, amount).Scan(&toBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrAccountNotFound
		}
		return 0, 0, fmt.Errorf("failed to credit receiver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return fromBalance, toBalance, nil
}

// TopByBalance retrieves the top N accounts by balance.
func (r *AccountRepository) TopByBalance(ctx context.Context, limit int) ([]*model.Account, error) {
	return r.top(ctx, "balance", limit)
}

// TopByReputation retrieves the top N accounts by reputation.
func (r *AccountRepository) TopByReputation(ctx context.Context, limit int) ([]*model.Account, error) {
	return r.top(ctx, "reputation", limit)
}

func (r *AccountRepository) top(ctx context.Context, column string, limit int) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY ` + column + ` DESC, user_id ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// RankByReputation returns the 1-based leaderboard position of an
// account, breaking ties by lower user id.
func (r *AccountRepository) RankByReputation(ctx context.Context, userID int64) (int, error) {
	const query = `
		SELECT COUNT(*) + 1
		FROM accounts a, accounts me
		WHERE me.user_id = $1
		  AND (a.reputation > me.reputation
		       OR (a.reputation = me.reputation AND a.user_id < me.user_id))
	`

	var rank int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&rank); err != nil {
		return 0, fmt.Errorf("failed to rank account: %w", err)
	}
	return rank, nil
}

// Exists checks if an account with the given participant id exists.
func (r *AccountRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}
