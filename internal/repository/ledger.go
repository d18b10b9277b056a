package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"facility-bot/internal/model"
)

// LedgerRepository handles the append-only audit trail. Entries are
// never mutated or deleted.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append writes one audit record.
func (r *LedgerRepository) Append(ctx context.Context, e *model.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries (sequence, user_id, delta, resulting, kind, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.pool.Exec(ctx, query, e.Sequence, e.UserID, e.Delta, e.Resulting, e.Kind, e.Reason)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// LastSequence recovers the highest sequence number by scanning the
// most recent entries, mirroring how the audit channel is replayed at
// startup. Returns 0 for an empty ledger.
func (r *LedgerRepository) LastSequence(ctx context.Context, scanDepth int) (int64, error) {
	if scanDepth <= 0 {
		scanDepth = 100
	}
	const query = `
		SELECT COALESCE(MAX(sequence), 0)
		FROM (SELECT sequence FROM ledger_entries ORDER BY created_at DESC LIMIT $1) recent
	`

	var last int64
	if err := r.pool.QueryRow(ctx, query, scanDepth).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to recover ledger sequence: %w", err)
	}
	return last, nil
}

// ByUser retrieves a participant's entries, newest first.
func (r *LedgerRepository) ByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT sequence, user_id, delta, resulting, kind, reason, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(&e.Sequence, &e.UserID, &e.Delta, &e.Resulting, &e.Kind, &e.Reason, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// DailyNet aggregates each participant's net game profit for a date,
// most profitable first. Only game kinds count; transfers and work
// rewards are excluded.
func (r *LedgerRepository) DailyNet(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT user_id, COALESCE(SUM(delta), 0) AS net_profit
		FROM ledger_entries
		WHERE kind = ANY($1)
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY user_id
		ORDER BY net_profit DESC
		LIMIT $4
	`
	return r.dailyQuery(ctx, query, date, limit)
}

// DailyWinners returns participants with a positive net for the date,
// most profitable first.
func (r *LedgerRepository) DailyWinners(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT user_id, COALESCE(SUM(delta), 0) AS net_profit
		FROM ledger_entries
		WHERE kind = ANY($1)
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY user_id
		HAVING SUM(delta) > 0
		ORDER BY net_profit DESC
		LIMIT $4
	`
	return r.dailyQuery(ctx, query, date, limit)
}

// DailyLosers returns participants with a negative net for the date,
// biggest loss first.
func (r *LedgerRepository) DailyLosers(ctx context.Context, date time.Time, limit int) ([]*model.DailyRank, error) {
	const query = `
		SELECT user_id, COALESCE(SUM(delta), 0) AS net_profit
		FROM ledger_entries
		WHERE kind = ANY($1)
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY user_id
		HAVING SUM(delta) < 0
		ORDER BY net_profit ASC
		LIMIT $4
	`
	return r.dailyQuery(ctx, query, date, limit)
}

func (r *LedgerRepository) dailyQuery(ctx context.Context, query string, date time.Time, limit int) ([]*model.DailyRank, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, query, model.GameKinds(), startOfDay, endOfDay, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily net: %w", err)
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		if err := rows.Scan(&rank.UserID, &rank.NetProfit); err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily net: %w", err)
	}
	return ranks, nil
}
