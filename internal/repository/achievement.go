package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"facility-bot/internal/model"
)

// AchievementRepository persists earned achievements. Each achievement
// is earned at most once per participant.
type AchievementRepository struct {
	pool *pgxpool.Pool
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{pool: pool}
}

// Grant records an achievement for a participant. Returns true when
// the achievement is newly earned, false when it was already held.
func (r *AchievementRepository) Grant(ctx context.Context, userID int64, code string) (bool, error) {
	const query = `
		INSERT INTO achievements (user_id, code, earned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, code) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, userID, code)
	if err != nil {
		return false, fmt.Errorf("failed to grant achievement: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByUser returns every achievement a participant has earned,
// oldest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID int64) ([]model.Achievement, error) {
	const query = `
		SELECT user_id, code, earned_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY earned_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var earned []model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.UserID, &a.Code, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		earned = append(earned, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return earned, nil
}
