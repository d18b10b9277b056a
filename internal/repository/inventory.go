package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnedItem represents one shop item held by a participant. Items are
// unique per owner; buying a duplicate is rejected at the service
// layer.
type OwnedItem struct {
	UserID     int64
	ItemID     string
	AcquiredAt time.Time
}

// InventoryRepository handles shop item ownership persistence.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a new InventoryRepository instance.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Add records ownership of an item. Returns false when the
// participant already owns it.
func (r *InventoryRepository) Add(ctx context.Context, userID int64, itemID string) (bool, error) {
	const query = `
		INSERT INTO user_items (user_id, item_id, acquired_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, item_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to add item: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Has checks whether the participant owns the item.
func (r *InventoryRepository) Has(ctx context.Context, userID int64, itemID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM user_items WHERE user_id = $1 AND item_id = $2)`

	var owned bool
	if err := r.pool.QueryRow(ctx, query, userID, itemID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check item ownership: %w", err)
	}
	return owned, nil
}

// List returns all items held by a participant, oldest first.
func (r *InventoryRepository) List(ctx context.Context, userID int64) ([]OwnedItem, error) {
	const query = `
		SELECT user_id, item_id, acquired_at
		FROM user_items
		WHERE user_id = $1
		ORDER BY acquired_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []OwnedItem
	for rows.Next() {
		var item OwnedItem
		if err := rows.Scan(&item.UserID, &item.ItemID, &item.AcquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Remove deletes an item from a participant's inventory.
func (r *InventoryRepository) Remove(ctx context.Context, userID int64, itemID string) error {
	const query = `DELETE FROM user_items WHERE user_id = $1 AND item_id = $2`

	_, err := r.pool.Exec(ctx, query, userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}
