// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"facility-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			reputation BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			sequence BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			delta BIGINT NOT NULL,
			resulting BIGINT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS user_items (
			user_id BIGINT NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			user_id BIGINT NOT NULL,
			code VARCHAR(64) NOT NULL,
			earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, code)
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// AccountRepository Tests
// ============================================================================

func TestAccountRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	account, err := repo.Create(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), account.UserID)
	assert.Equal(t, int64(0), account.Balance)
	assert.Equal(t, int64(0), account.Reputation)
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, 42)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = repo.Adjust(ctx, 42, 100)
	require.NoError(t, err)

	second, created, err := repo.GetOrCreate(ctx, 42)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, int64(100), second.Balance)
}

func TestAccountRepository_Adjust_ClampsAtZero(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	account, err := repo.Adjust(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.Balance)

	// Deduction larger than the balance clamps to zero instead of
	// going negative.
	account, err = repo.Adjust(ctx, 1, -200)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)
}

func TestAccountRepository_Adjust_ReputationOnlyOnCredit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 2)
	require.NoError(t, err)

	account, err := repo.Adjust(ctx, 2, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), account.Reputation)

	account, err = repo.Adjust(ctx, 2, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.Balance)
	assert.Equal(t, int64(300), account.Reputation, "debits must not reduce reputation")
}

func TestAccountRepository_Withdraw(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 3)
	require.NoError(t, err)
	_, err = repo.Adjust(ctx, 3, 100)
	require.NoError(t, err)

	account, err := repo.Withdraw(ctx, 3, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), account.Balance)

	_, err = repo.Withdraw(ctx, 3, 41)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	account, err = repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(40), account.Balance, "failed withdrawal must not move funds")
}

func TestAccountRepository_Transfer(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 10)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 11)
	require.NoError(t, err)
	_, err = repo.Adjust(ctx, 10, 500)
	require.NoError(t, err)

	fromBalance, toBalance, err := repo.Transfer(ctx, 10, 11, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), fromBalance)
	assert.Equal(t, int64(200), toBalance)

	to, err := repo.GetByID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(200), to.Reputation, "received transfer counts toward reputation")
}

func TestAccountRepository_Transfer_Insufficient(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 20)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 21)
	require.NoError(t, err)
	_, err = repo.Adjust(ctx, 20, 50)
	require.NoError(t, err)

	_, _, err = repo.Transfer(ctx, 20, 21, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	from, err := repo.GetByID(ctx, 20)
	require.NoError(t, err)
	to, err := repo.GetByID(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, int64(50), from.Balance)
	assert.Equal(t, int64(0), to.Balance)
}

func TestAccountRepository_ResetAllReputation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	for _, id := range []int64{30, 31} {
		_, err := repo.Create(ctx, id)
		require.NoError(t, err)
		_, err = repo.Adjust(ctx, id, 100)
		require.NoError(t, err)
	}

	affected, err := repo.ResetAllReputation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	for _, id := range []int64{30, 31} {
		account, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(0), account.Reputation)
		assert.Equal(t, int64(100), account.Balance, "reset touches reputation only")
	}
}

func TestAccountRepository_Rankings(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	amounts := map[int64]int64{100: 300, 101: 500, 102: 100}
	for id, amount := range amounts {
		_, err := repo.Create(ctx, id)
		require.NoError(t, err)
		_, err = repo.Adjust(ctx, id, amount)
		require.NoError(t, err)
	}

	top, err := repo.TopByBalance(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(101), top[0].UserID)
	assert.Equal(t, int64(100), top[1].UserID)

	rank, err := repo.RankByReputation(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
}

// ============================================================================
// LedgerRepository Tests
// ============================================================================

func TestLedgerRepository_AppendAndLastSequence(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountRepository(pool)
	ledger := NewLedgerRepository(pool)
	ctx := context.Background()

	_, err := accounts.Create(ctx, 7)
	require.NoError(t, err)

	seq, err := ledger.LastSequence(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq, "empty ledger starts at zero")

	for i := int64(1); i <= 3; i++ {
		err := ledger.Append(ctx, &model.LedgerEntry{
			Sequence:  i,
			UserID:    7,
			Delta:     100,
			Resulting: 100 * i,
			Kind:      model.KindWork,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	seq, err = ledger.LastSequence(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestLedgerRepository_ByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := NewLedgerRepository(pool)
	ctx := context.Background()

	err := ledger.Append(ctx, &model.LedgerEntry{
		Sequence: 1, UserID: 8, Delta: 50, Resulting: 50,
		Kind: model.KindWork, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	err = ledger.Append(ctx, &model.LedgerEntry{
		Sequence: 2, UserID: 9, Delta: 70, Resulting: 70,
		Kind: model.KindWork, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	entries, err := ledger.ByUser(ctx, 8, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(50), entries[0].Delta)
}

func TestLedgerRepository_DailyNet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ledger := NewLedgerRepository(pool)
	ctx := context.Background()

	now := time.Now()
	// Game entries count toward the daily net; work entries do not.
	entries := []*model.LedgerEntry{
		{Sequence: 1, UserID: 50, Delta: -100, Resulting: 0, Kind: model.KindCrystalBet, CreatedAt: now},
		{Sequence: 2, UserID: 50, Delta: 250, Resulting: 250, Kind: model.KindCrystalWin, CreatedAt: now},
		{Sequence: 3, UserID: 51, Delta: -80, Resulting: 0, Kind: model.KindRouletteBet, CreatedAt: now},
		{Sequence: 4, UserID: 50, Delta: 500, Resulting: 750, Kind: model.KindWork, CreatedAt: now},
	}
	for _, e := range entries {
		require.NoError(t, ledger.Append(ctx, e))
	}

	ranks, err := ledger.DailyNet(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, ranks, 2)
	assert.Equal(t, int64(50), ranks[0].UserID)
	assert.Equal(t, int64(150), ranks[0].NetProfit)
	assert.Equal(t, int64(51), ranks[1].UserID)
	assert.Equal(t, int64(-80), ranks[1].NetProfit)
}

// ============================================================================
// InventoryRepository Tests
// ============================================================================

func TestInventoryRepository_AddDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInventoryRepository(pool)
	ctx := context.Background()

	added, err := repo.Add(ctx, 60, "keycard_2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, 60, "keycard_2")
	require.NoError(t, err)
	assert.False(t, added, "second purchase of the same item is a no-op")

	owned, err := repo.Has(ctx, 60, "keycard_2")
	require.NoError(t, err)
	assert.True(t, owned)

	items, err := repo.List(ctx, 60)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// ============================================================================
// AchievementRepository Tests
// ============================================================================

func TestAchievementRepository_GrantOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAchievementRepository(pool)
	ctx := context.Background()

	earned, err := repo.Grant(ctx, 70, "first_win")
	require.NoError(t, err)
	assert.True(t, earned)

	earned, err = repo.Grant(ctx, 70, "first_win")
	require.NoError(t, err)
	assert.False(t, earned)

	list, err := repo.ListByUser(ctx, 70)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first_win", list[0].Code)
}
