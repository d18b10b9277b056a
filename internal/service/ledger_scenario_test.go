// End-to-end economy scenario against a real PostgreSQL container.
package service

import (
	"context"
	"math/rand"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"facility-bot/internal/game/progressive"
	"facility-bot/internal/model"
	"facility-bot/internal/repository"
)

func setupScenarioDB(t *testing.T) *pgxpool.Pool {
	if err := exec.Command("docker", "info").Run(); err != nil {
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
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, stmt := range []string{
		`CREATE TABLE accounts (
			user_id BIGINT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			reputation BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE ledger_entries (
			sequence BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			delta BIGINT NOT NULL,
			resulting BIGINT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	} {
		_, err = pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	return pool
}

// A full progressive session: open with a 100 stake from a 500
// balance, survive two raises, cash out. The final balance must be
// exactly 400 + floor(100 * multiplier), with one debit and one
// credit entry in the audit trail.
func TestProgressiveSessionSettlement(t *testing.T) {
	pool := setupScenarioDB(t)
	ctx := context.Background()

	accounts := repository.NewAccountRepository(pool)
	entries := repository.NewLedgerRepository(pool)
	ledger, err := NewLedgerService(ctx, accounts, entries, 100, zerolog.Nop())
	require.NoError(t, err)

	const userID = int64(77)
	_, _, err = ledger.EnsureAccount(ctx, userID)
	require.NoError(t, err)
	_, err = ledger.SetBalance(ctx, userID, 500, "scenario opening balance")
	require.NoError(t, err)

	machine := progressive.New(progressive.Config{
		Name:             "crystal",
		InitialRisk:      0.05,
		InitialMultMin:   0.90,
		InitialMultMax:   0.99,
		RiskIncrementMin: 0.07,
		RiskIncrementMax: 0.16,
		MultIncrementMin: 0.11,
		MultIncrementMax: 0.19,
	}, rand.New(rand.NewSource(time.Now().UnixNano())))

	// Find a run that survives two raises; only the surviving run
	// touches the ledger.
	var state progressive.State
	survived := false
	for attempt := 0; attempt < 200 && !survived; attempt++ {
		s, err := machine.Start(100)
		require.NoError(t, err)
		first := machine.Raise(s)
		if first.Lost {
			continue
		}
		second := machine.Raise(first.State)
		if second.Lost {
			continue
		}
		state = second.State
		survived = true
	}
	require.True(t, survived, "two consecutive survivals should occur within 200 attempts")

	account, err := ledger.Withdraw(ctx, userID, 100, model.KindCrystalBet, "crystallization stake")
	require.NoError(t, err)
	assert.Equal(t, int64(400), account.Balance)

	payout := state.Payout()
	account, err = ledger.Credit(ctx, userID, payout, model.KindCrystalWin, "crystallization cash-out")
	require.NoError(t, err)
	assert.Equal(t, 400+payout, account.Balance)

	history, err := ledger.History(ctx, userID, 50)
	require.NoError(t, err)

	var debits, credits int
	for _, e := range history {
		switch e.Kind {
		case model.KindCrystalBet:
			debits++
			assert.Equal(t, int64(-100), e.Delta)
		case model.KindCrystalWin:
			credits++
			assert.Equal(t, payout, e.Delta)
		}
	}
	assert.Equal(t, 1, debits, "exactly one entry for the stake")
	assert.Equal(t, 1, credits, "exactly one entry for the cash-out")
}
