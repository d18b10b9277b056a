// Package main is the entry point for the facility bot.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"facility-bot/internal/config"
	"facility-bot/internal/game/fixedstep"
	"facility-bot/internal/game/lobby"
	"facility-bot/internal/game/parimutuel"
	"facility-bot/internal/game/progressive"
	"facility-bot/internal/gateway"
	"facility-bot/internal/handler"
	"facility-bot/internal/interaction"
	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
	"facility-bot/internal/pkg/db"
	"facility-bot/internal/pkg/lock"
	"facility-bot/internal/repository"
	"facility-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	inventoryRepo := repository.NewInventoryRepository(dbPool.Pool)
	achievementRepo := repository.NewAchievementRepository(dbPool.Pool)

	// Initialize services. The ledger service recovers its audit
	// sequence from the newest entries before anything can write.
	ledgerService, err := service.NewLedgerService(ctx, accountRepo, ledgerRepo, cfg.Economy.AuditScanDepth, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger service")
	}

	workService := service.NewWorkService(ledgerService, cfg.Economy, newRNG())
	rankingService := service.NewRankingService(accountRepo, ledgerRepo, time.Local)

	// Shared per-key locks for session registries and purchases
	keyLock := lock.NewKeyLock()

	shopService := service.NewShopService(ledgerService, inventoryRepo, keyLock)
	achievementService := service.NewAchievementService(achievementRepo, ledgerService, log.Logger)

	// Settlement event outbox feeding the achievement consumer
	events := outbox.New(cfg.Outbox.BufferSize, log.Logger)
	go events.Run(ctx, achievementService.HandleSettlement)

	// Stateless session machines
	crystalMachine := progressive.New(progressive.Config{
		Name:             "crystal",
		InitialRisk:      cfg.Games.Crystal.InitialRisk,
		InitialMultMin:   cfg.Games.Crystal.InitialMultMin,
		InitialMultMax:   cfg.Games.Crystal.InitialMultMax,
		RiskIncrementMin: cfg.Games.Crystal.RiskIncrementMin,
		RiskIncrementMax: cfg.Games.Crystal.RiskIncrementMax,
		MultIncrementMin: cfg.Games.Crystal.MultIncrementMin,
		MultIncrementMax: cfg.Games.Crystal.MultIncrementMax,
		MaxBet:           cfg.Games.Crystal.MaxBet,
	}, newRNG())

	climbMachine := progressive.New(progressive.Config{
		Name:             "climb",
		InitialRisk:      cfg.Games.Climb.Risk,
		InitialMultMin:   cfg.Games.Climb.InitialMultMin,
		InitialMultMax:   cfg.Games.Climb.InitialMultMax,
		MultIncrementMin: cfg.Games.Climb.MultIncrementMin,
		MultIncrementMax: cfg.Games.Climb.MultIncrementMax,
		MaxBet:           cfg.Games.Climb.MaxBet,
	}, newRNG())

	candyMachine, err := fixedstep.New(fixedstep.Config{
		PreTakenWeights: cfg.Games.Candy.PreTakenWeights,
		Multipliers:     cfg.Games.Candy.StepMultipliers(),
		MaxBet:          cfg.Games.Candy.MaxBet,
	}, newRNG())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize candy machine")
	}

	// Dispatcher and gateway. The gateway doubles as the notifier for
	// the timer-driven games, so it exists before they do; handlers
	// register into the shared dispatcher afterwards.
	dispatcher := interaction.NewDispatcher()
	gw, err := gateway.New(cfg, dispatcher, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	staringCoordinator := lobby.New(lobby.Config{
		MaxPlayers:    cfg.Games.Staring.MaxPlayers,
		LobbyDuration: cfg.Games.Staring.LobbyDuration,
		RoundDelay:    cfg.Games.Staring.RoundDelay,
		Mode:          lobby.ParseMode(cfg.Games.Staring.Mode),
		MaxBet:        cfg.Games.Staring.MaxBet,
	}, ledgerService, gw, events, keyLock, newRNG(), log.Logger)

	rouletteService := parimutuel.New(parimutuel.Config{
		RoundDuration: cfg.Games.Roulette.RoundDuration,
		MaxBet:        cfg.Games.Roulette.MaxBet,
	}, ledgerService, gw, events, keyLock, newRNG(), log.Logger)

	// Register handlers
	secret := cfg.Bot.SessionSecret()

	handler.NewProgressiveHandler(
		"crystal", "Crystallization",
		crystalMachine, ledgerService, events, secret,
		model.KindCrystalBet, model.KindCrystalWin,
		log.Logger,
	).Register(dispatcher)

	handler.NewProgressiveHandler(
		"climb", "Cognitive Climb",
		climbMachine, ledgerService, events, secret,
		model.KindClimbBet, model.KindClimbWin,
		log.Logger,
	).Register(dispatcher)

	handler.NewFixedStepHandler(candyMachine, ledgerService, events, secret, log.Logger).Register(dispatcher)
	handler.NewLobbyHandler(staringCoordinator, log.Logger).Register(dispatcher)
	handler.NewParimutuelHandler(rouletteService, log.Logger).Register(dispatcher)
	handler.NewAccountHandler(ledgerService, rankingService, achievementService, log.Logger).Register(dispatcher)
	handler.NewTransferHandler(ledgerService, log.Logger).Register(dispatcher)
	handler.NewWorkHandler(workService, log.Logger).Register(dispatcher)
	handler.NewShopHandler(shopService, log.Logger).Register(dispatcher)
	handler.NewRankingHandler(rankingService, log.Logger).Register(dispatcher)
	handler.NewAdminHandler(cfg, ledgerService, log.Logger).Register(dispatcher)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := gw.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start gateway")
	}
	log.Info().Msg("Bot is running")

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	gw.Stop()
	cancel()
	log.Info().Msg("Bot stopped gracefully")
}

// newRNG returns a freshly seeded rand source. Each machine gets its
// own because the sources are independently mutex-guarded.
func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create accounts table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id BIGINT PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			reputation BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC);
		CREATE INDEX IF NOT EXISTS idx_accounts_reputation ON accounts(reputation DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: accounts table created")

	// Migration 2: Create ledger entries table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			sequence BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
			delta BIGINT NOT NULL,
			resulting BIGINT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_ledger_kind_time ON ledger_entries(kind, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: ledger_entries table created")

	// Migration 3: Create inventory table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_items (
			user_id BIGINT NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, item_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: user_items table created")

	// Migration 4: Create achievements table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS achievements (
			user_id BIGINT NOT NULL,
			code VARCHAR(64) NOT NULL,
			earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, code)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: achievements table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
