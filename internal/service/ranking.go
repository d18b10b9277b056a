package service

import (
	"context"
	"time"

	"facility-bot/internal/model"
	"facility-bot/internal/repository"
)

// RankingService handles leaderboard queries.
type RankingService struct {
	accounts *repository.AccountRepository
	ledger   *repository.LedgerRepository
	timezone *time.Location
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(
	accounts *repository.AccountRepository,
	ledger *repository.LedgerRepository,
	timezone *time.Location,
) *RankingService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &RankingService{
		accounts: accounts,
		ledger:   ledger,
		timezone: timezone,
	}
}

// TopByBalance retrieves the richest participants.
func (s *RankingService) TopByBalance(ctx context.Context, limit int) ([]*model.Account, error) {
	return s.accounts.TopByBalance(ctx, limit)
}

// TopByReputation retrieves the most reputable participants.
func (s *RankingService) TopByReputation(ctx context.Context, limit int) ([]*model.Account, error) {
	return s.accounts.TopByReputation(ctx, limit)
}

// ReputationRank returns a participant's position on the reputation
// board, 1-based.
func (s *RankingService) ReputationRank(ctx context.Context, userID int64) (int, error) {
	return s.accounts.RankByReputation(ctx, userID)
}

// DailyNet retrieves today's full net standings at the tables,
// winners and losers alike, most profitable first.
func (s *RankingService) DailyNet(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	today := time.Now().In(s.timezone)
	return s.ledger.DailyNet(ctx, today, limit)
}

// DailyWinners retrieves today's top game winners.
func (s *RankingService) DailyWinners(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	today := time.Now().In(s.timezone)
	return s.ledger.DailyWinners(ctx, today, limit)
}

// DailyLosers retrieves today's top game losers.
func (s *RankingService) DailyLosers(ctx context.Context, limit int) ([]*model.DailyRank, error) {
	today := time.Now().In(s.timezone)
	return s.ledger.DailyLosers(ctx, today, limit)
}
