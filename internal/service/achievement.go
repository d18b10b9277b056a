package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
	"facility-bot/internal/repository"
)

// achievementRule decides whether a settlement event earns a badge.
type achievementRule struct {
	Code   string
	Name   string
	Bonus  int64
	Earned func(e outbox.Event) bool
}

// achievementRules is evaluated in order for every settlement event.
var achievementRules = []achievementRule{
	{
		Code:  "first_win",
		Name:  "Beginner's Luck",
		Bonus: 100,
		Earned: func(e outbox.Event) bool {
			return e.Won
		},
	},
	{
		Code:  "big_score",
		Name:  "Anomalous Payout",
		Bonus: 1000,
		Earned: func(e outbox.Event) bool {
			return e.Won && e.Payout >= 10000
		},
	},
	{
		Code:  "high_roller",
		Name:  "Hazard Pay",
		Bonus: 500,
		Earned: func(e outbox.Event) bool {
			return e.Bet >= 5000
		},
	},
	{
		Code:  "survivor",
		Name:  "Blinked Last",
		Bonus: 250,
		Earned: func(e outbox.Event) bool {
			return e.Won && e.Game == "staring"
		},
	},
	{
		Code:  "straight_up",
		Name:  "Called the Pit",
		Bonus: 500,
		Earned: func(e outbox.Event) bool {
			return e.Won && e.Game == "roulette" && e.Bet > 0 && e.Payout/e.Bet >= 36
		},
	},
}

// AchievementService grants one-time badges from settlement events.
// It runs as an outbox consumer, off the settlement path.
type AchievementService struct {
	repo   *repository.AchievementRepository
	ledger *LedgerService
	log    zerolog.Logger
}

// NewAchievementService creates a new AchievementService instance.
func NewAchievementService(repo *repository.AchievementRepository, ledger *LedgerService, log zerolog.Logger) *AchievementService {
	return &AchievementService{
		repo:   repo,
		ledger: ledger,
		log:    log.With().Str("component", "achievements").Logger(),
	}
}

// HandleSettlement is the outbox handler. Each matching rule grants
// its badge at most once per participant and pays a one-time bonus.
func (s *AchievementService) HandleSettlement(ctx context.Context, e outbox.Event) error {
	for _, rule := range achievementRules {
		if !rule.Earned(e) {
			continue
		}

		earned, err := s.repo.Grant(ctx, e.UserID, rule.Code)
		if err != nil {
			return fmt.Errorf("failed to grant %s: %w", rule.Code, err)
		}
		if !earned {
			continue
		}

		s.log.Info().
			Int64("user_id", e.UserID).
			Str("code", rule.Code).
			Msg("achievement earned")

		if rule.Bonus > 0 {
			if _, err := s.ledger.Credit(ctx, e.UserID, rule.Bonus, model.KindAchievement, rule.Name); err != nil {
				return fmt.Errorf("failed to pay achievement bonus: %w", err)
			}
		}
	}
	return nil
}

// List returns a participant's earned badges with display names.
func (s *AchievementService) List(ctx context.Context, userID int64) ([]model.Achievement, map[string]string, error) {
	earned, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	names := make(map[string]string, len(achievementRules))
	for _, rule := range achievementRules {
		names[rule.Code] = rule.Name
	}
	return earned, names, nil
}
