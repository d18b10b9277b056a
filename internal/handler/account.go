package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
)

// AccountHandler serves balance, profile, and audit history queries.
type AccountHandler struct {
	ledger       *service.LedgerService
	rankings     *service.RankingService
	achievements *service.AchievementService
	log          zerolog.Logger
}

// NewAccountHandler creates the account handler.
func NewAccountHandler(
	ledger *service.LedgerService,
	rankings *service.RankingService,
	achievements *service.AchievementService,
	log zerolog.Logger,
) *AccountHandler {
	return &AccountHandler{
		ledger:       ledger,
		rankings:     rankings,
		achievements: achievements,
		log:          log.With().Str("handler", "account").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *AccountHandler) Register(d *interaction.Dispatcher) {
	d.Command("balance", h.balance)
	d.Command("profile", h.profile)
	d.Command("history", h.history)
}

func (h *AccountHandler) balance(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	account, _, err := h.ledger.EnsureAccount(ctx, ev.UserID)
	if err != nil {
		return renderError(h.log, err, "balance"), nil
	}
	return interaction.Render{
		Text:      fmt.Sprintf("Balance: %d credits. Reputation: %d.", account.Balance, account.Reputation),
		Ephemeral: true,
	}, nil
}

func (h *AccountHandler) profile(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	targetID := ev.UserID
	if raw, ok := ev.Options["user"]; ok && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return interaction.Render{Text: "That is not a participant id.", Ephemeral: true}, nil
		}
		targetID = parsed
	}

	account, _, err := h.ledger.EnsureAccount(ctx, targetID)
	if err != nil {
		return renderError(h.log, err, "profile"), nil
	}
	rank, err := h.rankings.ReputationRank(ctx, targetID)
	if err != nil {
		return renderError(h.log, err, "profile"), nil
	}
	earned, names, err := h.achievements.List(ctx, targetID)
	if err != nil {
		return renderError(h.log, err, "profile"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Participant %d\nBalance: %d\nReputation: %d (rank #%d)\n",
		targetID, account.Balance, account.Reputation, rank)
	if len(earned) == 0 {
		b.WriteString("No achievements yet.")
	} else {
		b.WriteString("Achievements:")
		for _, a := range earned {
			name := names[a.Code]
			if name == "" {
				name = a.Code
			}
			fmt.Fprintf(&b, " [%s]", name)
		}
	}
	return interaction.Render{Text: b.String()}, nil
}

func (h *AccountHandler) history(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	entries, err := h.ledger.History(ctx, ev.UserID, 10)
	if err != nil {
		return renderError(h.log, err, "history"), nil
	}
	if len(entries) == 0 {
		return interaction.Render{Text: "No ledger activity yet.", Ephemeral: true}, nil
	}

	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%+d (%s) -> %d\n", e.Delta, e.Kind, e.Resulting)
	}
	return interaction.Render{Text: b.String(), Ephemeral: true}, nil
}
