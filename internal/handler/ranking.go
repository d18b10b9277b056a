package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
)

// RankingHandler serves the leaderboards.
type RankingHandler struct {
	rankings *service.RankingService
	log      zerolog.Logger
}

// NewRankingHandler creates the ranking handler.
func NewRankingHandler(rankings *service.RankingService, log zerolog.Logger) *RankingHandler {
	return &RankingHandler{
		rankings: rankings,
		log:      log.With().Str("handler", "ranking").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *RankingHandler) Register(d *interaction.Dispatcher) {
	d.Command("top", h.top)
	d.Command("daily", h.daily)
}

func (h *RankingHandler) top(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	if ev.Options["board"] == "reputation" {
		accounts, err := h.rankings.TopByReputation(ctx, 10)
		if err != nil {
			return renderError(h.log, err, "top"), nil
		}
		var b strings.Builder
		b.WriteString("Most reputable participants:\n")
		for i, a := range accounts {
			fmt.Fprintf(&b, "%d. Participant %d — %d reputation\n", i+1, a.UserID, a.Reputation)
		}
		return interaction.Render{Text: b.String()}, nil
	}

	accounts, err := h.rankings.TopByBalance(ctx, 10)
	if err != nil {
		return renderError(h.log, err, "top"), nil
	}
	var b strings.Builder
	b.WriteString("Richest participants:\n")
	for i, a := range accounts {
		fmt.Fprintf(&b, "%d. Participant %d — %d credits\n", i+1, a.UserID, a.Balance)
	}
	return interaction.Render{Text: b.String()}, nil
}

func (h *RankingHandler) daily(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	if ev.Options["board"] == "net" {
		ranks, err := h.rankings.DailyNet(ctx, 10)
		if err != nil {
			return renderError(h.log, err, "daily"), nil
		}
		var b strings.Builder
		b.WriteString("Today's net standings at the tables:\n")
		if len(ranks) == 0 {
			b.WriteString("  nobody played yet\n")
		}
		for i, r := range ranks {
			fmt.Fprintf(&b, "%d. Participant %d %+d\n", i+1, r.UserID, r.NetProfit)
		}
		return interaction.Render{Text: b.String()}, nil
	}

	winners, err := h.rankings.DailyWinners(ctx, 5)
	if err != nil {
		return renderError(h.log, err, "daily"), nil
	}
	losers, err := h.rankings.DailyLosers(ctx, 5)
	if err != nil {
		return renderError(h.log, err, "daily"), nil
	}

	var b strings.Builder
	b.WriteString("Today at the tables.\nWinners:\n")
	if len(winners) == 0 {
		b.WriteString("  nobody yet\n")
	}
	for i, w := range winners {
		fmt.Fprintf(&b, "%d. Participant %d +%d\n", i+1, w.UserID, w.NetProfit)
	}
	b.WriteString("Losers:\n")
	if len(losers) == 0 {
		b.WriteString("  nobody yet\n")
	}
	for i, l := range losers {
		fmt.Fprintf(&b, "%d. Participant %d %d\n", i+1, l.UserID, l.NetProfit)
	}
	return interaction.Render{Text: b.String()}, nil
}
