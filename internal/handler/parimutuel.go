package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"facility-bot/internal/game/parimutuel"
	"facility-bot/internal/interaction"
)

// ParimutuelHandler serves pit roulette. Betting is command-only;
// the round closes itself on its timer.
type ParimutuelHandler struct {
	rounds *parimutuel.Service
	log    zerolog.Logger
}

// NewParimutuelHandler creates the roulette handler.
func NewParimutuelHandler(rounds *parimutuel.Service, log zerolog.Logger) *ParimutuelHandler {
	return &ParimutuelHandler{
		rounds: rounds,
		log:    log.With().Str("handler", "roulette").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *ParimutuelHandler) Register(d *interaction.Dispatcher) {
	d.Command("roulette", h.bet)
}

func (h *ParimutuelHandler) bet(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	amount, err := strconv.ParseInt(ev.Options["bet"], 10, 64)
	if err != nil || amount <= 0 {
		return interaction.Render{Text: "Give a positive bet amount.", Ephemeral: true}, nil
	}

	choice, err := parimutuel.ParseChoice(ev.Options["choice"])
	if err != nil {
		return interaction.Render{
			Text:      "Pick a number 0-36, odd/even, low/high, or dozen1-dozen3.",
			Ephemeral: true,
		}, nil
	}

	snap, err := h.rounds.Place(ctx, ev.ChannelID, ev.UserID, choice, amount)
	if err != nil {
		switch {
		case errors.Is(err, parimutuel.ErrAlreadyBet):
			return interaction.Render{Text: "You already placed a bet this round.", Ephemeral: true}, nil
		case errors.Is(err, parimutuel.ErrBetTooLarge):
			return interaction.Render{Text: "That stake is above the table limit.", Ephemeral: true}, nil
		default:
			return renderError(h.log, err, "roulette bet"), nil
		}
	}

	if snap.Opened {
		return interaction.Render{
			Text: fmt.Sprintf("The pit opens. Participant %d puts %d on %s. Bets close shortly.",
				ev.UserID, amount, choice.Label),
		}, nil
	}
	return interaction.Render{
		Text: fmt.Sprintf("Participant %d puts %d on %s. %d bets in.",
			ev.UserID, amount, choice.Label, len(snap.Bets)),
	}, nil
}
