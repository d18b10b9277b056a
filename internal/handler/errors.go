// Package handler translates interaction events into game and
// economy operations and renders the results.
package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/model"
	"facility-bot/internal/service"
)

// Ledger is the slice of the economy service the stateless game
// handlers need: stake in, payout out, zero-delta outcome notes.
type Ledger interface {
	Withdraw(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
	Credit(ctx context.Context, userID, amount int64, kind, reason string) (*model.Account, error)
	Note(ctx context.Context, userID int64, kind, reason string)
}

// userMessage maps an operation error to the text shown to the
// player. Unclassified errors get a generic line; the caller logs the
// detail server-side so nothing internal leaks into the channel.
func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		return "You don't have enough credits for that."
	case errors.Is(err, interaction.ErrInvalidSession):
		return "This session has expired. Start a new one."
	case errors.Is(err, interaction.ErrDuplicateAction):
		return "That action was already taken. Your stake is returned."
	default:
		return "Something went wrong. Try again in a moment."
	}
}

// renderError logs the error and wraps the user text in an ephemeral
// render so failures never disturb the hosting message.
func renderError(log zerolog.Logger, err error, context string) interaction.Render {
	log.Warn().Err(err).Str("op", context).Msg("interaction failed")
	return interaction.Render{Text: userMessage(err), Ephemeral: true}
}
