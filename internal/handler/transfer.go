package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
)

// TransferHandler serves participant-to-participant transfers.
type TransferHandler struct {
	ledger *service.LedgerService
	log    zerolog.Logger
}

// NewTransferHandler creates the transfer handler.
func NewTransferHandler(ledger *service.LedgerService, log zerolog.Logger) *TransferHandler {
	return &TransferHandler{
		ledger: ledger,
		log:    log.With().Str("handler", "transfer").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *TransferHandler) Register(d *interaction.Dispatcher) {
	d.Command("transfer", h.transfer)
}

func (h *TransferHandler) transfer(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	targetID, err := strconv.ParseInt(ev.Options["user"], 10, 64)
	if err != nil {
		return interaction.Render{Text: "Give a participant id to send credits to.", Ephemeral: true}, nil
	}
	amount, err := strconv.ParseInt(ev.Options["amount"], 10, 64)
	if err != nil || amount <= 0 {
		return interaction.Render{Text: "Give a positive amount.", Ephemeral: true}, nil
	}

	fromBalance, _, err := h.ledger.Transfer(ctx, ev.UserID, targetID, amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTarget):
			return interaction.Render{Text: "You can't send credits there.", Ephemeral: true}, nil
		case errors.Is(err, service.ErrInsufficientFunds):
			return interaction.Render{Text: "You don't have that many credits.", Ephemeral: true}, nil
		default:
			return renderError(h.log, err, "transfer"), nil
		}
	}

	return interaction.Render{
		Text: fmt.Sprintf("Sent %d credits to participant %d. You have %d left.", amount, targetID, fromBalance),
	}, nil
}
