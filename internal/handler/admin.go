package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"facility-bot/internal/config"
	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
)

// AdminHandler serves the administrative commands. Every operation is
// gated on the configured admin list.
type AdminHandler struct {
	cfg    *config.Config
	ledger *service.LedgerService
	log    zerolog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(cfg *config.Config, ledger *service.LedgerService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		cfg:    cfg,
		ledger: ledger,
		log:    log.With().Str("handler", "admin").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *AdminHandler) Register(d *interaction.Dispatcher) {
	d.Command("setbalance", h.setBalance)
	d.Command("setreputation", h.setReputation)
	d.Command("resetreputation", h.resetReputation)
}

func (h *AdminHandler) setBalance(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	if !h.cfg.IsAdmin(ev.UserID) {
		return interaction.Render{Text: "You are not cleared for that.", Ephemeral: true}, nil
	}

	targetID, err := strconv.ParseInt(ev.Options["user"], 10, 64)
	if err != nil {
		return interaction.Render{Text: "Give a participant id.", Ephemeral: true}, nil
	}
	balance, err := strconv.ParseInt(ev.Options["amount"], 10, 64)
	if err != nil || balance < 0 {
		return interaction.Render{Text: "Give a non-negative balance.", Ephemeral: true}, nil
	}

	if _, _, err := h.ledger.EnsureAccount(ctx, targetID); err != nil {
		return renderError(h.log, err, "setbalance"), nil
	}
	account, err := h.ledger.SetBalance(ctx, targetID, balance,
		fmt.Sprintf("set by admin %d", ev.UserID))
	if err != nil {
		return renderError(h.log, err, "setbalance"), nil
	}

	h.log.Info().
		Int64("admin_id", ev.UserID).
		Int64("user_id", targetID).
		Int64("balance", balance).
		Msg("balance set")
	return interaction.Render{
		Text:      fmt.Sprintf("Participant %d now holds %d credits.", targetID, account.Balance),
		Ephemeral: true,
	}, nil
}

func (h *AdminHandler) setReputation(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	if !h.cfg.IsAdmin(ev.UserID) {
		return interaction.Render{Text: "You are not cleared for that.", Ephemeral: true}, nil
	}

	targetID, err := strconv.ParseInt(ev.Options["user"], 10, 64)
	if err != nil {
		return interaction.Render{Text: "Give a participant id.", Ephemeral: true}, nil
	}
	reputation, err := strconv.ParseInt(ev.Options["amount"], 10, 64)
	if err != nil || reputation < 0 {
		return interaction.Render{Text: "Give a non-negative reputation.", Ephemeral: true}, nil
	}

	if _, _, err := h.ledger.EnsureAccount(ctx, targetID); err != nil {
		return renderError(h.log, err, "setreputation"), nil
	}
	account, err := h.ledger.SetReputation(ctx, targetID, reputation,
		fmt.Sprintf("reputation set by admin %d", ev.UserID))
	if err != nil {
		return renderError(h.log, err, "setreputation"), nil
	}

	h.log.Info().
		Int64("admin_id", ev.UserID).
		Int64("user_id", targetID).
		Int64("reputation", reputation).
		Msg("reputation set")
	return interaction.Render{
		Text:      fmt.Sprintf("Participant %d now holds %d reputation.", targetID, account.Reputation),
		Ephemeral: true,
	}, nil
}

func (h *AdminHandler) resetReputation(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	if !h.cfg.IsAdmin(ev.UserID) {
		return interaction.Render{Text: "You are not cleared for that.", Ephemeral: true}, nil
	}

	affected, err := h.ledger.ResetAllReputation(ctx)
	if err != nil {
		return renderError(h.log, err, "resetreputation"), nil
	}

	h.log.Info().Int64("admin_id", ev.UserID).Int64("accounts", affected).Msg("reputation reset")
	return interaction.Render{
		Text:      fmt.Sprintf("Reputation reset for %d accounts.", affected),
		Ephemeral: true,
	}, nil
}
