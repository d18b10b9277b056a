package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"facility-bot/internal/interaction"
	"facility-bot/internal/service"
)

// WorkHandler serves the shift commands.
type WorkHandler struct {
	work *service.WorkService
	log  zerolog.Logger
}

// NewWorkHandler creates the work handler.
func NewWorkHandler(work *service.WorkService, log zerolog.Logger) *WorkHandler {
	return &WorkHandler{
		work: work,
		log:  log.With().Str("handler", "work").Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *WorkHandler) Register(d *interaction.Dispatcher) {
	d.Command("work", h.safe)
	d.Command("riskywork", h.risky)
}

func (h *WorkHandler) safe(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	outcome, remaining, err := h.work.Work(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, service.ErrWorkOnCooldown) {
			return cooldownRender(remaining), nil
		}
		return renderError(h.log, err, "work"), nil
	}
	return interaction.Render{
		Text: fmt.Sprintf("Shift complete. You earned %d credits. Balance: %d.", outcome.Amount, outcome.Balance),
	}, nil
}

func (h *WorkHandler) risky(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	outcome, remaining, err := h.work.RiskyWork(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, service.ErrWorkOnCooldown) {
			return cooldownRender(remaining), nil
		}
		return renderError(h.log, err, "riskywork"), nil
	}

	if outcome.Succeeded {
		return interaction.Render{
			Text: fmt.Sprintf("The hazardous shift paid off: %d credits. Balance: %d.", outcome.Amount, outcome.Balance),
		}, nil
	}
	return interaction.Render{
		Text: fmt.Sprintf("Containment incident. You lost %d credits. Balance: %d.", -outcome.Amount, outcome.Balance),
	}, nil
}

func cooldownRender(remaining time.Duration) interaction.Render {
	remaining = remaining.Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	return interaction.Render{
		Text:      fmt.Sprintf("You are off duty for another %s.", remaining),
		Ephemeral: true,
	}
}
