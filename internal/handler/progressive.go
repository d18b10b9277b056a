package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"facility-bot/internal/codec"
	"facility-bot/internal/game/progressive"
	"facility-bot/internal/interaction"
	"facility-bot/internal/outbox"
)

// ProgressiveHandler serves one progressive game instance. The
// crystallization and cognitive climb games are two instances of this
// handler over differently configured machines; they differ only in
// domain, flavor text, and ledger kinds.
type ProgressiveHandler struct {
	domain  string
	title   string
	machine *progressive.Machine
	ledger  Ledger
	events  *outbox.Outbox
	secret  string
	betKind string
	winKind string
	log     zerolog.Logger
}

// NewProgressiveHandler creates a handler for one machine instance.
func NewProgressiveHandler(
	domain, title string,
	machine *progressive.Machine,
	ledger Ledger,
	events *outbox.Outbox,
	secret string,
	betKind, winKind string,
	log zerolog.Logger,
) *ProgressiveHandler {
	return &ProgressiveHandler{
		domain:  domain,
		title:   title,
		machine: machine,
		ledger:  ledger,
		events:  events,
		secret:  secret,
		betKind: betKind,
		winKind: winKind,
		log:     log.With().Str("handler", domain).Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *ProgressiveHandler) Register(d *interaction.Dispatcher) {
	d.Command(h.domain, h.start)
	d.Component(h.domain, h.advance)
}

// start opens a session: validate, debit the stake, draw the initial
// state. The controls embed the state token keyed by the hosting
// message, which does not exist yet, so they are deferred.
func (h *ProgressiveHandler) start(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	bet, err := strconv.ParseInt(ev.Options["bet"], 10, 64)
	if err != nil || bet <= 0 {
		return interaction.Render{Text: "Give a positive bet amount.", Ephemeral: true}, nil
	}
	if err := h.machine.ValidateBet(bet); err != nil {
		return interaction.Render{Text: h.betLimitText(err), Ephemeral: true}, nil
	}

	if _, err := h.ledger.Withdraw(ctx, ev.UserID, bet, h.betKind, h.title+" stake"); err != nil {
		return renderError(h.log, err, h.domain+" start"), nil
	}

	state, err := h.machine.Start(bet)
	if err != nil {
		// Validation already passed; refund and surface.
		if _, refundErr := h.ledger.Credit(ctx, ev.UserID, bet, h.betKind, h.title+" stake returned"); refundErr != nil {
			h.log.Error().Err(refundErr).Int64("user_id", ev.UserID).Msg("refund failed")
		}
		return renderError(h.log, err, h.domain+" start"), nil
	}

	return interaction.Render{
		Text: h.describe(state),
		DeferredControls: func(messageID int64) []interaction.Control {
			return h.controls(messageID, state)
		},
		Discard: func() {
			if _, err := h.ledger.Credit(context.Background(), ev.UserID, bet, h.betKind, h.title+" stake returned"); err != nil {
				h.log.Error().Err(err).Int64("user_id", ev.UserID).Msg("discard refund failed")
			}
		},
	}, nil
}

// advance handles a raise or stop press. State comes entirely from
// the token; a token that fails to decode against this message's key
// is treated as an expired session.
func (h *ProgressiveHandler) advance(ctx context.Context, ev interaction.ComponentActivated, action interaction.Action) (interaction.Render, error) {
	state, err := h.decode(ev.MessageID, action.Payload)
	if err != nil {
		return renderError(h.log, interaction.ErrInvalidSession, h.domain+" "+action.Verb), nil
	}

	switch action.Verb {
	case "raise":
		return h.raise(ctx, ev, state), nil
	case "stop":
		return h.cashOut(ctx, ev, state), nil
	default:
		return renderError(h.log, interaction.ErrInvalidSession, h.domain+" "+action.Verb), nil
	}
}

func (h *ProgressiveHandler) raise(ctx context.Context, ev interaction.ComponentActivated, state progressive.State) interaction.Render {
	result := h.machine.Raise(state)
	if result.Lost {
		h.ledger.Note(ctx, ev.UserID, h.betKind, h.title+" lost at x"+formatMult(state.Multiplier()))
		h.events.Publish(outbox.Event{Game: h.domain, UserID: ev.UserID, Bet: state.Bet})
		return interaction.Render{
			Text: fmt.Sprintf("%s failed at x%s. The stake of %d is gone.",
				h.title, formatMult(state.Multiplier()), state.Bet),
		}
	}

	next := result.State
	return interaction.Render{
		Text:     h.describe(next),
		Controls: h.controls(ev.MessageID, next),
	}
}

func (h *ProgressiveHandler) cashOut(ctx context.Context, ev interaction.ComponentActivated, state progressive.State) interaction.Render {
	payout := state.Payout()
	if _, err := h.ledger.Credit(ctx, ev.UserID, payout, h.winKind, h.title+" cash-out at x"+formatMult(state.Multiplier())); err != nil {
		return renderError(h.log, err, h.domain+" stop")
	}

	h.events.Publish(outbox.Event{Game: h.domain, UserID: ev.UserID, Bet: state.Bet, Payout: payout, Won: true})
	return interaction.Render{
		Text: fmt.Sprintf("%s: cashed out at x%s for %d credits.",
			h.title, formatMult(state.Multiplier()), payout),
	}
}

func (h *ProgressiveHandler) describe(s progressive.State) string {
	return fmt.Sprintf("%s\nStake: %d\nMultiplier: x%s\nRisk: %.0f%%\nCash-out now pays %d.",
		h.title, s.Bet, formatMult(s.Multiplier()), s.Risk()*100, s.Payout())
}

func (h *ProgressiveHandler) controls(messageID int64, s progressive.State) []interaction.Control {
	key := codec.SessionKey(h.secret, messageID)
	token := codec.Encode(key, s.Fields()...)
	return []interaction.Control{
		{ID: interaction.CustomID(h.domain, "raise", token), Label: "Push further", Style: interaction.StyleDanger},
		{ID: interaction.CustomID(h.domain, "stop", token), Label: "Cash out", Style: interaction.StylePositive},
	}
}

func (h *ProgressiveHandler) decode(messageID int64, payload string) (progressive.State, error) {
	key := codec.SessionKey(h.secret, messageID)
	fields, err := codec.Decode(key, payload, 3)
	if err != nil {
		return progressive.State{}, err
	}
	return progressive.StateFromFields(fields)
}

func (h *ProgressiveHandler) betLimitText(err error) string {
	if errors.Is(err, progressive.ErrBetTooLarge) && h.machine.MaxBet() > 0 {
		return fmt.Sprintf("The maximum stake is %d.", h.machine.MaxBet())
	}
	return "Give a positive bet amount."
}

func formatMult(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}
