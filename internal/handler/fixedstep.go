package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"facility-bot/internal/codec"
	"facility-bot/internal/game/fixedstep"
	"facility-bot/internal/interaction"
	"facility-bot/internal/model"
	"facility-bot/internal/outbox"
)

const candyDomain = "candy"

// FixedStepHandler serves the candy bowl game.
type FixedStepHandler struct {
	machine *fixedstep.Machine
	ledger  Ledger
	events  *outbox.Outbox
	secret  string
	log     zerolog.Logger
}

// NewFixedStepHandler creates the candy handler.
func NewFixedStepHandler(machine *fixedstep.Machine, ledger Ledger, events *outbox.Outbox, secret string, log zerolog.Logger) *FixedStepHandler {
	return &FixedStepHandler{
		machine: machine,
		ledger:  ledger,
		events:  events,
		secret:  secret,
		log:     log.With().Str("handler", candyDomain).Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *FixedStepHandler) Register(d *interaction.Dispatcher) {
	d.Command(candyDomain, h.start)
	d.Component(candyDomain, h.advance)
}

func (h *FixedStepHandler) start(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	bet, err := strconv.ParseInt(ev.Options["bet"], 10, 64)
	if err != nil || bet <= 0 {
		return interaction.Render{Text: "Give a positive bet amount.", Ephemeral: true}, nil
	}
	if err := h.machine.ValidateBet(bet); err != nil {
		if h.machine.MaxBet() > 0 && bet > h.machine.MaxBet() {
			return interaction.Render{Text: fmt.Sprintf("The maximum stake is %d.", h.machine.MaxBet()), Ephemeral: true}, nil
		}
		return interaction.Render{Text: "Give a positive bet amount.", Ephemeral: true}, nil
	}

	if _, err := h.ledger.Withdraw(ctx, ev.UserID, bet, model.KindCandyBet, "candy bowl stake"); err != nil {
		return renderError(h.log, err, "candy start"), nil
	}

	state, err := h.machine.Start(bet)
	if err != nil {
		if _, refundErr := h.ledger.Credit(ctx, ev.UserID, bet, model.KindCandyBet, "candy bowl stake returned"); refundErr != nil {
			h.log.Error().Err(refundErr).Int64("user_id", ev.UserID).Msg("refund failed")
		}
		return renderError(h.log, err, "candy start"), nil
	}

	return interaction.Render{
		Text: h.describe(state),
		DeferredControls: func(messageID int64) []interaction.Control {
			return h.controls(messageID, state)
		},
		Discard: func() {
			if _, err := h.ledger.Credit(context.Background(), ev.UserID, bet, model.KindCandyBet, "candy bowl stake returned"); err != nil {
				h.log.Error().Err(err).Int64("user_id", ev.UserID).Msg("discard refund failed")
			}
		},
	}, nil
}

func (h *FixedStepHandler) advance(ctx context.Context, ev interaction.ComponentActivated, action interaction.Action) (interaction.Render, error) {
	state, err := h.decode(ev.MessageID, action.Payload)
	if err != nil {
		return renderError(h.log, interaction.ErrInvalidSession, "candy "+action.Verb), nil
	}

	switch action.Verb {
	case "take":
		return h.take(ctx, ev, state), nil
	case "leave":
		return h.leave(ctx, ev, state), nil
	default:
		return renderError(h.log, interaction.ErrInvalidSession, "candy "+action.Verb), nil
	}
}

func (h *FixedStepHandler) take(ctx context.Context, ev interaction.ComponentActivated, state fixedstep.State) interaction.Render {
	result := h.machine.Take(state)
	if result.Lost {
		h.ledger.Note(ctx, ev.UserID, model.KindCandyBet,
			fmt.Sprintf("candy bowl emptied after %d taken", result.State.Taken))
		h.events.Publish(outbox.Event{Game: candyDomain, UserID: ev.UserID, Bet: state.Bet})
		return interaction.Render{
			Text: fmt.Sprintf("The bowl is empty. There were only %d pieces left, and your stake of %d is gone.",
				fixedstepPool-state.Hidden, state.Bet),
		}
	}

	return interaction.Render{
		Text:     h.describe(result.State),
		Controls: h.controls(ev.MessageID, result.State),
	}
}

func (h *FixedStepHandler) leave(ctx context.Context, ev interaction.ComponentActivated, state fixedstep.State) interaction.Render {
	payout := h.machine.Payout(state)
	if _, err := h.ledger.Credit(ctx, ev.UserID, payout, model.KindCandyWin,
		fmt.Sprintf("candy bowl cash-out after %d taken", state.Taken)); err != nil {
		return renderError(h.log, err, "candy leave")
	}

	h.events.Publish(outbox.Event{Game: candyDomain, UserID: ev.UserID, Bet: state.Bet, Payout: payout, Won: payout > state.Bet})
	return interaction.Render{
		Text: fmt.Sprintf("You walk away with %d pieces taken: %d credits.", state.Taken, payout),
	}
}

// fixedstepPool mirrors the machine's pool size for display text.
const fixedstepPool = int64(3)

func (h *FixedStepHandler) describe(s fixedstep.State) string {
	return fmt.Sprintf("The candy bowl.\nStake: %d\nPieces taken: %d\nLeaving now pays %d. Take another?",
		s.Bet, s.Taken, h.machine.Payout(s))
}

func (h *FixedStepHandler) controls(messageID int64, s fixedstep.State) []interaction.Control {
	key := codec.SessionKey(h.secret, messageID)
	token := codec.Encode(key, s.Fields()...)
	return []interaction.Control{
		{ID: interaction.CustomID(candyDomain, "take", token), Label: "Take a piece", Style: interaction.StyleDanger},
		{ID: interaction.CustomID(candyDomain, "leave", token), Label: "Leave", Style: interaction.StylePositive},
	}
}

func (h *FixedStepHandler) decode(messageID int64, payload string) (fixedstep.State, error) {
	key := codec.SessionKey(h.secret, messageID)
	fields, err := codec.Decode(key, payload, 3)
	if err != nil {
		return fixedstep.State{}, err
	}
	return fixedstep.StateFromFields(fields)
}
