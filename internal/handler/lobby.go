package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"facility-bot/internal/game/lobby"
	"facility-bot/internal/interaction"
)

const staringDomain = "staring"

// LobbyHandler serves the staring contest lobby.
type LobbyHandler struct {
	coordinator *lobby.Coordinator
	log         zerolog.Logger
}

// NewLobbyHandler creates the staring contest handler.
func NewLobbyHandler(coordinator *lobby.Coordinator, log zerolog.Logger) *LobbyHandler {
	return &LobbyHandler{
		coordinator: coordinator,
		log:         log.With().Str("handler", staringDomain).Logger(),
	}
}

// Register wires the handler into the dispatcher.
func (h *LobbyHandler) Register(d *interaction.Dispatcher) {
	d.Command(staringDomain, h.open)
	d.Component(staringDomain, h.press)
}

// open creates the lobby. The session binds to its hosting message
// through the deferred controls, which is also when the auto-start
// timer arms.
func (h *LobbyHandler) open(ctx context.Context, ev interaction.CommandInvoked) (interaction.Render, error) {
	bet, err := strconv.ParseInt(ev.Options["bet"], 10, 64)
	if err != nil || bet <= 0 {
		return interaction.Render{Text: "Give a positive bet amount.", Ephemeral: true}, nil
	}

	session, err := h.coordinator.Open(ctx, ev.ChannelID, ev.UserID, bet)
	if err != nil {
		if errors.Is(err, lobby.ErrBetTooLarge) {
			return interaction.Render{Text: "That stake is above the table limit.", Ephemeral: true}, nil
		}
		return renderError(h.log, err, "staring open"), nil
	}

	return interaction.Render{
		Text: fmt.Sprintf("A staring contest is forming. Buy-in: %d. Participant %d is waiting.", bet, ev.UserID),
		DeferredControls: func(messageID int64) []interaction.Control {
			h.coordinator.Bind(session, messageID)
			return lobbyControls()
		},
		Discard: func() {
			h.coordinator.Abort(session)
		},
	}, nil
}

func (h *LobbyHandler) press(ctx context.Context, ev interaction.ComponentActivated, action interaction.Action) (interaction.Render, error) {
	switch action.Verb {
	case "join":
		return h.join(ctx, ev), nil
	case "start":
		return h.start(ev), nil
	default:
		return renderError(h.log, interaction.ErrInvalidSession, "staring "+action.Verb), nil
	}
}

func (h *LobbyHandler) join(ctx context.Context, ev interaction.ComponentActivated) interaction.Render {
	snap, err := h.coordinator.Join(ctx, ev.MessageID, ev.UserID)
	if err != nil {
		switch {
		case errors.Is(err, lobby.ErrSessionNotFound), errors.Is(err, lobby.ErrSessionClosed):
			return renderError(h.log, interaction.ErrInvalidSession, "staring join")
		case errors.Is(err, lobby.ErrAlreadyJoined):
			return interaction.Render{Text: "You are already in.", Ephemeral: true}
		case errors.Is(err, lobby.ErrLobbyFull):
			return interaction.Render{Text: "The lobby is full.", Ephemeral: true}
		default:
			return renderError(h.log, err, "staring join")
		}
	}

	return interaction.Render{
		Text:     describeLobby(snap),
		Controls: lobbyControls(),
	}
}

func (h *LobbyHandler) start(ev interaction.ComponentActivated) interaction.Render {
	snap, err := h.coordinator.Start(ev.MessageID, ev.UserID)
	if err != nil {
		switch {
		case errors.Is(err, lobby.ErrSessionNotFound), errors.Is(err, lobby.ErrSessionClosed):
			return renderError(h.log, interaction.ErrInvalidSession, "staring start")
		case errors.Is(err, lobby.ErrNotHost):
			return interaction.Render{Text: "Only the host can start the contest.", Ephemeral: true}
		case errors.Is(err, lobby.ErrNotEnoughPlayers):
			return interaction.Render{Text: "At least two participants are needed.", Ephemeral: true}
		default:
			return renderError(h.log, err, "staring start")
		}
	}

	return interaction.Render{
		Text: fmt.Sprintf("The contest begins with %d participants. Hold your gaze.", len(snap.Players)),
	}
}

func describeLobby(snap lobby.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A staring contest is forming. Buy-in: %d.\nParticipants (%d):", snap.Bet, len(snap.Players))
	for _, p := range snap.Players {
		fmt.Fprintf(&b, " %d", p)
	}
	return b.String()
}

func lobbyControls() []interaction.Control {
	return []interaction.Control{
		{ID: interaction.CustomID(staringDomain, "join", ""), Label: "Join", Style: interaction.StylePositive},
		{ID: interaction.CustomID(staringDomain, "start", ""), Label: "Start now", Style: interaction.StyleNeutral},
	}
}
