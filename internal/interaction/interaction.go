// Package interaction defines the platform-neutral boundary between
// the chat gateway and the game handlers. The gateway translates
// platform events into the two structs below and renders the returned
// instruction; nothing above this package sees a platform type.
package interaction

import (
	"context"
	"errors"
	"strings"
)

// CommandInvoked is a slash-command style invocation starting a
// session or querying state.
type CommandInvoked struct {
	ChannelID int64
	UserID    int64
	Name      string
	Options   map[string]string
}

// ComponentActivated is a button press on an existing message. The
// custom id carries the action; the message id keys codec state and
// session registries.
type ComponentActivated struct {
	ChannelID int64
	MessageID int64
	UserID    int64
	CustomID  string
}

// ControlStyle hints how the gateway should draw a button.
type ControlStyle int

const (
	StyleNeutral ControlStyle = iota
	StylePositive
	StyleDanger
)

// Control is one structured control descriptor on a message.
type Control struct {
	ID    string
	Label string
	Style ControlStyle
}

// Render is the instruction a handler returns. DeferredControls
// covers sessions whose controls embed the hosting message id: the
// gateway sends Text first, learns the new message's id, calls
// DeferredControls with it, and edits the controls in. A terminal
// render leaves both control fields empty, stripping the message.
// Discard runs when the hosting message could not be created, before
// DeferredControls ever fired; handlers that debit a stake up front
// use it to hand the stake back instead of keeping it for a session
// nobody can see.
type Render struct {
	Text             string
	Controls         []Control
	DeferredControls func(messageID int64) []Control
	Discard          func()
	Ephemeral        bool
}

// Action is a parsed component custom id of the form
// "domain:verb[:payload]".
type Action struct {
	Domain  string
	Verb    string
	Payload string
}

// ErrMalformedCustomID reports a custom id that is not ours.
var ErrMalformedCustomID = errors.New("malformed custom id")

// ParseAction splits a custom id into its tagged parts exactly once;
// handlers switch on Domain and Verb, never on substrings.
func ParseAction(customID string) (Action, error) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Action{}, ErrMalformedCustomID
	}
	a := Action{Domain: parts[0], Verb: parts[1]}
	if len(parts) == 3 {
		a.Payload = parts[2]
	}
	return a, nil
}

// CustomID builds the canonical custom id for an action.
func CustomID(domain, verb, payload string) string {
	if payload == "" {
		return domain + ":" + verb
	}
	return domain + ":" + verb + ":" + payload
}

// Error taxonomy surfaced to players. Anything else renders a generic
// message and is logged server-side.
var (
	// ErrInvalidSession covers decode failures and unknown session
	// keys: the message the player pressed no longer maps to a live
	// session.
	ErrInvalidSession = errors.New("session expired")
	// ErrDuplicateAction marks an action whose stake was already
	// taken once and must be handed back.
	ErrDuplicateAction = errors.New("action already taken")
)

// CommandHandler serves one command name.
type CommandHandler func(ctx context.Context, ev CommandInvoked) (Render, error)

// ComponentHandler serves one action domain.
type ComponentHandler func(ctx context.Context, ev ComponentActivated, action Action) (Render, error)

// Dispatcher routes events by lookup table, one decision per event.
type Dispatcher struct {
	commands   map[string]CommandHandler
	components map[string]ComponentHandler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		commands:   make(map[string]CommandHandler),
		components: make(map[string]ComponentHandler),
	}
}

// Command registers a handler for a command name.
func (d *Dispatcher) Command(name string, h CommandHandler) {
	d.commands[name] = h
}

// Component registers a handler for an action domain.
func (d *Dispatcher) Component(domain string, h ComponentHandler) {
	d.components[domain] = h
}

// DispatchCommand routes a command invocation. Unknown commands fall
// through to ErrInvalidSession so the gateway renders "expired"
// rather than leaking routing detail.
func (d *Dispatcher) DispatchCommand(ctx context.Context, ev CommandInvoked) (Render, error) {
	h, ok := d.commands[ev.Name]
	if !ok {
		return Render{}, ErrInvalidSession
	}
	return h(ctx, ev)
}

// DispatchComponent parses the custom id and routes the press.
func (d *Dispatcher) DispatchComponent(ctx context.Context, ev ComponentActivated) (Render, error) {
	action, err := ParseAction(ev.CustomID)
	if err != nil {
		return Render{}, ErrInvalidSession
	}
	h, ok := d.components[action.Domain]
	if !ok {
		return Render{}, ErrInvalidSession
	}
	return h(ctx, ev, action)
}
