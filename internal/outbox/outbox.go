// Package outbox decouples game settlement from its side effects.
// Settlements publish events into a buffered channel; consumers drain
// it on their own goroutine so a slow side effect never blocks a
// payout.
package outbox

import (
	"context"

	"github.com/rs/zerolog"
)

// Event describes one settled game outcome.
type Event struct {
	Game   string // game identifier, e.g. "crystal"
	UserID int64
	Bet    int64 // stake the participant put in
	Payout int64 // amount paid out, zero on a loss
	Won    bool
}

// Handler consumes settlement events. Errors are logged, never
// propagated back to the publisher.
type Handler func(ctx context.Context, e Event) error

// Outbox is a bounded in-process event queue. Publish never blocks:
// when the buffer is full the event is dropped and logged, since
// settlement must not wait on consumers.
type Outbox struct {
	ch  chan Event
	log zerolog.Logger
}

// New creates an Outbox with the given buffer size.
func New(bufferSize int, log zerolog.Logger) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Outbox{
		ch:  make(chan Event, bufferSize),
		log: log.With().Str("component", "outbox").Logger(),
	}
}

// Publish enqueues an event without blocking. Returns false when the
// buffer was full and the event was dropped.
func (o *Outbox) Publish(e Event) bool {
	select {
	case o.ch <- e:
		return true
	default:
		o.log.Warn().
			Str("game", e.Game).
			Int64("user_id", e.UserID).
			Msg("outbox full, dropping settlement event")
		return false
	}
}

// Run drains the queue, invoking handlers in order for each event,
// until ctx is cancelled. Intended to run on its own goroutine.
func (o *Outbox) Run(ctx context.Context, handlers ...Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-o.ch:
			for _, h := range handlers {
				if err := h(ctx, e); err != nil {
					o.log.Error().Err(err).
						Str("game", e.Game).
						Int64("user_id", e.UserID).
						Msg("settlement event handler failed")
				}
			}
		}
	}
}
