package outbox

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishNeverBlocks(t *testing.T) {
	o := New(2, zerolog.Nop())

	assert.True(t, o.Publish(Event{Game: "crystal", UserID: 1}))
	assert.True(t, o.Publish(Event{Game: "crystal", UserID: 2}))

	// Buffer full: the third publish drops instead of blocking.
	done := make(chan bool, 1)
	go func() {
		done <- o.Publish(Event{Game: "crystal", UserID: 3})
	}()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
}

func TestRunDeliversInOrder(t *testing.T) {
	o := New(8, zerolog.Nop())

	var got []int64
	received := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go o.Run(ctx, func(_ context.Context, e Event) error {
		got = append(got, e.UserID)
		received <- struct{}{}
		return nil
	})

	for i := int64(1); i <= 3; i++ {
		require.True(t, o.Publish(Event{Game: "candy", UserID: i}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestHandlerErrorDoesNotStopRun(t *testing.T) {
	o := New(8, zerolog.Nop())

	var calls atomic.Int64
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go o.Run(ctx, func(_ context.Context, e Event) error {
		calls.Add(1)
		return assert.AnError
	})

	o.Publish(Event{Game: "staring", UserID: 1})
	o.Publish(Event{Game: "staring", UserID: 2})

	assert.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, 10*time.Millisecond)
}
