package interaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	a, err := ParseAction("crystal:raise:aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, "crystal", a.Domain)
	assert.Equal(t, "raise", a.Verb)
	assert.Equal(t, "aGVsbG8", a.Payload)

	a, err = ParseAction("staring:join")
	require.NoError(t, err)
	assert.Equal(t, "staring", a.Domain)
	assert.Equal(t, "join", a.Verb)
	assert.Empty(t, a.Payload)

	// Payloads may themselves contain colons; only the first two
	// separators split.
	a, err = ParseAction("candy:take:a:b:c")
	require.NoError(t, err)
	assert.Equal(t, "a:b:c", a.Payload)

	for _, bad := range []string{"", "nocolon", ":verb", "domain:"} {
		_, err := ParseAction(bad)
		assert.ErrorIs(t, err, ErrMalformedCustomID, "input %q", bad)
	}
}

func TestCustomIDRoundTrip(t *testing.T) {
	id := CustomID("climb", "stop", "dG9rZW4")
	a, err := ParseAction(id)
	require.NoError(t, err)
	assert.Equal(t, Action{Domain: "climb", Verb: "stop", Payload: "dG9rZW4"}, a)

	id = CustomID("staring", "start", "")
	a, err = ParseAction(id)
	require.NoError(t, err)
	assert.Equal(t, Action{Domain: "staring", Verb: "start"}, a)
}

func TestDispatcherRoutes(t *testing.T) {
	d := NewDispatcher()

	d.Command("balance", func(_ context.Context, ev CommandInvoked) (Render, error) {
		return Render{Text: "balance for " + ev.Options["user"]}, nil
	})
	d.Component("crystal", func(_ context.Context, _ ComponentActivated, action Action) (Render, error) {
		return Render{Text: "crystal " + action.Verb}, nil
	})

	r, err := d.DispatchCommand(context.Background(), CommandInvoked{
		Name:    "balance",
		Options: map[string]string{"user": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "balance for 42", r.Text)

	r, err = d.DispatchComponent(context.Background(), ComponentActivated{
		CustomID: "crystal:raise:tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "crystal raise", r.Text)
}

func TestDispatcherUnknownTargets(t *testing.T) {
	d := NewDispatcher()

	_, err := d.DispatchCommand(context.Background(), CommandInvoked{Name: "nope"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = d.DispatchComponent(context.Background(), ComponentActivated{CustomID: "nope:verb"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = d.DispatchComponent(context.Background(), ComponentActivated{CustomID: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidSession)
}
