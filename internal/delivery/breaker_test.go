package delivery

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDeliverer struct {
	calls int
	err   error
}

func (d *countingDeliverer) Deliver(context.Context, Target, string, []byte) (Outcome, error) {
	d.calls++
	if d.err != nil {
		return Outcome{Attempts: 1}, d.err
	}
	return Outcome{Attempts: 1, Delivered: true, StatusLine: "HTTP/1.1 204 No Content"}, nil
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	next := &countingDeliverer{err: ErrConnect}
	b := NewBreaker(next, 2, time.Hour, log.New(io.Discard))

	for i := 0; i < 2; i++ {
		_, err := b.Deliver(context.Background(), Target{}, "point06", nil)
		require.ErrorIs(t, err, ErrConnect)
	}
	assert.Equal(t, "open", b.State())

	out, err := b.Deliver(context.Background(), Target{}, "point06", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, out.Attempts)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerPassesSuccess(t *testing.T) {
	next := &countingDeliverer{}
	b := NewBreaker(next, 1, time.Hour, log.New(io.Discard))

	out, err := b.Deliver(context.Background(), Target{}, "point06", nil)
	require.NoError(t, err)
	assert.True(t, out.Delivered)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	next := &countingDeliverer{err: context.Canceled}
	b := NewBreaker(next, 1, time.Hour, log.New(io.Discard))

	_, err := b.Deliver(context.Background(), Target{}, "point06", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}
