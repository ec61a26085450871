package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker refuses deliveries.
var ErrCircuitOpen = errors.New("delivery circuit open")

type deliverer interface {
	Deliver(ctx context.Context, target Target, entityID string, payload []byte) (Outcome, error)
}

// Breaker skips deliveries after a run of consecutive failures and lets a
// single probe through once OpenFor has elapsed.
type Breaker struct {
	next deliverer
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next. failures is the number of consecutive failed
// deliveries that trips the breaker.
func NewBreaker(next deliverer, failures int, openFor time.Duration, logger *log.Logger) *Breaker {
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "uplink",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(failures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("breaker state", "name", name, "from", from.String(), "to", to.String())
			},
			// a cancelled context is the caller leaving, not the server failing
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (b *Breaker) Deliver(ctx context.Context, target Target, entityID string, payload []byte) (Outcome, error) {
	var out Outcome
	_, err := b.cb.Execute(func() (any, error) {
		var err error
		out, err = b.next.Deliver(ctx, target, entityID, payload)
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrCircuitOpen, entityID)
	}
	return out, err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *Breaker) State() string { return b.cb.State().String() }
