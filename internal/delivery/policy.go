package delivery

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryInterval is the pause between two delivery attempts.
const DefaultRetryInterval = 2 * time.Second

// RetryPolicy decides how long to wait between attempts and when to give up.
// A zero MaxAttempts retries forever.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Exponential bool
}

// Unlimited is the constant, uncapped policy used by the entity updater.
func Unlimited() RetryPolicy {
	return RetryPolicy{Interval: DefaultRetryInterval}
}

// Capped retries at most attempts times in total.
func Capped(interval time.Duration, attempts int) RetryPolicy {
	return RetryPolicy{Interval: interval, MaxAttempts: attempts}
}

// newBackOff returns a fresh backoff for one delivery. NextBackOff returns
// backoff.Stop once MaxAttempts have been made.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	var b backoff.BackOff
	if p.Exponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = interval
		eb.MaxInterval = 30 * time.Second
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(interval)
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	b.Reset()
	return b
}
