package updater

import (
	"errors"
	"math/rand"
	"time"
)

// ErrRetriesExhausted marks the terminal failure of the update loop after
// the configured number of consecutive failed cycles. It always wraps the
// last cycle error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds how the orchestrator reacts to a failed cycle: wait a
// randomized interval centered on BaseInterval, then try again, up to
// MaxAttempts consecutive failures. The jitter keeps a fleet of updaters
// from hammering a recovering blocklist source in lockstep.
type RetryPolicy struct {
	MaxAttempts    int
	BaseInterval   time.Duration
	JitterFraction float64
}

// DefaultJitterFraction spreads retry delays by ±25% of the base.
const DefaultJitterFraction = 0.25

// Delay returns the randomized wait before the next attempt.
func (p RetryPolicy) Delay() time.Duration {
	jitter := p.JitterFraction
	if jitter <= 0 {
		jitter = DefaultJitterFraction
	}
	spread := float64(p.BaseInterval) * jitter
	offset := (rand.Float64()*2 - 1) * spread
	d := time.Duration(float64(p.BaseInterval) + offset)
	if d < 0 {
		d = 0
	}
	return d
}
