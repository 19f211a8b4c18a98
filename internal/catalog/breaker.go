package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker holds searches back after
// repeated catalog failures.
var ErrUnavailable = eris.New("catalog: temporarily unavailable")

const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker stops hammering an unreachable store. After failureThreshold
// consecutive search errors it rejects calls outright for resetTimeout, then
// lets one probe through; a successful probe closes it again. Rejected
// searches surface to the engine as ordinary term failures, so a batch run
// degrades to missing-with-errors instead of stalling on timeouts.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	mu       sync.Mutex
	state    int
	failures int
	openedAt time.Time
}

// NewBreaker creates a Breaker. Non-positive arguments take the defaults of
// 5 failures and a 30 second reset.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// allow reports whether a call may proceed, moving an expired open breaker
// to half-open.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.state = breakerHalfOpen
	}
	return true
}

// record feeds a call result back into the breaker.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != breakerClosed {
			zap.L().Info("catalog: breaker closed, store reachable again")
		}
		b.state = breakerClosed
		b.failures = 0
		return
	}
	// A cancelled batch says nothing about the store's health.
	if eris.Is(err, context.Canceled) {
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.failureThreshold {
		if b.state != breakerOpen {
			zap.L().Warn("catalog: breaker opened after repeated failures",
				zap.Int("failures", b.failures),
				zap.Duration("reset_timeout", b.resetTimeout),
			)
		}
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}
