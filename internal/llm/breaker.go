package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("ai provider unavailable")

// BreakerSettings tunes when the breaker trips.
type BreakerSettings struct {
	MinRequests      uint32
	FailureThreshold float64
	Interval         time.Duration // window for resetting counts while closed
	Timeout          time.Duration // how long to stay open before probing
}

// DefaultBreakerSettings trips after most of at least five calls fail.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:      5,
		FailureThreshold: 0.6,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// Breaker wraps a Client so a failing provider fails fast.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker.
func NewBreaker(next Client, s BreakerSettings, logger *zap.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the provider's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// Complete forwards to the wrapped client unless the breaker is open.
func (b *Breaker) Complete(ctx context.Context, prompt string) (*Response, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Complete(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
