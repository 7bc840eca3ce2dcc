package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerCompleter stops calling a failing provider for a cool-down period.
type BreakerCompleter struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerCompleter(next Completer, st BreakerSettings, logger zerolog.Logger) *BreakerCompleter {
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenTimeout <= 0 {
		st.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("ai circuit breaker state changed")
		},
	})
	return &BreakerCompleter{next: next, cb: cb}
}

func (b *BreakerCompleter) Name() string {
	return b.next.Name()
}

func (b *BreakerCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *BreakerCompleter) State() gobreaker.State {
	return b.cb.State()
}

func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
