package geo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/joseph-ayodele/carrier-reconciler/internal/rates"
)

// Guarded wraps a distance provider with a per-call timeout and a circuit
// breaker. Errors still reach the caller; an open breaker fails fast.
type Guarded struct {
	next    rates.DistanceProvider
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

type GuardOptions struct {
	Timeout  time.Duration
	Failures uint32        // consecutive failures that open the breaker
	Cooldown time.Duration // time the breaker stays open
}

func NewGuarded(next rates.DistanceProvider, opts GuardOptions, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}
	g := &Guarded{next: next, timeout: opts.Timeout, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "distance",
		Timeout: opts.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("geo.breaker.state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

func (g *Guarded) DistanceKM(ctx context.Context, originPostal, originCountry, destPostal, destCountry string) (decimal.Decimal, error) {
	v, err := g.cb.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.next.DistanceKM(callCtx, originPostal, originCountry, destPostal, destCountry)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("distance lookup: %w", err)
	}
	return v.(decimal.Decimal), nil
}

// State exposes the breaker state for health reporting.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}
