package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ignitelab/ignite/internal/domain"
)

// ErrPrimaryDown is returned when the real-time quote adapter cannot
// serve: there is no scoring without a live price.
var ErrPrimaryDown = fmt.Errorf("primary price provider unavailable")

// guard wraps one adapter with its limiter and breaker.
type guard struct {
	adapter Adapter
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// Facade fans a per-symbol collect out to every registered adapter.
// Concurrency across symbols is bounded by each adapter's rate limiter,
// not by CPU.
type Facade struct {
	mu     sync.RWMutex
	guards []*guard
}

// GuardConfig tunes one adapter's limiter and breaker.
type GuardConfig struct {
	RequestsPerSec float64
	Burst          int
	BreakerName    string
	OpenTimeout    time.Duration
	MinRequests    uint32
	FailureRatio   float64
}

func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		RequestsPerSec: 10,
		Burst:          20,
		BreakerName:    name,
		OpenTimeout:    30 * time.Second,
		MinRequests:    5,
		FailureRatio:   0.6,
	}
}

func NewFacade() *Facade { return &Facade{} }

// Register adds an adapter behind a limiter and circuit breaker.
func (f *Facade) Register(a Adapter, gc GuardConfig) {
	settings := gobreaker.Settings{
		Name:        gc.BreakerName,
		Timeout:     gc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < gc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= gc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("provider breaker state change")
		},
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guards = append(f.guards, &guard{
		adapter: a,
		limiter: rate.NewLimiter(rate.Limit(gc.RequestsPerSec), gc.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	})
}

// Collect fetches every adapter's view of one symbol. Individual
// adapter failures degrade the result rather than failing it, unless
// the primary (real-time quote) source is down.
func (f *Facade) Collect(ctx context.Context, symbol string) ([]Response, error) {
	f.mu.RLock()
	guards := append([]*guard(nil), f.guards...)
	f.mu.RUnlock()

	var responses []Response
	primaryServed := false
	primaryPresent := false

	for _, g := range guards {
		isPrimary := g.adapter.Tier() == domain.TierRealtime && hasKind(g.adapter, KindQuote)
		if isPrimary {
			primaryPresent = true
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return responses, fmt.Errorf("rate limit wait for %s: %w", g.adapter.Name(), err)
		}

		out, err := g.breaker.Execute(func() (interface{}, error) {
			return g.adapter.Fetch(ctx, symbol)
		})
		if err != nil {
			log.Debug().Err(err).Str("provider", g.adapter.Name()).
				Str("symbol", symbol).Msg("provider fetch failed")
			continue
		}
		batch := out.([]Response)
		responses = append(responses, batch...)
		if isPrimary && len(batch) > 0 {
			primaryServed = true
		}
	}

	if primaryPresent && !primaryServed {
		return responses, ErrPrimaryDown
	}
	return responses, nil
}

// HealthReport returns each adapter's self-reported health.
func (f *Facade) HealthReport() map[string]Health {
	f.mu.RLock()
	defer f.mu.RUnlock()
	report := make(map[string]Health, len(f.guards))
	for _, g := range f.guards {
		h := g.adapter.Health()
		if g.breaker.State() == gobreaker.StateOpen {
			h = Failed
		}
		report[g.adapter.Name()] = h
	}
	return report
}

func hasKind(a Adapter, kind Kind) bool {
	for _, k := range a.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
