// Package datasource defines the market data contract the engine polls
// and the protective wrappers around any concrete source: a circuit
// breaker so a failing feed degrades to skipped instruments instead of
// hung ticks, and a rate limiter so polling respects upstream budgets.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// Source produces the latest market snapshot for an instrument.
type Source interface {
	GetSnapshot(ctx context.Context, instrument string) (domain.MarketSnapshot, error)
}

// BreakerSource trips open after consecutive fetch failures and fails
// fast while open, reporting ErrDataUnavailable so the affected
// instrument simply drops out of the tick's vote.
type BreakerSource struct {
	inner   Source
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSource wraps a source with a circuit breaker.
func NewBreakerSource(inner Source, name string) *BreakerSource {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("data source breaker state change")
		},
	}
	return &BreakerSource{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// GetSnapshot fetches through the breaker.
func (b *BreakerSource) GetSnapshot(ctx context.Context, instrument string) (domain.MarketSnapshot, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.GetSnapshot(ctx, instrument)
	})
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	return result.(domain.MarketSnapshot), nil
}

// RateLimitedSource throttles snapshot fetches.
type RateLimitedSource struct {
	inner   Source
	limiter *rate.Limiter
}

// NewRateLimitedSource allows rps requests per second with the given
// burst.
func NewRateLimitedSource(inner Source, rps float64, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GetSnapshot waits for limiter headroom, then fetches.
func (r *RateLimitedSource) GetSnapshot(ctx context.Context, instrument string) (domain.MarketSnapshot, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: rate limit wait: %v", domain.ErrDataUnavailable, err)
	}
	return r.inner.GetSnapshot(ctx, instrument)
}

// MemorySource serves snapshots set by a feed or a test. Snapshots are
// stored and returned by value, so callers can never observe a
// mid-update state.
type MemorySource struct {
	mu        sync.RWMutex
	snapshots map[string]domain.MarketSnapshot
}

// NewMemorySource creates an empty snapshot cache.
func NewMemorySource() *MemorySource {
	return &MemorySource{snapshots: make(map[string]domain.MarketSnapshot)}
}

// Set replaces an instrument's snapshot.
func (m *MemorySource) Set(snapshot domain.MarketSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Instrument] = snapshot
}

// GetSnapshot returns the stored snapshot or ErrDataUnavailable when
// nothing has been recorded for the instrument yet.
func (m *MemorySource) GetSnapshot(_ context.Context, instrument string) (domain.MarketSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[instrument]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("%w: no snapshot for %s", domain.ErrDataUnavailable, instrument)
	}
	out := snap
	out.Bars = make([]domain.Bar, len(snap.Bars))
	copy(out.Bars, snap.Bars)
	return out, nil
}
