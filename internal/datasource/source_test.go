package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradepulse/internal/domain"
)

type countingSource struct {
	calls int
	err   error
	snap  domain.MarketSnapshot
}

func (c *countingSource) GetSnapshot(context.Context, string) (domain.MarketSnapshot, error) {
	c.calls++
	if c.err != nil {
		return domain.MarketSnapshot{}, c.err
	}
	return c.snap, nil
}

func TestMemorySource_MissingInstrument(t *testing.T) {
	source := NewMemorySource()
	_, err := source.GetSnapshot(context.Background(), "BTC-USD")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestMemorySource_ReturnsCopy(t *testing.T) {
	source := NewMemorySource()
	source.Set(domain.MarketSnapshot{
		Instrument: "BTC-USD",
		Price:      100,
		Bars:       []domain.Bar{{Close: 100}},
	})

	first, err := source.GetSnapshot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	first.Bars[0].Close = 999

	second, err := source.GetSnapshot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, second.Bars[0].Close, 1e-9)
}

func TestMemorySource_SetReplaces(t *testing.T) {
	source := NewMemorySource()
	source.Set(domain.MarketSnapshot{Instrument: "BTC-USD", Price: 100})
	source.Set(domain.MarketSnapshot{Instrument: "BTC-USD", Price: 110})

	snap, err := source.GetSnapshot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, snap.Price, 1e-9)
}

func TestBreakerSource_PassesThrough(t *testing.T) {
	inner := &countingSource{snap: domain.MarketSnapshot{Instrument: "BTC-USD", Price: 100}}
	source := NewBreakerSource(inner, "test")

	snap, err := source.GetSnapshot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, snap.Price, 1e-9)
}

func TestBreakerSource_WrapsFailures(t *testing.T) {
	inner := &countingSource{err: errors.New("upstream down")}
	source := NewBreakerSource(inner, "test")

	_, err := source.GetSnapshot(context.Background(), "BTC-USD")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestBreakerSource_TripsOpenAndFailsFast(t *testing.T) {
	inner := &countingSource{err: errors.New("upstream down")}
	source := NewBreakerSource(inner, "test")

	for i := 0; i < 5; i++ {
		_, err := source.GetSnapshot(context.Background(), "BTC-USD")
		require.Error(t, err)
	}
	callsWhenTripped := inner.calls

	// Open breaker fails fast without hitting the inner source.
	_, err := source.GetSnapshot(context.Background(), "BTC-USD")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, callsWhenTripped, inner.calls)
}

func TestRateLimitedSource_PassesThrough(t *testing.T) {
	inner := &countingSource{snap: domain.MarketSnapshot{Instrument: "BTC-USD", Price: 100}}
	source := NewRateLimitedSource(inner, 100, 1)

	snap, err := source.GetSnapshot(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, snap.Price, 1e-9)
}

func TestRateLimitedSource_CancelledWait(t *testing.T) {
	inner := &countingSource{snap: domain.MarketSnapshot{Instrument: "BTC-USD"}}
	// Zero-rate limiter never grants a token, so the wait must abort with
	// the context instead of blocking the tick.
	source := NewRateLimitedSource(inner, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := source.GetSnapshot(ctx, "BTC-USD")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Zero(t, inner.calls)
}
