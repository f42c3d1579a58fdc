package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradepulse/internal/datasource"
	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/history"
	"github.com/sawpanic/tradepulse/internal/ledger"
)

func snapshot(instrument string, price float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Instrument: instrument,
		Price:      price,
		Timestamp:  time.Now(),
	}
}

func aggregate(decisions ...domain.FilteredDecision) domain.AggregateDecision {
	detail := make(map[string]domain.FilteredDecision, len(decisions))
	for _, d := range decisions {
		detail[d.Instrument] = d
	}
	return domain.AggregateDecision{
		TickID:    "tick-1",
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

func TestPaper_BuyAppendsFill(t *testing.T) {
	store := ledger.NewMemoryStore()
	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100))
	paper := NewPaper(store, source, history.NewWindow(0), 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionBuy, Confidence: 80,
	})
	require.NoError(t, paper.Execute(context.Background(), agg))

	trades, err := store.List(context.Background(), "BTC-USD", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.ActionBuy, trades[0].Action)
	assert.InDelta(t, 1.0, trades[0].Quantity, 1e-9)
	assert.InDelta(t, 100.0, trades[0].Price, 1e-9)
}

func TestPaper_SkipsHoldAndLowConfidence(t *testing.T) {
	store := ledger.NewMemoryStore()
	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100))
	source.Set(snapshot("ETH-USD", 10))
	paper := NewPaper(store, source, history.NewWindow(0), 1.0, 60)

	agg := aggregate(
		domain.FilteredDecision{Instrument: "BTC-USD", Action: domain.ActionHold, Confidence: 90},
		domain.FilteredDecision{Instrument: "ETH-USD", Action: domain.ActionBuy, Confidence: 40},
	)
	require.NoError(t, paper.Execute(context.Background(), agg))

	trades, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPaper_SellClampedToPosition(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Append(ctx, domain.Trade{
		Instrument: "BTC-USD", Action: domain.ActionBuy, Quantity: 0.4, Price: 90, Timestamp: time.Now(),
	}))
	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100))
	paper := NewPaper(store, source, history.NewWindow(0), 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80,
	})
	require.NoError(t, paper.Execute(ctx, agg))

	trades, err := store.List(ctx, "BTC-USD", 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.InDelta(t, 0.4, trades[1].Quantity, 1e-9, "fill size clamped to the open position")
}

func TestPaper_SellWithNoPositionSkipped(t *testing.T) {
	store := ledger.NewMemoryStore()
	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100))
	paper := NewPaper(store, source, history.NewWindow(0), 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80,
	})
	require.NoError(t, paper.Execute(context.Background(), agg))

	trades, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPaper_LosingSellMarksHistoryWrong(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Append(ctx, domain.Trade{
		Instrument: "BTC-USD", Action: domain.ActionBuy, Quantity: 1, Price: 150, Timestamp: time.Now(),
	}))

	window := history.NewWindow(0)
	window.Record(domain.SignalRecord{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80, Timestamp: time.Now(),
	})

	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100)) // selling below entry
	paper := NewPaper(store, source, window, 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80,
	})
	require.NoError(t, paper.Execute(ctx, agg))

	recs := window.Recent("BTC-USD", time.Time{})
	require.Len(t, recs, 1)
	assert.True(t, recs[0].KnownWrong)
}

func TestPaper_WinningSellLeavesHistoryClean(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Append(ctx, domain.Trade{
		Instrument: "BTC-USD", Action: domain.ActionBuy, Quantity: 1, Price: 90, Timestamp: time.Now(),
	}))

	window := history.NewWindow(0)
	window.Record(domain.SignalRecord{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80, Timestamp: time.Now(),
	})

	source := datasource.NewMemorySource()
	source.Set(snapshot("BTC-USD", 100))
	paper := NewPaper(store, source, window, 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionSell, Confidence: 80,
	})
	require.NoError(t, paper.Execute(ctx, agg))

	recs := window.Recent("BTC-USD", time.Time{})
	require.Len(t, recs, 1)
	assert.False(t, recs[0].KnownWrong)
}

func TestPaper_MissingPriceSkipsInstrument(t *testing.T) {
	store := ledger.NewMemoryStore()
	paper := NewPaper(store, datasource.NewMemorySource(), history.NewWindow(0), 1.0, 60)

	agg := aggregate(domain.FilteredDecision{
		Instrument: "BTC-USD", Action: domain.ActionBuy, Confidence: 80,
	})
	require.NoError(t, paper.Execute(context.Background(), agg))

	trades, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
