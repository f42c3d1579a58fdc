// Package perf computes realized and unrealized P&L, win rate, profit
// factor, and max drawdown from the trade ledger. It is read-only with
// respect to the ledger: trades are never mutated, and every summary is
// recomputed from scratch on demand.
package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/ledger"
)

// Lot is an open BUY quantity awaiting FIFO matching.
type Lot struct {
	Quantity float64
	Price    float64
}

// RealizedEvent is the P&L realized by one SELL fill after FIFO
// matching against the instrument's open-lot queue.
type RealizedEvent struct {
	Instrument string
	Quantity   float64
	PL         float64
	Timestamp  time.Time
}

// MatchFIFO replays the fill history: BUYs queue open lots, each SELL
// consumes from the front of the queue, quantity-weighted. Returns the
// realized events in fill order and the remaining open lots per
// instrument. SELL quantity beyond the open lots is ignored rather than
// opening a short; this engine does not model short positions.
func MatchFIFO(trades []domain.Trade) ([]RealizedEvent, map[string][]Lot) {
	open := make(map[string][]Lot)
	var events []RealizedEvent

	for _, t := range trades {
		switch t.Action {
		case domain.ActionBuy:
			open[t.Instrument] = append(open[t.Instrument], Lot{Quantity: t.Quantity, Price: t.Price})

		case domain.ActionSell:
			remaining := t.Quantity
			pl := 0.0
			matched := 0.0
			queue := open[t.Instrument]
			for remaining > 0 && len(queue) > 0 {
				lot := &queue[0]
				take := lot.Quantity
				if take > remaining {
					take = remaining
				}
				pl += (t.Price - lot.Price) * take
				matched += take
				remaining -= take
				lot.Quantity -= take
				if lot.Quantity <= 0 {
					queue = queue[1:]
				}
			}
			open[t.Instrument] = queue
			if matched > 0 {
				events = append(events, RealizedEvent{
					Instrument: t.Instrument,
					Quantity:   matched,
					PL:         pl,
					Timestamp:  t.Timestamp,
				})
			}
		}
	}

	return events, open
}

// Compute builds the performance summary from a fill history and the
// instruments' current prices. Pure function; prices missing for an
// instrument leave its open lots out of unrealized P&L.
func Compute(trades []domain.Trade, prices map[string]float64, startingBalance float64) domain.PerformanceSummary {
	events, open := MatchFIFO(trades)

	var realized, grossWins, grossLosses float64
	wins := 0
	for _, ev := range events {
		realized += ev.PL
		if ev.PL > 0 {
			wins++
			grossWins += ev.PL
		} else if ev.PL < 0 {
			grossLosses -= ev.PL
		}
	}

	summary := domain.PerformanceSummary{RealizedPL: realized}

	if len(events) > 0 {
		summary.WinRate = float64(wins) / float64(len(events))
	}
	if grossLosses > 0 {
		summary.ProfitFactor = grossWins / grossLosses
	} else if grossWins > 0 {
		summary.ProfitFactor = grossWins
	}

	summary.MaxDrawdown = maxDrawdown(events, startingBalance)

	for instrument, lots := range open {
		price, ok := prices[instrument]
		if !ok {
			continue
		}
		qty, cost := 0.0, 0.0
		for _, lot := range lots {
			qty += lot.Quantity
			cost += lot.Quantity * lot.Price
		}
		if qty > 0 {
			avg := cost / qty
			summary.UnrealizedPL += (price - avg) * qty
		}
	}

	return summary
}

// maxDrawdown walks the running equity curve (starting balance plus
// cumulative realized P&L, one point per realized event) and returns
// the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(events []RealizedEvent, startingBalance float64) float64 {
	equity := startingBalance
	peak := equity
	worst := 0.0

	for _, ev := range events {
		equity += ev.PL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Aggregator binds the pure computations to a ledger store.
type Aggregator struct {
	store           ledger.Store
	startingBalance float64
}

// NewAggregator creates a read-only performance view over the ledger.
func NewAggregator(store ledger.Store, startingBalance float64) *Aggregator {
	return &Aggregator{store: store, startingBalance: startingBalance}
}

// Summary recomputes the performance summary from the full ledger.
func (a *Aggregator) Summary(ctx context.Context, prices map[string]float64) (domain.PerformanceSummary, error) {
	trades, err := a.store.List(ctx, "", 0)
	if err != nil {
		return domain.PerformanceSummary{}, fmt.Errorf("performance read: %w", err)
	}
	return Compute(trades, prices, a.startingBalance), nil
}

// RealizedEvents recomputes the FIFO match history, newest last.
func (a *Aggregator) RealizedEvents(ctx context.Context) ([]RealizedEvent, error) {
	trades, err := a.store.List(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("performance read: %w", err)
	}
	events, _ := MatchFIFO(trades)
	return events, nil
}
