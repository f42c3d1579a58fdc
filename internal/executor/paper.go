// Package executor translates per-instrument decisions into fills. The
// paper executor simulates fills at the current snapshot price and
// appends them to the ledger, which closes the loop for the position
// gate and the performance aggregator without touching an exchange.
package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/datasource"
	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/history"
	"github.com/sawpanic/tradepulse/internal/ledger"
	"github.com/sawpanic/tradepulse/internal/perf"
)

// Paper simulates order execution against the ledger.
type Paper struct {
	store  ledger.Store
	source datasource.Source
	window *history.Window

	quantity      float64
	minConfidence float64
}

// NewPaper creates a paper executor. quantity is the fixed fill size
// per order; decisions under minConfidence are not acted on.
func NewPaper(store ledger.Store, source datasource.Source, window *history.Window, quantity, minConfidence float64) *Paper {
	return &Paper{
		store:         store,
		source:        source,
		window:        window,
		quantity:      quantity,
		minConfidence: minConfidence,
	}
}

// Execute acts on each instrument's own decision in the aggregate. A
// SELL fill is clamped to the derived position; a SELL that realizes a
// loss flags the instrument's most recent signal record as known wrong,
// feeding the history filter's outcome penalty.
func (p *Paper) Execute(ctx context.Context, agg domain.AggregateDecision) error {
	for instrument, dec := range agg.Detail {
		if dec.Action == domain.ActionHold || dec.Confidence < p.minConfidence {
			continue
		}

		snap, err := p.source.GetSnapshot(ctx, instrument)
		if err != nil {
			log.Warn().Err(err).Str("instrument", instrument).Msg("paper fill skipped: no price")
			continue
		}

		qty := p.quantity
		if dec.Action == domain.ActionSell {
			pos, err := ledger.Position(ctx, p.store, instrument)
			if err != nil {
				log.Warn().Err(err).Str("instrument", instrument).Msg("paper fill skipped: ledger read")
				continue
			}
			if pos <= 0 {
				continue
			}
			if qty > pos {
				qty = pos
			}
		}

		trade := domain.Trade{
			Instrument: instrument,
			Action:     dec.Action,
			Quantity:   qty,
			Price:      snap.Price,
			Timestamp:  agg.Timestamp,
		}
		if err := p.store.Append(ctx, trade); err != nil {
			return fmt.Errorf("paper fill for %s: %w", instrument, err)
		}

		log.Info().Str("instrument", instrument).
			Str("action", string(dec.Action)).
			Float64("qty", qty).Float64("price", snap.Price).
			Msg("paper fill")

		if dec.Action == domain.ActionSell {
			p.markOutcome(ctx, instrument)
		}
	}
	return nil
}

// markOutcome inspects the latest realized event for the instrument and
// flags the signal history when it closed at a loss.
func (p *Paper) markOutcome(ctx context.Context, instrument string) {
	if p.window == nil {
		return
	}
	trades, err := p.store.List(ctx, instrument, 0)
	if err != nil {
		return
	}
	events, _ := perf.MatchFIFO(trades)
	if len(events) == 0 {
		return
	}
	if last := events[len(events)-1]; last.PL < 0 {
		p.window.MarkWrong(instrument)
	}
}
