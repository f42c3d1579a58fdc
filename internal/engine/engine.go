// Package engine runs the per-tick decision pipeline: indicators,
// regime, strategy evaluation, history filtering, position gating, and
// the multi-instrument combiner.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/datasource"
	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/domain/indicators"
	"github.com/sawpanic/tradepulse/internal/domain/regime"
	"github.com/sawpanic/tradepulse/internal/gates"
	"github.com/sawpanic/tradepulse/internal/history"
	"github.com/sawpanic/tradepulse/internal/metrics"
	"github.com/sawpanic/tradepulse/internal/rulestore"
	"github.com/sawpanic/tradepulse/internal/strategy"
)

// Engine wires the pipeline stages over the external collaborators. All
// mutable state (the history window, the ledger) is owned by injected
// collaborators; the engine itself holds none, so two calls with
// identical inputs and an untouched window yield identical decisions.
type Engine struct {
	instruments []string
	source      datasource.Source
	rules       rulestore.Store
	gate        *gates.PositionGate
	window      *history.Window
	tickTimeout time.Duration

	mu     sync.RWMutex
	latest *domain.AggregateDecision

	now func() time.Time
}

// Options configures engine construction.
type Options struct {
	// Instruments fixes the instrument set and its iteration order,
	// which is also the combiner's tie-break order.
	Instruments []string

	// TickTimeout bounds one full tick so a stalled fetch cannot delay
	// subsequent ticks beyond the scheduling interval.
	TickTimeout time.Duration
}

// New creates an engine over the given collaborators.
func New(source datasource.Source, rules rulestore.Store, gate *gates.PositionGate, window *history.Window, opts Options) *Engine {
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = 30 * time.Second
	}
	return &Engine{
		instruments: opts.Instruments,
		source:      source,
		rules:       rules,
		gate:        gate,
		window:      window,
		tickTimeout: opts.TickTimeout,
		now:         time.Now,
	}
}

// EvaluateInstrument runs the full single-instrument pipeline: fetch,
// indicators, regime, rule evaluation, history filter, position gate.
func (e *Engine) EvaluateInstrument(ctx context.Context, instrument string) (domain.FilteredDecision, error) {
	snap, err := e.source.GetSnapshot(ctx, instrument)
	if err != nil {
		return domain.FilteredDecision{}, fmt.Errorf("%w: %s", domain.ErrDataUnavailable, instrument)
	}
	if len(snap.Bars) == 0 {
		return domain.FilteredDecision{}, fmt.Errorf("%w: %s returned empty series", domain.ErrDataUnavailable, instrument)
	}

	set := indicators.Compute(snap.Bars)
	if !set.Valid {
		return domain.FilteredDecision{}, fmt.Errorf("%w: %s has %d bars", domain.ErrInsufficientHistory, instrument, set.BarCount)
	}

	rule, err := e.rules.GetRule(ctx, instrument)
	if err != nil {
		return domain.FilteredDecision{}, fmt.Errorf("rule fetch for %s: %w", instrument, err)
	}

	marketRegime := regime.Classify(set, snap.Price)

	raw := strategy.Evaluate(rule, strategy.Inputs{
		Instrument: instrument,
		Price:      snap.Price,
		Volume:     lastVolume(snap.Bars),
		Set:        set,
	})

	filtered := e.window.Filter(raw, marketRegime, e.now())
	gated := e.gate.Apply(ctx, filtered, marketRegime)

	if gated.Action != filtered.Action {
		cause := "no_position"
		if gated.Reason == "exposure limit" {
			cause = "exposure_limit"
		} else if gated.Reason == "ledger unavailable" {
			cause = "ledger_unavailable"
		}
		metrics.GateVetoes.WithLabelValues(cause).Inc()
	}
	metrics.Decisions.WithLabelValues(string(gated.Action)).Inc()

	log.Debug().
		Str("instrument", instrument).
		Str("regime", string(marketRegime)).
		Str("raw_action", string(raw.Action)).
		Str("action", string(gated.Action)).
		Float64("confidence", gated.Confidence).
		Msg("instrument evaluated")

	return gated, nil
}

// EvaluateTick evaluates every instrument in parallel, waits for all of
// them, and combines the survivors. Instruments whose data is
// unavailable or too short are skipped and simply contribute nothing to
// the vote. A tick with no surviving instrument is a failure: no
// partial aggregate is emitted.
func (e *Engine) EvaluateTick(ctx context.Context) (domain.AggregateDecision, error) {
	timer := prometheus.NewTimer(metrics.TickDuration)
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, e.tickTimeout)
	defer cancel()

	type result struct {
		instrument string
		decision   domain.FilteredDecision
		err        error
	}

	results := make(chan result, len(e.instruments))
	var wg sync.WaitGroup
	for _, instrument := range e.instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			dec, err := e.EvaluateInstrument(ctx, instrument)
			results <- result{instrument: instrument, decision: dec, err: err}
		}(instrument)
	}
	wg.Wait()
	close(results)

	decisions := make(map[string]domain.FilteredDecision, len(e.instruments))
	for res := range results {
		if res.err != nil {
			metrics.SkippedInstruments.WithLabelValues(skipReason(res.err)).Inc()
			log.Warn().Err(res.err).Str("instrument", res.instrument).
				Msg("instrument skipped this tick")
			continue
		}
		decisions[res.instrument] = res.decision
	}

	if len(decisions) == 0 {
		metrics.TickFailures.Inc()
		return domain.AggregateDecision{}, fmt.Errorf("tick failed: no instrument produced a decision")
	}

	agg := Combine(e.instruments, decisions, e.now())

	e.mu.Lock()
	e.latest = &agg
	e.mu.Unlock()

	log.Info().
		Str("tick_id", agg.TickID).
		Str("action", string(agg.Action)).
		Float64("confidence", agg.Confidence).
		Int("instruments", len(decisions)).
		Msg("tick complete")

	return agg, nil
}

// LatestDecision returns the most recent aggregate, or nil before the
// first successful tick.
func (e *Engine) LatestDecision() *domain.AggregateDecision {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.latest == nil {
		return nil
	}
	out := *e.latest
	return &out
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, domain.ErrDataUnavailable):
		return "data_unavailable"
	default:
		return "other"
	}
}

func lastVolume(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Volume
}
