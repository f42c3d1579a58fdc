// Package history dampens raw decision confidence using each
// instrument's recent decision frequency, known-wrong outcomes, and the
// prevailing market regime. Every rule only ever lowers confidence.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/sawpanic/tradepulse/internal/domain"
)

const (
	// DefaultCapacity bounds the per-instrument record window.
	DefaultCapacity = 100

	frequencyWindow    = time.Hour
	frequencyLimit     = 5
	frequencyPenalty   = 20.0
	knownWrongLimit    = 2
	knownWrongPenalty  = 15.0
	regimeClashPenalty = 10.0
)

// Window holds the bounded per-instrument signal record history. It is
// created by the scheduler at startup and passed into each pipeline
// call; safe for concurrent use across instruments.
type Window struct {
	mu       sync.Mutex
	capacity int
	records  map[string][]domain.SignalRecord
}

// NewWindow creates an empty history window. Capacity ≤ 0 falls back to
// DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		records:  make(map[string][]domain.SignalRecord),
	}
}

// Filter applies the history penalties to a raw decision, records the
// outcome in the window, and returns the adjusted decision. Penalties
// apply in a fixed order and confidence is clamped to ≥0 after each:
// decision frequency, known-wrong count, regime mismatch.
func (w *Window) Filter(raw domain.RawDecision, regime domain.Regime, now time.Time) domain.RawDecision {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := raw

	recent := 0
	wrong := 0
	cutoff := now.Add(-frequencyWindow)
	for _, rec := range w.records[raw.Instrument] {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		recent++
		if rec.KnownWrong {
			wrong++
		}
	}

	if recent > frequencyLimit {
		out.Confidence = clampFloor(out.Confidence - frequencyPenalty)
		out.Reason += fmt.Sprintf("; dampened: %d signals in last hour", recent)
	}
	if wrong > knownWrongLimit {
		out.Confidence = clampFloor(out.Confidence - knownWrongPenalty)
		out.Reason += fmt.Sprintf("; dampened: %d recent signals known wrong", wrong)
	}
	if regime == domain.RegimeBear && out.Action == domain.ActionBuy {
		out.Confidence = clampFloor(out.Confidence - regimeClashPenalty)
		out.Reason += "; dampened: buying into bear regime"
	}
	if regime == domain.RegimeBull && out.Action == domain.ActionSell {
		out.Confidence = clampFloor(out.Confidence - regimeClashPenalty)
		out.Reason += "; dampened: selling into bull regime"
	}

	w.append(domain.SignalRecord{
		Instrument: out.Instrument,
		Action:     out.Action,
		Confidence: out.Confidence,
		Timestamp:  now,
	})

	return out
}

// MarkWrong flags the most recent not-yet-flagged record for an
// instrument as a known-wrong outcome. Called by the performance
// aggregator when a realized lot closes at a loss.
func (w *Window) MarkWrong(instrument string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	recs := w.records[instrument]
	for i := len(recs) - 1; i >= 0; i-- {
		if !recs[i].KnownWrong {
			recs[i].KnownWrong = true
			return
		}
	}
}

// Recent returns a copy of the instrument's records at or after the
// cutoff, oldest first.
func (w *Window) Recent(instrument string, since time.Time) []domain.SignalRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []domain.SignalRecord
	for _, rec := range w.records[instrument] {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out
}

// Record appends a record directly, bypassing filtering. Exists for
// seeding state in tests and replay tooling.
func (w *Window) Record(rec domain.SignalRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.append(rec)
}

func (w *Window) append(rec domain.SignalRecord) {
	recs := append(w.records[rec.Instrument], rec)
	if len(recs) > w.capacity {
		recs = recs[len(recs)-w.capacity:]
	}
	w.records[rec.Instrument] = recs
}

func clampFloor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
