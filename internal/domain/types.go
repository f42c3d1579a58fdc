package domain

import (
	"errors"
	"time"
)

// Action is the tradable decision emitted for an instrument.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Sentinel errors for the pipeline's failure taxonomy.
var (
	// ErrDataUnavailable means the snapshot fetch failed or returned an
	// empty series; the instrument is skipped for the tick.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientHistory means fewer than MinIndicatorBars bars were
	// available; handled identically to ErrDataUnavailable.
	ErrInsufficientHistory = errors.New("insufficient bar history")

	// ErrInvalidRule means a strategy rule failed validation; writes
	// carrying it must be rejected, never silently accepted.
	ErrInvalidRule = errors.New("invalid strategy rule")

	// ErrLedgerRead means the trade ledger could not be read; the
	// position gate fails closed on it.
	ErrLedgerRead = errors.New("ledger read failure")
)

// MinIndicatorBars is the minimum series length required before any
// indicator is reported. Shorter series yield an empty set, never zeros.
const MinIndicatorBars = 50

// Bar is one OHLCV entry of an instrument's trailing series.
type Bar struct {
	Timestamp time.Time `json:"ts"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// MarketSnapshot is one poll-cycle view of an instrument. Immutable once
// created; Bars is ordered oldest to newest.
type MarketSnapshot struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid,omitempty"`
	Ask        float64   `json:"ask,omitempty"`
	Timestamp  time.Time `json:"ts"`
	Bars       []Bar     `json:"bars"`
}

// Trade is one filled order as recorded in the trade ledger.
type Trade struct {
	ID         int64     `db:"id" json:"id"`
	Instrument string    `db:"instrument" json:"instrument"`
	Action     Action    `db:"action" json:"action"`
	Quantity   float64   `db:"qty" json:"qty"`
	Price      float64   `db:"price" json:"price"`
	Timestamp  time.Time `db:"ts" json:"ts"`
}

// RawDecision is the strategy evaluator's output for one instrument,
// before history filtering and position gating.
type RawDecision struct {
	Instrument string  `json:"instrument"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"` // [0,100]
	Reason     string  `json:"reason"`
}

// FilteredDecision is a RawDecision after the signal history filter and
// position gate have run.
type FilteredDecision struct {
	Instrument string  `json:"instrument"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Position   float64 `json:"position"`
	Regime     Regime  `json:"regime"`
}

// AggregateDecision is the per-tick unit handed to the executor. Detail
// keeps every instrument's own decision; the executor acts on those, not
// on the aggregate label.
type AggregateDecision struct {
	TickID     string                      `json:"tick_id"`
	Action     Action                      `json:"action"`
	Confidence float64                     `json:"confidence"`
	Detail     map[string]FilteredDecision `json:"detail"`
	Timestamp  time.Time                   `json:"ts"`
}

// SignalRecord is one entry of an instrument's recent-decision window,
// used only for frequency and penalty computation.
type SignalRecord struct {
	Instrument string    `json:"instrument"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"ts"`
	KnownWrong bool      `json:"known_wrong"`
}

// PerformanceSummary is the read-only view recomputed from the ledger.
type PerformanceSummary struct {
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	RealizedPL   float64 `json:"realized_pl"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// Regime is the coarse market-state label for one instrument.
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeSideways Regime = "SIDEWAYS"
)

// Closes extracts the close series from a bar slice.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series from a bar slice.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
