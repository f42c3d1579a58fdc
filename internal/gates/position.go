// Package gates vetoes or demotes proposed actions based on state
// outside the raw signal: current position and configured exposure
// limits. The gate is the only pipeline stage permitted to change an
// action, and it runs last so upstream confidence penalties stay
// visible in logs even when the action is vetoed.
package gates

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/ledger"
)

const exposurePenalty = 20.0

// Config holds the gate's hard limits.
type Config struct {
	// MaxExposure is the held quantity above which further BUYs are
	// demoted to HOLD.
	MaxExposure float64 `yaml:"max_exposure"`
}

// DefaultConfig returns conservative gate limits.
func DefaultConfig() Config {
	return Config{MaxExposure: 10.0}
}

// PositionGate demotes decisions that the current ledger state cannot
// support.
type PositionGate struct {
	store ledger.Store
	cfg   Config
}

// NewPositionGate creates a gate over the given ledger.
func NewPositionGate(store ledger.Store, cfg Config) *PositionGate {
	return &PositionGate{store: store, cfg: cfg}
}

// Apply gates one instrument's decision against its derived position.
// The ledger is read once, point-in-time, so the check cannot race a
// concurrent fill. A ledger read failure fails closed: any non-HOLD
// action is demoted, never passed through on an assumed-zero position.
func (g *PositionGate) Apply(ctx context.Context, dec domain.RawDecision, regime domain.Regime) domain.FilteredDecision {
	out := domain.FilteredDecision{
		Instrument: dec.Instrument,
		Action:     dec.Action,
		Confidence: dec.Confidence,
		Reason:     dec.Reason,
		Regime:     regime,
	}

	if dec.Action == domain.ActionHold {
		pos, err := ledger.Position(ctx, g.store, dec.Instrument)
		if err == nil {
			out.Position = pos
		}
		return out
	}

	pos, err := ledger.Position(ctx, g.store, dec.Instrument)
	if err != nil {
		log.Warn().Err(err).Str("instrument", dec.Instrument).
			Msg("ledger read failed, gating closed")
		out.Action = domain.ActionHold
		out.Confidence = 0
		out.Reason = "ledger unavailable"
		return out
	}
	out.Position = pos

	// Short-selling is not modeled; a negative derived position counts
	// as zero when deciding whether a SELL is permitted.
	if pos < 0 {
		pos = 0
	}

	switch dec.Action {
	case domain.ActionSell:
		if pos <= 0 {
			out.Action = domain.ActionHold
			out.Confidence = 0
			out.Reason = "no position to sell"
		}
	case domain.ActionBuy:
		if pos > g.cfg.MaxExposure {
			out.Action = domain.ActionHold
			out.Confidence = clampFloor(dec.Confidence - exposurePenalty)
			out.Reason = "exposure limit"
		}
	}

	return out
}

func clampFloor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
