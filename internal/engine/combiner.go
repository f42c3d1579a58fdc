package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// Combine folds per-instrument decisions into one aggregate. Action is
// a plurality vote over BUY/SELL/HOLD; ties break toward the action
// seen first in instrument iteration order, which is deterministic but
// arbitrary. Confidence is the arithmetic mean over every included
// instrument, HOLDs included. The per-instrument detail is kept whole:
// the executor acts on each instrument's own decision, not the
// aggregate label.
func Combine(order []string, decisions map[string]domain.FilteredDecision, now time.Time) domain.AggregateDecision {
	agg := domain.AggregateDecision{
		TickID:    uuid.NewString(),
		Action:    domain.ActionHold,
		Detail:    decisions,
		Timestamp: now,
	}
	if len(decisions) == 0 {
		return agg
	}

	counts := make(map[domain.Action]int, 3)
	firstSeen := make(map[domain.Action]int, 3)
	total := 0.0
	seen := 0

	for _, instrument := range order {
		dec, ok := decisions[instrument]
		if !ok {
			continue
		}
		if _, exists := firstSeen[dec.Action]; !exists {
			firstSeen[dec.Action] = seen
		}
		counts[dec.Action]++
		total += dec.Confidence
		seen++
	}

	best := domain.ActionHold
	bestCount := -1
	bestOrder := len(order) + 1
	for action, count := range counts {
		if count > bestCount || (count == bestCount && firstSeen[action] < bestOrder) {
			best = action
			bestCount = count
			bestOrder = firstSeen[action]
		}
	}

	agg.Action = best
	agg.Confidence = total / float64(seen)
	return agg
}
