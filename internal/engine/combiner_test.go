package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tradepulse/internal/domain"
)

func filtered(instrument string, action domain.Action, confidence float64) domain.FilteredDecision {
	return domain.FilteredDecision{
		Instrument: instrument,
		Action:     action,
		Confidence: confidence,
	}
}

func TestCombine_PluralityVote(t *testing.T) {
	order := []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	decisions := map[string]domain.FilteredDecision{
		"BTC-USD": filtered("BTC-USD", domain.ActionBuy, 80),
		"ETH-USD": filtered("ETH-USD", domain.ActionBuy, 60),
		"SOL-USD": filtered("SOL-USD", domain.ActionSell, 90),
	}

	agg := Combine(order, decisions, time.Now())
	assert.Equal(t, domain.ActionBuy, agg.Action)
	assert.InDelta(t, (80.0+60+90)/3, agg.Confidence, 1e-9)
	assert.NotEmpty(t, agg.TickID)
	assert.Len(t, agg.Detail, 3)
}

func TestCombine_TieBreaksTowardFirstSeen(t *testing.T) {
	order := []string{"BTC-USD", "ETH-USD"}
	decisions := map[string]domain.FilteredDecision{
		"BTC-USD": filtered("BTC-USD", domain.ActionSell, 50),
		"ETH-USD": filtered("ETH-USD", domain.ActionBuy, 50),
	}

	agg := Combine(order, decisions, time.Now())
	assert.Equal(t, domain.ActionSell, agg.Action, "SELL is first in instrument order")
}

func TestCombine_HoldsCountInMean(t *testing.T) {
	order := []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	decisions := map[string]domain.FilteredDecision{
		"BTC-USD": filtered("BTC-USD", domain.ActionHold, 0),
		"ETH-USD": filtered("ETH-USD", domain.ActionHold, 0),
		"SOL-USD": filtered("SOL-USD", domain.ActionBuy, 90),
	}

	agg := Combine(order, decisions, time.Now())
	assert.Equal(t, domain.ActionHold, agg.Action)
	assert.InDelta(t, 30.0, agg.Confidence, 1e-9, "HOLDs drag the mean down")
}

func TestCombine_SkippedInstrumentsContributeNothing(t *testing.T) {
	order := []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	decisions := map[string]domain.FilteredDecision{
		"ETH-USD": filtered("ETH-USD", domain.ActionSell, 70),
	}

	agg := Combine(order, decisions, time.Now())
	assert.Equal(t, domain.ActionSell, agg.Action)
	assert.InDelta(t, 70.0, agg.Confidence, 1e-9)
}

func TestCombine_EmptyIsHoldZero(t *testing.T) {
	agg := Combine([]string{"BTC-USD"}, nil, time.Now())
	assert.Equal(t, domain.ActionHold, agg.Action)
	assert.Zero(t, agg.Confidence)
	require.NotEmpty(t, agg.TickID)
}

func TestCombine_FreshTickIDPerCall(t *testing.T) {
	order := []string{"BTC-USD"}
	decisions := map[string]domain.FilteredDecision{
		"BTC-USD": filtered("BTC-USD", domain.ActionBuy, 80),
	}
	first := Combine(order, decisions, time.Now())
	second := Combine(order, decisions, time.Now())
	assert.NotEqual(t, first.TickID, second.TickID)
}
