// Package regime labels an instrument's current market state from its
// moving averages and price. Classification is recomputed every cycle
// with no memory of the prior regime: a value near a threshold can flip
// the label on consecutive ticks.
package regime

import (
	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/domain/indicators"
)

// Thresholds for trend classification. Both legs must clear the band:
// sma20 vs sma50 and price vs sma20.
const (
	bullBand = 1.02
	bearBand = 0.98
)

// Classify returns BULL when sma20 leads sma50 by more than 2% and price
// leads sma20 by more than 2%; BEAR for the mirrored condition; SIDEWAYS
// otherwise. An invalid indicator set classifies as SIDEWAYS.
func Classify(set indicators.Set, price float64) domain.Regime {
	if !set.Valid || set.SMA50 <= 0 || set.SMA20 <= 0 {
		return domain.RegimeSideways
	}

	switch {
	case set.SMA20 > set.SMA50*bullBand && price > set.SMA20*bullBand:
		return domain.RegimeBull
	case set.SMA20 < set.SMA50*bearBand && price < set.SMA20*bearBand:
		return domain.RegimeBear
	default:
		return domain.RegimeSideways
	}
}
