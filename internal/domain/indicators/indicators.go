package indicators

import (
	"math"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// Set holds the latest value of every indicator the strategy evaluator
// understands, plus the immediately preceding value where a crossover
// test needs one. A Set with Valid=false means "insufficient data" and
// must be treated as no signal, never as zero values.
type Set struct {
	SMA10 float64 `json:"sma10"`
	SMA20 float64 `json:"sma20"`
	SMA50 float64 `json:"sma50"`

	EMA12 float64 `json:"ema12"`
	EMA26 float64 `json:"ema26"`

	RSI14 float64 `json:"rsi14"`

	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	PrevMACD       float64 `json:"prev_macd"`
	PrevMACDSignal float64 `json:"prev_macd_signal"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	PrevStochK float64 `json:"prev_stoch_k"`
	PrevStochD float64 `json:"prev_stoch_d"`

	ATR14    float64 `json:"atr14"`
	ATRAvg20 float64 `json:"atr14_avg20"`

	VolumeAvg20 float64 `json:"volume_avg20"`

	BarCount int  `json:"bar_count"`
	Valid    bool `json:"valid"`
}

// Compute derives the full indicator set from an OHLCV series ordered
// oldest to newest. Pure function of its input: no state, no I/O.
// Fewer than domain.MinIndicatorBars bars yields an empty, invalid Set.
func Compute(bars []domain.Bar) Set {
	if len(bars) < domain.MinIndicatorBars {
		return Set{BarCount: len(bars)}
	}

	closes := domain.Closes(bars)
	volumes := domain.Volumes(bars)

	set := Set{
		SMA10:    SMA(closes, 10),
		SMA20:    SMA(closes, 20),
		SMA50:    SMA(closes, 50),
		RSI14:    RSI(closes, 14),
		BarCount: len(bars),
		Valid:    true,
	}

	ema12 := EMASeries(closes, 12)
	ema26 := EMASeries(closes, 26)
	set.EMA12 = last(ema12)
	set.EMA26 = last(ema26)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMASeries(macd, 9)
	set.MACD = last(macd)
	set.MACDSignal = last(signal)
	set.PrevMACD = prev(macd)
	set.PrevMACDSignal = prev(signal)

	set.BBUpper, set.BBMiddle, set.BBLower = Bollinger(closes, 20, 2.0)

	kSeries := stochKSeries(bars, 14)
	dSeries := smaSeries(kSeries, 3)
	set.StochK = last(kSeries)
	set.StochD = last(dSeries)
	set.PrevStochK = prev(kSeries)
	set.PrevStochD = prev(dSeries)

	atrSeries := ATRSeries(bars, 14)
	set.ATR14 = last(atrSeries)
	set.ATRAvg20 = SMA(atrSeries, 20)

	set.VolumeAvg20 = SMA(volumes, 20)

	return set
}

// SMA returns the simple moving average of the trailing period values,
// or 0 when the series is too short.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average at every index,
// seeded with the first value.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
// Returns 50 (neutral) when the series is too short.
func RSI(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50.0
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// Bollinger returns the upper, middle, and lower bands over the trailing
// period with the given standard-deviation multiplier.
func Bollinger(values []float64, period int, mult float64) (upper, middle, lower float64) {
	if len(values) < period {
		return 0, 0, 0
	}
	middle = SMA(values, period)

	variance := 0.0
	for _, v := range values[len(values)-period:] {
		d := v - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))

	return middle + mult*std, middle, middle - mult*std
}

// ATRSeries returns the Average True Range at every bar index, computed
// with Wilder's smoothing. Entries before the warm-up period are zero.
func ATRSeries(bars []domain.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) < period+1 {
		return out
	}

	trueRanges := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)
	out[period] = atr

	alpha := 1.0 / float64(period)
	for i := period; i < len(trueRanges); i++ {
		atr = atr*(1-alpha) + trueRanges[i]*alpha
		out[i+1] = atr
	}
	return out
}

// stochKSeries returns the raw stochastic %K at every index. Entries
// before the warm-up period are 50 (neutral).
func stochKSeries(bars []domain.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		if i < period-1 {
			out[i] = 50.0
			continue
		}
		hi := bars[i-period+1].High
		lo := bars[i-period+1].Low
		for _, b := range bars[i-period+2 : i+1] {
			hi = math.Max(hi, b.High)
			lo = math.Min(lo, b.Low)
		}
		if hi == lo {
			out[i] = 50.0
			continue
		}
		out[i] = (bars[i].Close - lo) / (hi - lo) * 100.0
	}
	return out
}

// smaSeries returns the trailing-period SMA at every index. Entries
// before the warm-up period carry the raw value.
func smaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < period-1 {
			out[i] = values[i]
			continue
		}
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func prev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return values[len(values)-2]
}
