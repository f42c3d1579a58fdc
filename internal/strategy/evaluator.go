// Package strategy turns a declarative rule blob plus an indicator set
// into a raw trading decision. Rules are data, not code: a family's
// heuristic block activates when the rule text merely mentions that
// family (case-insensitive substring), deliberately without parsing.
package strategy

import (
	"fmt"
	"strings"

	"github.com/sawpanic/tradepulse/internal/domain"
	"github.com/sawpanic/tradepulse/internal/domain/indicators"
)

// Confidence levels and deltas per family block. Action is
// last-writer-wins across blocks; confidence is set by the first block
// to fire and nudged by levelDelta for each later block, while the
// volatility and volume blocks apply their own fixed deltas.
const (
	trendLevel      = 65.0
	rsiStrongLevel  = 80.0
	rsiWeakLevel    = 60.0
	macdCrossLevel  = 75.0
	macdSideLevel   = 60.0
	bollingerLevel  = 70.0
	stochEdgeLevel  = 75.0
	stochCrossLevel = 65.0

	levelDelta = 5.0

	highVolBoost   = 10.0
	lowVolPenalty  = 10.0
	volumeBoost    = 10.0
	volumePenalty  = 15.0
	highVolRatio   = 1.2
	lowVolRatio    = 0.8
	highVolumeMult = 1.5
	lowVolumeMult  = 0.5
)

// Inputs carries the market context a rule is evaluated against.
type Inputs struct {
	Instrument string
	Price      float64
	Volume     float64
	Set        indicators.Set
}

// evaluation accumulates state across family blocks.
type evaluation struct {
	action     domain.Action
	confidence float64
	fired      bool
	reasons    []string
}

// set records a firing family's action and target confidence level. The
// first firing block establishes confidence; later blocks only nudge it
// toward their level by a fixed delta. The action itself is overwritten
// outright every time.
func (e *evaluation) set(action domain.Action, level float64, reason string) {
	e.action = action
	if !e.fired {
		e.confidence = level
		e.fired = true
	} else if level > e.confidence {
		e.confidence += levelDelta
	} else if level < e.confidence {
		e.confidence -= levelDelta
	}
	e.clamp()
	e.reasons = append(e.reasons, reason)
}

// adjust shifts confidence without touching the action.
func (e *evaluation) adjust(delta float64, reason string) {
	e.confidence += delta
	e.clamp()
	e.reasons = append(e.reasons, reason)
}

func (e *evaluation) clamp() {
	if e.confidence > 100 {
		e.confidence = 100
	}
	if e.confidence < 0 {
		e.confidence = 0
	}
}

// family binds a keyword list to its heuristic block. Blocks run in the
// table's order; a block runs only when the rule mentions one of its
// keywords.
type family struct {
	name     string
	keywords []string
	apply    func(e *evaluation, in Inputs)
}

// families is the fixed-precedence matcher table: trend, RSI, MACD,
// Bollinger, Stochastic, volatility, volume.
var families = []family{
	{"trend", []string{"sma", "ema", "moving average", "trend", "crossover"}, applyTrend},
	{"rsi", []string{"rsi"}, applyRSI},
	{"macd", []string{"macd"}, applyMACD},
	{"bollinger", []string{"bollinger", "bb_"}, applyBollinger},
	{"stochastic", []string{"stoch"}, applyStochastic},
	{"volatility", []string{"atr", "volatility"}, applyVolatility},
	{"volume", []string{"volume"}, applyVolume},
}

// Evaluate produces the raw decision for one instrument. Pure function
// of the rule text, the indicator set, and the price/volume inputs.
func Evaluate(rule string, in Inputs) domain.RawDecision {
	if !in.Set.Valid {
		return domain.RawDecision{
			Instrument: in.Instrument,
			Action:     domain.ActionHold,
			Confidence: 0,
			Reason:     "insufficient indicator data",
		}
	}

	lower := strings.ToLower(rule)
	eval := &evaluation{action: domain.ActionHold}

	for _, fam := range families {
		if !mentions(lower, fam.keywords) {
			continue
		}
		fam.apply(eval, in)
	}

	reason := "no families matched"
	if len(eval.reasons) > 0 {
		reason = strings.Join(eval.reasons, "; ")
	}

	return domain.RawDecision{
		Instrument: in.Instrument,
		Action:     eval.action,
		Confidence: eval.confidence,
		Reason:     reason,
	}
}

func mentions(lowerRule string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerRule, kw) {
			return true
		}
	}
	return false
}

func applyTrend(e *evaluation, in Inputs) {
	s := in.Set
	switch {
	case in.Price > s.SMA20 && s.SMA20 > s.SMA50:
		e.set(domain.ActionBuy, trendLevel, "uptrend: price > sma20 > sma50")
	case in.Price < s.SMA20 && s.SMA20 < s.SMA50:
		e.set(domain.ActionSell, trendLevel, "downtrend: price < sma20 < sma50")
	}
}

func applyRSI(e *evaluation, in Inputs) {
	rsi := in.Set.RSI14
	switch {
	case rsi < 30:
		e.set(domain.ActionBuy, rsiStrongLevel, fmt.Sprintf("rsi oversold at %.1f", rsi))
	case rsi > 70:
		e.set(domain.ActionSell, rsiStrongLevel, fmt.Sprintf("rsi overbought at %.1f", rsi))
	case rsi > 50 && rsi < 70:
		e.set(domain.ActionBuy, rsiWeakLevel, fmt.Sprintf("rsi bullish at %.1f", rsi))
	case rsi > 30 && rsi < 50:
		e.set(domain.ActionSell, rsiWeakLevel, fmt.Sprintf("rsi bearish at %.1f", rsi))
	}
}

func applyMACD(e *evaluation, in Inputs) {
	s := in.Set
	crossedUp := s.PrevMACD <= s.PrevMACDSignal && s.MACD > s.MACDSignal
	crossedDown := s.PrevMACD >= s.PrevMACDSignal && s.MACD < s.MACDSignal

	switch {
	case crossedUp:
		e.set(domain.ActionBuy, macdCrossLevel, "macd crossed above signal")
	case crossedDown:
		e.set(domain.ActionSell, macdCrossLevel, "macd crossed below signal")
	case s.MACD > s.MACDSignal:
		e.set(domain.ActionBuy, macdSideLevel, "macd above signal")
	case s.MACD < s.MACDSignal:
		e.set(domain.ActionSell, macdSideLevel, "macd below signal")
	}
}

func applyBollinger(e *evaluation, in Inputs) {
	s := in.Set
	switch {
	case in.Price < s.BBLower:
		e.set(domain.ActionBuy, bollingerLevel, "price below lower bollinger band")
	case in.Price > s.BBUpper:
		e.set(domain.ActionSell, bollingerLevel, "price above upper bollinger band")
	}
}

func applyStochastic(e *evaluation, in Inputs) {
	s := in.Set
	switch {
	case s.StochK < 20:
		e.set(domain.ActionBuy, stochEdgeLevel, fmt.Sprintf("stochastic oversold, k=%.1f", s.StochK))
	case s.StochK > 80:
		e.set(domain.ActionSell, stochEdgeLevel, fmt.Sprintf("stochastic overbought, k=%.1f", s.StochK))
	case s.StochK > 50 && s.StochD > 50 && (s.PrevStochK <= 50 || s.PrevStochD <= 50):
		e.set(domain.ActionBuy, stochCrossLevel, "stochastic k/d crossed above 50")
	case s.StochK < 50 && s.StochD < 50 && (s.PrevStochK >= 50 || s.PrevStochD >= 50):
		e.set(domain.ActionSell, stochCrossLevel, "stochastic k/d crossed below 50")
	}
}

// applyVolatility never changes the action: high volatility rewards an
// existing BUY, low volatility taxes any non-HOLD decision.
func applyVolatility(e *evaluation, in Inputs) {
	s := in.Set
	if s.ATRAvg20 <= 0 {
		return
	}
	switch {
	case s.ATR14 > s.ATRAvg20*highVolRatio && e.action == domain.ActionBuy:
		e.adjust(highVolBoost, "high volatility supports entry")
	case s.ATR14 < s.ATRAvg20*lowVolRatio && e.action != domain.ActionHold:
		e.adjust(-lowVolPenalty, "low volatility")
	}
}

// applyVolume never changes the action either.
func applyVolume(e *evaluation, in Inputs) {
	s := in.Set
	if s.VolumeAvg20 <= 0 || e.action == domain.ActionHold {
		return
	}
	switch {
	case in.Volume > s.VolumeAvg20*highVolumeMult:
		e.adjust(volumeBoost, "volume surge confirms")
	case in.Volume < s.VolumeAvg20*lowVolumeMult:
		e.adjust(-volumePenalty, "thin volume")
	}
}
