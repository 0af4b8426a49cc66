// Package trend implements C4 TrendAnalyzer: macro trend scoring across six
// higher timeframes (derived from the M5 ring, per spec §4.4 — H4/D1/D3 are
// never separately stored), the long-term bearish filter, its strong-short-
// momentum exception, and the V-reversal detector.
// Grounded on the teacher's internal/engine.Engine per-trade scoring pass for
// the "derive higher timeframes from a lower one on demand" technique, since
// the teacher only materializes up to its own configured timeframes and
// computes larger-window deltas by indexing further back into the same ring
// rather than maintaining separate H4/D1/D3 rings.
package trend

import (
	"math"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
)

// candlesBack is how many M5 candles back each higher timeframe's
// close-to-close delta is measured over, per spec §4.4's literal counts.
const (
	m15Back = 3
	m30Back = 7
	h1Back  = 13
	h4Back  = 48
	d1Back  = 288
	d3Back  = 576
)

// Input bundles the borrowed views TrendAnalyzer needs. M5Candles and
// M1Candles must be oldest-first, as returned by candlestore.Store.Snapshot.
type Input struct {
	M5Candles  []model.Candle
	M1Candles  []model.Candle
	M15Candles []model.Candle

	Indicators   model.Indicators
	BidPressure1m float64 // bid_volume_1m / (bid_volume_1m + ask_volume_1m)
}

// Compute implements spec §4.4.
func Compute(cfg *config.Config, in Input) model.TrendResult {
	m5 := closeDelta(in.M5Candles, 1) // single-candle (5-minute) delta, distinct from the m15 window
	m15 := closeDelta(in.M5Candles, m15Back)
	m30 := closeDelta(in.M5Candles, m30Back)
	h1 := closeDelta(in.M5Candles, h1Back)
	h4 := closeDelta(in.M5Candles, h4Back)
	d1 := closeDelta(in.M5Candles, d1Back)
	d3 := closeDelta(in.M5Candles, d3Back)

	score := 0.20*m15 + 0.15*m30 + 0.20*h1 + 0.25*h4 + 0.20*d1

	longTermBearish := cfg.LongTermFilterEnabled && (d3 <= cfg.DailyBearishThreshold || h4 <= cfg.H4BearishThreshold)
	shortSqueeze := m15 >= 0.015

	strongShort := false
	if longTermBearish {
		strongShort = strongShortMomentumException(cfg, in, m5, h4)
		if strongShort {
			longTermBearish = false
		}
	}

	res := model.TrendResult{
		M5Delta:      m5,
		M15Delta:     m15,
		H4Delta:      h4,
		Daily1dDelta: d1,
		Daily3dDelta: d3,
		Score:        score,
		LongTermBearish:     longTermBearish,
		StrongShortMomentum: strongShort,
		BuyPressure:         in.BidPressure1m,
		Fatigue:             in.Indicators.Fatigue,
	}

	switch {
	case longTermBearish:
		res.Trend = model.TrendBearish
		res.CanTrade = false
		res.BlockReason = "long_term_bearish"
		if cfg.IgnoreShortSqueezeInDowntrend {
			shortSqueeze = false
		}
	case score < cfg.MacroMinChangeRate && !shortSqueeze:
		res.Trend = model.TrendBearish
		res.CanTrade = true
		res.BlockReason = "macro_below_min_change_rate"
	case score > cfg.MacroBullishThreshold || shortSqueeze:
		res.Trend = model.TrendBullish
		res.CanTrade = true
	default:
		res.Trend = model.TrendNeutral
		res.CanTrade = true
	}

	return res
}

// closeDelta returns the close-to-close change from the candle `back` steps
// before the latest one, to the latest. Returns 0 if there aren't enough
// candles or the denominator would be zero (spec §4.4 "guard for zero
// denominators").
func closeDelta(candles []model.Candle, back int) float64 {
	n := len(candles)
	if n == 0 || n-1-back < 0 {
		return 0
	}
	from := candles[n-1-back].Close
	to := candles[n-1].Close
	if from == 0 {
		return 0
	}
	return (to - from) / from
}

// strongShortMomentumException implements spec §4.4's seven-condition
// exception that disables the long-term bearish filter for this tick.
func strongShortMomentumException(cfg *config.Config, in Input, m5Delta, h4Delta float64) bool {
	if m5Delta < 0.015 {
		return false
	}
	if h4Delta <= 0 {
		return false
	}
	if in.BidPressure1m < 0.55 {
		return false
	}
	if in.Indicators.Fatigue > 40 {
		return false
	}

	closes := closesOf(in.M1Candles)
	if !atLeastThreeOfLastFiveUp(closes) {
		return false
	}
	returns := lastReturns(closes, 5)
	if stdevOf(returns) > cfg.VolatilityMaxStddev {
		return false
	}
	if !vReversalDetected(cfg, in.M15Candles, closes) {
		return false
	}
	return true
}

func closesOf(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// atLeastThreeOfLastFiveUp checks the last 5 candle-to-candle M1 moves (the
// last 6 closes): at least 3 of them must be up.
func atLeastThreeOfLastFiveUp(closes []float64) bool {
	if len(closes) < 6 {
		return false
	}
	window := closes[len(closes)-6:]
	ups := 0
	for i := 1; i < len(window); i++ {
		if window[i] > window[i-1] {
			ups++
		}
	}
	return ups >= 3
}

// lastReturns returns up to the last n close-to-close returns.
func lastReturns(closes []float64, n int) []float64 {
	if len(closes) < 2 {
		return nil
	}
	max := len(closes) - 1
	if max > n {
		max = n
	}
	start := len(closes) - max - 1
	out := make([]float64, 0, max)
	for i := start; i < len(closes)-1; i++ {
		if closes[i] == 0 {
			continue
		}
		out = append(out, (closes[i+1]-closes[i])/closes[i])
	}
	return out
}

func stdevOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// vReversalDetected implements spec §4.4's V-reversal detector: a 3-hour
// downtrend context (over the last 12 M15 candles, current price ≥1.5% below
// the 3-hour high and no single M15→M15 move exceeded +1%), then the last 5
// M1 returns split 2/2 as a sharp drop followed by a sharp recovery.
func vReversalDetected(cfg *config.Config, m15Candles []model.Candle, m1Closes []float64) bool {
	if !cfg.VReversalEnabled {
		return false
	}
	if len(m15Candles) < 12 {
		return false
	}
	window := m15Candles[len(m15Candles)-12:]
	high := window[0].Close
	for _, c := range window {
		if c.Close > high {
			high = c.Close
		}
	}
	currentPrice := window[len(window)-1].Close
	if high == 0 || currentPrice > high*(1-0.015) {
		return false
	}
	for i := 1; i < len(window); i++ {
		if window[i-1].Close == 0 {
			continue
		}
		move := (window[i].Close - window[i-1].Close) / window[i-1].Close
		if move > 0.01 {
			return false
		}
	}

	returns := lastReturns(m1Closes, 5)
	if len(returns) < 5 {
		return false
	}
	first2 := returns[0] + returns[1]
	last2 := returns[3] + returns[4]
	return first2 <= cfg.VReversalMinDrop && last2 >= cfg.VReversalMinRise
}
