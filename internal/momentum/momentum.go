// Package momentum implements C6 MomentumDetector: the 1-minute and
// 1-second momentum signals, their combination, and the ordered
// post-filter cascade that produces the final entry strength and gate.
// Grounded on spec §4.6 directly; the weighted-sum-then-cap strength shape
// follows the same additive-score convention as internal/indicators and the
// teacher's internal/pressure.score.go.
package momentum

import (
	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
)

const (
	minuteWindow = 20
	secondWindow = 15
)

// Input bundles the borrowed views MomentumDetector needs. M1Candles and
// S1Candles must be oldest-first.
type Input struct {
	Price     float64
	M1Candles []model.Candle
	S1Candles []model.Candle
	Orderbook model.Orderbook

	MTF model.MTFResult

	PrevM5Return float64
	LastM5Return float64

	M5BidVolumeRatio float64 // bid_volume_5m / (bid_volume_5m + ask_volume_5m)
	LastMinuteChange float64
}

type minuteSignal struct {
	fires       bool
	priceChange float64
	strength    float64
}

type secondSignal struct {
	fires     bool
	rapidRise bool
	strength  float64
}

// Compute implements spec §4.6 end to end: the two raw signals, their
// combination, and the seven ordered post-filters.
func Compute(cfg *config.Config, in Input) model.MomentumResult {
	m1 := computeMinuteSignal(cfg, in.M1Candles, in.Price, in.Orderbook)
	s1 := computeSecondSignal(cfg, in.S1Candles)

	res := model.MomentumResult{
		MinuteSignal: m1.fires,
		SecondSignal: s1.fires,
		RapidRise:    s1.rapidRise,
		MTFValid:     in.MTF.ValidEntry,
		MTFStage:     in.MTF.Stage,
	}

	if in.Orderbook.Imbalance <= -0.3 {
		res.Reason = "orderbook_wall_of_asks"
		return res
	}

	mtfBullish := in.MTF.Trend5m == model.TrendBullish || in.MTF.Trend15m == model.TrendBullish

	switch {
	case m1.fires && s1.fires:
		res.Signal = true
		res.Strength = cap100(0.6*m1.strength + 0.4*s1.strength)
	case s1.rapidRise && !m1.fires:
		if m1.priceChange >= 0.9*cfg.MomentumThreshold && mtfBullish {
			res.Signal = true
			res.Strength = s1.strength
		} else if m1.priceChange >= 0.9*cfg.MomentumThreshold {
			res.Signal = true
			res.Strength = s1.strength * 0.5
		}
	case m1.fires:
		res.Signal = true
		res.Strength = m1.strength * 0.8
	default:
		m5Ok := in.MTF.Trend5m == model.TrendBullish || in.MTF.Trend5m == model.TrendNeutral
		m15Ok := in.MTF.Trend15m == model.TrendBullish || in.MTF.Trend15m == model.TrendNeutral
		if m5Ok && m15Ok && in.M5BidVolumeRatio >= 0.55 && in.LastMinuteChange >= 0.003 {
			res.Signal = true
			// 80, not the raw 1m/5m combined score, since this fallback has no
			// minute signal backing it: it must clear the stage_neutral floor
			// below on its own to survive postFilters.
			res.Strength = 80
		}
	}

	if !res.Signal {
		res.Reason = "no_raw_signal"
		return res
	}

	if ok, reason := postFilters(cfg, &res, in, m1); !ok {
		res.Signal = false
		res.Reason = reason
		return res
	}

	return res
}

// postFilters implements spec §4.6's seven ordered post-filters, mutating
// res.Strength in place as stage/volume adjustments apply.
func postFilters(cfg *config.Config, res *model.MomentumResult, in Input, m1 minuteSignal) (bool, string) {
	if in.MTF.Trend5m == model.TrendBearish {
		return false, "mtf_trend_5m_bearish"
	}

	if in.PrevM5Return > 0.003 && in.LastM5Return < 0.5*in.PrevM5Return {
		return false, "m5_momentum_fading"
	}

	if m1.priceChange >= 0.03 {
		return false, "parabolic_m1_too_late"
	}

	if !in.MTF.ValidEntry {
		return false, "mtf_invalid_entry"
	}

	switch in.MTF.Stage {
	case model.StageNeutral, model.StageUnknown:
		if res.Strength < 80 {
			return false, "stage_neutral_insufficient_strength"
		}
	case model.StageEarly:
		res.Strength = cap100(res.Strength * 1.2)
	case model.StageMid:
		res.Strength = res.Strength * 0.85
		if res.Strength < 90 {
			return false, "stage_mid_insufficient_strength"
		}
	case model.StageLate:
		return false, "stage_late"
	}

	if in.MTF.VolumeConfirmed {
		res.Strength = cap100(res.Strength + 10)
	}
	if in.MTF.Trend15m == model.TrendBullish {
		res.Strength = cap100(res.Strength + 5)
	}
	if in.MTF.Trend15m == model.TrendBearish && cfg.MTFStrictMode {
		return false, "m15_bearish_strict_mode"
	}

	if res.Strength < cfg.MinSignalStrength {
		return false, "below_min_signal_strength"
	}

	return true, ""
}

func computeMinuteSignal(cfg *config.Config, candles []model.Candle, price float64, ob model.Orderbook) minuteSignal {
	window := lastN(candles, minuteWindow)
	if len(window) == 0 {
		return minuteSignal{}
	}

	priceChange := safeChange(price, window[0].Open)
	velocity := 0.0
	if len(window) >= 3 {
		back3 := window[len(window)-3].Open
		velocity = safeChange(price, back3) / 3
	}
	volumeRatio := volumeRatioOf(window)
	consecutiveUp := consecutiveUpCloses(window)
	bidAskRatio := sizeRatio(ob)

	fires := priceChange >= cfg.MomentumThreshold &&
		(volumeRatio >= cfg.VolumeSpikeRatio || velocity >= cfg.BreakoutVelocity || consecutiveUp >= cfg.ConsecutiveUpCandles) &&
		bidAskRatio >= 0.8

	var strength float64
	if fires {
		strength = cap100(
			40 +
				clampedRatio(priceChange/cfg.MomentumThreshold, 2)*20 +
				clampedRatio(volumeRatio/cfg.VolumeSpikeRatio, 2)*20 +
				clampedRatio(float64(consecutiveUp)/float64(cfg.ConsecutiveUpCandles), 2)*20,
		)
	}

	return minuteSignal{fires: fires, priceChange: priceChange, strength: strength}
}

func computeSecondSignal(cfg *config.Config, candles []model.Candle) secondSignal {
	window := lastN(candles, secondWindow)
	if len(window) == 0 {
		return secondSignal{}
	}
	last := window[len(window)-1]

	priceChange := safeChange(window[len(window)-1].Close, window[0].Open)
	volumeRatio := volumeRatioOf(window)
	momentumOk := priceChange >= cfg.SecondMomentumThreshold
	volumeOk := volumeRatio >= cfg.VolumeSpikeRatio

	rapidRise := safeChange(last.Close, last.Open) >= cfg.SecondRapidRiseThreshold

	fires := (momentumOk && volumeOk) || rapidRise

	var strength float64
	if fires {
		strength = cap100(40 + clampedRatio(priceChange/cfg.SecondMomentumThreshold, 2)*30 + clampedRatio(volumeRatio/cfg.VolumeSpikeRatio, 2)*30)
	}

	return secondSignal{fires: fires, rapidRise: rapidRise, strength: strength}
}

func lastN(candles []model.Candle, n int) []model.Candle {
	if len(candles) > n {
		return candles[len(candles)-n:]
	}
	return candles
}

func safeChange(to, from float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}

func volumeRatioOf(window []model.Candle) float64 {
	if len(window) < 2 {
		return 0
	}
	history := window[:len(window)-1]
	var sum float64
	for _, c := range history {
		sum += c.Volume
	}
	mean := sum / float64(len(history))
	if mean == 0 {
		return 0
	}
	return window[len(window)-1].Volume / mean
}

func consecutiveUpCloses(window []model.Candle) int {
	count := 0
	for i := len(window) - 1; i > 0; i-- {
		if window[i].Close > window[i-1].Close {
			count++
		} else {
			break
		}
	}
	return count
}

func sizeRatio(ob model.Orderbook) float64 {
	if ob.TotalAskSize == 0 {
		if ob.TotalBidSize > 0 {
			return 1
		}
		return 0
	}
	return ob.TotalBidSize / ob.TotalAskSize
}

func clampedRatio(r float64, max float64) float64 {
	if r < 0 {
		return 0
	}
	if r > max {
		return max
	}
	return r
}

func cap100(x float64) float64 {
	if x > 100 {
		return 100
	}
	if x < 0 {
		return 0
	}
	return x
}
