// Package mtf implements C5 MTFEvaluator: 5m/15m stage classification,
// volume confirmation, and the downtrend dead-cat-bounce rebound check.
// Grounded on spec §4.5 directly; the stage-ladder shape mirrors the
// teacher's internal/logger.go decision layer (ComputeMarketState), which
// also classifies a continuous delta into a small ordered set of named
// stages via a cascade of threshold comparisons.
package mtf

import (
	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
)

const changeWindowCandles = 24

// Input bundles the borrowed views MTFEvaluator needs. M5Candles must be
// oldest-first and include at least the latest closed candle.
type Input struct {
	MacroTrend model.Trend
	M5Candles  []model.Candle
	M15Candles []model.Candle
	Price      float64
}

// Compute implements spec §4.5.
func Compute(cfg *config.Config, in Input) model.MTFResult {
	res := model.MTFResult{Stage: model.StageUnknown}

	if in.MacroTrend == model.TrendBearish {
		res.ValidEntry = false
		res.Reasons = append(res.Reasons, "macro_trend_bearish")
		return res
	}

	if len(in.M5Candles) < changeWindowCandles {
		res.Warnings = append(res.Warnings, "m5_window_undersampled")
	}

	ma15 := movingAverage(closes(in.M5Candles), 15)
	ma50 := movingAverage(closes(in.M5Candles), 50)
	var disparity float64
	if ma15 != 0 {
		disparity = (in.Price - ma15) / ma15
	}

	last, prevAvg := lastVsPreviousAverage(in.M5Candles, 3)
	volumeConfirmed := prevAvg > 0 && last.Volume >= 1.5*prevAvg
	res.VolumeConfirmed = volumeConfirmed

	change5m := windowChange(in.M5Candles, changeWindowCandles)
	res.Change5m = change5m

	if ma15 < ma50 {
		deadCatBounce := disparity < -0.015 && last.Bullish() && volumeConfirmed
		res.ValidEntry = deadCatBounce
		res.Stage = model.StageNeutral
		if !deadCatBounce {
			res.Reasons = append(res.Reasons, "downtrend_no_dead_cat_bounce")
		}
	} else {
		switch {
		case change5m >= 0.02:
			res.Stage = model.StageLate
			res.ValidEntry = false
			res.Reasons = append(res.Reasons, "stage_late")
		case change5m >= 0.008:
			res.Stage = model.StageMid
			res.ValidEntry = true
		case change5m >= cfg.MTF5mTrendThreshold:
			res.Stage = model.StageEarly
			res.ValidEntry = true
		default:
			res.Stage = model.StageNeutral
			res.ValidEntry = true
		}
	}

	if threeInARowBearish(in.M5Candles) {
		res.ValidEntry = false
		res.Reasons = append(res.Reasons, "three_bearish_m5_candles")
	}

	change15m := windowChange(in.M15Candles, changeWindowCandles)
	res.Change15m = change15m
	switch {
	case change15m >= 0.002:
		res.Trend15m = model.TrendBullish
	case change15m <= -0.002:
		res.Trend15m = model.TrendBearish
		if cfg.MTFStrictMode {
			res.ValidEntry = false
			res.Reasons = append(res.Reasons, "m15_bearish_strict_mode")
		}
	default:
		res.Trend15m = model.TrendNeutral
	}
	res.Trend5m = in.MacroTrend

	return res
}

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func movingAverage(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	var sum float64
	for _, c := range closes {
		sum += c
	}
	return sum / float64(len(closes))
}

// lastVsPreviousAverage returns the last candle and the average volume of up
// to n candles preceding it (spec §4.5's "average of previous 3").
func lastVsPreviousAverage(candles []model.Candle, n int) (model.Candle, float64) {
	if len(candles) == 0 {
		return model.Candle{}, 0
	}
	last := candles[len(candles)-1]
	prior := candles[:len(candles)-1]
	if len(prior) > n {
		prior = prior[len(prior)-n:]
	}
	if len(prior) == 0 {
		return last, 0
	}
	var sum float64
	for _, c := range prior {
		sum += c.Volume
	}
	return last, sum / float64(len(prior))
}

// windowChange is the close-to-close change over up to the last n candles.
func windowChange(candles []model.Candle, n int) float64 {
	if len(candles) < 2 {
		return 0
	}
	window := candles
	if len(window) > n {
		window = window[len(window)-n:]
	}
	from := window[0].Close
	to := window[len(window)-1].Close
	if from == 0 {
		return 0
	}
	return (to - from) / from
}

// threeInARowBearish checks the last three M5 candles are all bearish
// (close <= open).
func threeInARowBearish(candles []model.Candle) bool {
	if len(candles) < 3 {
		return false
	}
	window := candles[len(candles)-3:]
	for _, c := range window {
		if c.Bullish() {
			return false
		}
	}
	return true
}
