// Package indicators implements C3: RSI, stdev volatility, fatigue, and
// MA(15)/MA(50) disparity per spec §4.3. Compute is a pure function of the
// trade tape and M5 candles; the orchestrator calls it on each decision tick
// and macro refresh, not on every trade tick.
// Grounded on the teacher's internal/pressure.score composite-scorer style
// (additive sub-scores combined and clamped) generalized from its EMA-smoothed
// CVD/orderbook fusion to the spec's simpler, un-smoothed additive formula —
// the teacher smooths because its pressure score feeds a display, this one
// feeds a hard threshold gate where spec.md specifies exact literal values.
package indicators

import (
	"math"

	"github.com/shk7773/momentum-engine/internal/model"
)

const (
	tapePriceWindow = 60
	rsiDeltaWindow  = 14
	volWindow       = 20
	ma15Window      = 15
	ma50Window      = 50

	minuteMs = 60_000
)

// Compute implements spec §4.3. tape must be ordered oldest-first (as
// returned by tickagg.Aggregator.Tape); m5Candles must be ordered oldest-first
// M5 candles (as returned by candlestore.Store.Snapshot(model.TF5Min)).
func Compute(tape []model.Trade, m5Candles []model.Candle) model.Indicators {
	prices := lastPrices(tape, tapePriceWindow)

	rsi := computeRSI(prices)
	vol := computeVolatility(prices)
	ma15 := movingAverage(closes(m5Candles), ma15Window)
	ma50 := movingAverage(closes(m5Candles), ma50Window)

	var disparity float64
	if len(prices) > 0 && ma15 != 0 {
		disparity = (prices[len(prices)-1] - ma15) / ma15
	}

	bidVol1m, askVol1m := volumeInWindow(tape, 1*minuteMs)
	delta5m := priceChangeOverWindow(tape, 5*minuteMs)

	fatigue, exhaustion := computeFatigue(rsi, delta5m, tape, bidVol1m, askVol1m)

	return model.Indicators{
		RSI:                rsi,
		Volatility:         vol,
		Fatigue:            fatigue,
		MomentumExhaustion: exhaustion,
		MA15:               ma15,
		MA50:               ma50,
		Disparity:          disparity,
		BidVolume1m:        bidVol1m,
		AskVolume1m:        askVol1m,
	}
}

func lastPrices(tape []model.Trade, n int) []float64 {
	if len(tape) > n {
		tape = tape[len(tape)-n:]
	}
	out := make([]float64, len(tape))
	for i, t := range tape {
		out[i] = t.Price
	}
	return out
}

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// computeRSI implements spec §4.3's simplified 14-period RSI over up-to-14
// deltas from the supplied prices (oldest-first).
func computeRSI(prices []float64) float64 {
	if len(prices) < 2 {
		return 50
	}
	deltas := deltasWindow(prices, rsiDeltaWindow)

	var gainSum, lossSum float64
	for _, d := range deltas {
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
	}
	avgGain := gainSum / rsiDeltaWindow
	avgLoss := lossSum / rsiDeltaWindow
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return 50
	}
	if avgLoss < 0.0001 {
		avgLoss = 0.0001
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// deltasWindow returns up to the last n consecutive deltas from prices.
func deltasWindow(prices []float64, n int) []float64 {
	if len(prices) < 2 {
		return nil
	}
	maxDeltas := len(prices) - 1
	if maxDeltas > n {
		maxDeltas = n
	}
	start := len(prices) - maxDeltas - 1
	out := make([]float64, 0, maxDeltas)
	for i := start; i < len(prices)-1; i++ {
		out = append(out, prices[i+1]-prices[i])
	}
	return out
}

func computeVolatility(prices []float64) float64 {
	if len(prices) < volWindow {
		return 0
	}
	window := prices[len(prices)-volWindow:]
	mean := meanOf(window)
	if mean == 0 {
		return 0
	}
	return stdevOf(window, mean) / mean
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdevOf(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func movingAverage(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return meanOf(closes)
}

// volumeInWindow sums bid/ask trade volume within the last windowMs,
// measured from the latest tape entry's own timestamp (spec §9 Open
// Question 1: tick time, never wall-clock).
func volumeInWindow(tape []model.Trade, windowMs int64) (bidVol, askVol float64) {
	if len(tape) == 0 {
		return 0, 0
	}
	nowMs := tape[len(tape)-1].TimestampMs
	cutoff := nowMs - windowMs
	for i := len(tape) - 1; i >= 0; i-- {
		t := tape[i]
		if t.TimestampMs < cutoff {
			break
		}
		switch t.Side {
		case model.SideBid:
			bidVol += t.Volume
		case model.SideAsk:
			askVol += t.Volume
		}
	}
	return bidVol, askVol
}

// priceChangeOverWindow returns the close-to-close change from the earliest
// trade still inside the window to the latest trade, i.e. Δ5m for the
// rate_fatigue term.
func priceChangeOverWindow(tape []model.Trade, windowMs int64) float64 {
	if len(tape) == 0 {
		return 0
	}
	last := tape[len(tape)-1]
	cutoff := last.TimestampMs - windowMs
	anchor := last.Price
	for i := len(tape) - 1; i >= 0; i-- {
		if tape[i].TimestampMs < cutoff {
			break
		}
		anchor = tape[i].Price
	}
	if anchor == 0 {
		return 0
	}
	return (last.Price - anchor) / anchor
}

// computeFatigue implements spec §4.3's additive fatigue formula.
func computeFatigue(rsi, delta5m float64, tape []model.Trade, bidVol1m, askVol1m float64) (fatigue float64, exhaustion bool) {
	rateFatigue := math.Min(100, math.Abs(delta5m)*1000)

	var rsiFatigue float64
	switch {
	case rsi >= 80:
		rsiFatigue = 30 + (rsi-80)*5
	case rsi >= 70:
		rsiFatigue = (rsi - 70) * 3
	}

	lastMinuteVol, prevMinuteVol := minuteVolumes(tape)
	var volumeFatigue float64
	if prevMinuteVol > 0 && lastMinuteVol < 0.5*prevMinuteVol {
		volumeFatigue = 20
		exhaustion = true
	}

	var sellPressure float64
	total := bidVol1m + askVol1m
	if total > 0 {
		askRatio := askVol1m / total
		if askRatio > 0.6 {
			sellPressure = (askRatio - 0.5) * 100
		}
	}

	fatigue = rateFatigue + rsiFatigue + volumeFatigue + sellPressure
	if fatigue > 100 {
		fatigue = 100
	}
	if fatigue < 0 {
		fatigue = 0
	}
	return fatigue, exhaustion
}

// minuteVolumes returns total trade volume in the last minute and in the
// minute before that, both anchored on the latest tick's own timestamp.
func minuteVolumes(tape []model.Trade) (last, prev float64) {
	if len(tape) == 0 {
		return 0, 0
	}
	nowMs := tape[len(tape)-1].TimestampMs
	for i := len(tape) - 1; i >= 0; i-- {
		t := tape[i]
		age := nowMs - t.TimestampMs
		if age < 0 {
			continue
		}
		switch {
		case age < minuteMs:
			last += t.Volume
		case age < 2*minuteMs:
			prev += t.Volume
		default:
			return last, prev
		}
	}
	return last, prev
}
