// Package sentiment implements C7 SentimentEngine: a 0-100 additive score
// from bid/ask pressure, RSI, fatigue, volatility, and orderbook imbalance,
// mapped to a three-way Bullish/Neutral/Bearish label, per spec §4.7.
// Grounded on the teacher's internal/pressure.score.go additive-adjustment
// shape (composite score built from independently-reasoned sub-terms, then
// clamped and mapped to a label), the closest analogue in the pack to this
// component.
package sentiment

import "github.com/shk7773/momentum-engine/internal/model"

const startScore = 50

// Input bundles the signals SentimentEngine reads.
type Input struct {
	BidPressure1m float64 // bid_volume_1m / (bid_volume_1m + ask_volume_1m)
	Imbalance     float64 // orderbook imbalance, [-1, 1]
	RSI           float64
	Fatigue       float64
	MomentumExhaustion bool
	Volatility    float64
}

// Compute implements spec §4.7's additive adjustments.
func Compute(in Input) model.SentimentResult {
	score := float64(startScore)

	switch {
	case in.BidPressure1m >= 0.65:
		score += 15
	case in.BidPressure1m >= 0.55:
		score += 8
	case in.BidPressure1m <= 0.35:
		score -= 15
	case in.BidPressure1m <= 0.45:
		score -= 8
	}
	switch {
	case in.Imbalance >= 0.3:
		score += 10
	case in.Imbalance <= -0.3:
		score -= 10
	}

	switch {
	case in.RSI >= 80:
		score -= 20
	case in.RSI >= 70:
		score -= 10
	case in.RSI <= 20:
		score += 15
	case in.RSI <= 30:
		score += 8
	}

	switch {
	case in.Fatigue >= 60:
		score -= 25
	case in.Fatigue >= 40:
		score -= 12
	}

	if in.MomentumExhaustion {
		score -= 15
	}

	if in.Volatility >= 0.02 {
		score -= 5
	}

	score = clamp(score, 0, 100)

	res := model.SentimentResult{Score: score}
	switch {
	case score >= 65:
		res.Sentiment = model.SentimentBullish
	case score <= 35:
		res.Sentiment = model.SentimentBearish
	default:
		res.Sentiment = model.SentimentNeutral
	}
	return res
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
