package trend

import (
	"testing"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func m5Series(n int, start, step float64) []model.Candle {
	out := make([]model.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		out[i] = model.Candle{Timeframe: model.TF5Min, OpenTimeMs: int64(i) * 300_000, Close: price}
		price += step
	}
	return out
}

func TestCloseDeltaGuardsInsufficientAndZero(t *testing.T) {
	require.Equal(t, 0.0, closeDelta(nil, 5))
	require.Equal(t, 0.0, closeDelta([]model.Candle{{Close: 100}}, 5))
	require.Equal(t, 0.0, closeDelta([]model.Candle{{Close: 0}, {Close: 100}}, 1))
}

func TestLongTermBearishOnD3Breach(t *testing.T) {
	cfg := config.Defaults()
	candles := m5Series(d3Back+1, 1000, -2) // steadily declining -> large negative d3Δ
	res := Compute(&cfg, Input{M5Candles: candles})
	require.True(t, res.LongTermBearish)
	require.Equal(t, model.TrendBearish, res.Trend)
	require.False(t, res.CanTrade)
}

func TestBullishOnStrongUptrend(t *testing.T) {
	cfg := config.Defaults()
	candles := m5Series(d1Back+1, 1000, 3)
	res := Compute(&cfg, Input{M5Candles: candles})
	require.Equal(t, model.TrendBullish, res.Trend)
	require.True(t, res.CanTrade)
}

func TestStrongShortMomentumExceptionBypassesFilter(t *testing.T) {
	cfg := config.Defaults()
	// A long downtrend over D3/H4 windows, but strong short-term upward
	// momentum plus a qualifying V-reversal context in the recent window.
	candles := m5Series(d3Back+1, 2000, -1)
	// Overwrite the most recent few candles with a sharp m5/h4-qualifying bounce.
	n := len(candles)
	candles[n-1-h4Back].Close = 1000 // h4Δ will be positive from here to latest
	candles[n-1].Close = candles[n-2].Close * 1.02 // m5Δ >= 0.015

	m15Closes := []float64{100, 99.8, 99.6, 99.4, 99.2, 99.0, 98.9, 98.8, 98.7, 98.6, 98.5, 98.3}
	m15 := make([]model.Candle, len(m15Closes))
	for i, c := range m15Closes {
		m15[i] = model.Candle{Timeframe: model.TF15Min, Close: c}
	}
	// high is 100 (i=0); current price 98.3 is >=1.5% below it (98.3 <= 98.5),
	// and every consecutive step is a small decline, so no +1% jump anywhere.

	m1 := make([]model.Candle, 6)
	closes := []float64{100, 99.7, 99.4, 99.6, 100.0, 100.3}
	for i, c := range closes {
		m1[i] = model.Candle{Timeframe: model.TFMinute, Close: c}
	}

	res := Compute(&cfg, Input{
		M5Candles:  candles,
		M1Candles:  m1,
		M15Candles: m15,
		Indicators: model.Indicators{Fatigue: 20},
		BidPressure1m: 0.6,
	})
	require.True(t, res.StrongShortMomentum)
	require.False(t, res.LongTermBearish, "exception must disable the filter for this tick")
}

func TestAtLeastThreeOfLastFiveUpRequiresSixCloses(t *testing.T) {
	require.False(t, atLeastThreeOfLastFiveUp([]float64{1, 2, 3}))
	require.True(t, atLeastThreeOfLastFiveUp([]float64{10, 9, 8, 7, 8, 9, 10}))
}
