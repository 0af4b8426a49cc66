package mtf

import (
	"testing"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func candle(open, closeP, vol float64) model.Candle {
	return model.Candle{Open: open, Close: closeP, Volume: vol}
}

func flatM5(n int, price, vol float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = candle(price, price, vol)
	}
	return out
}

func TestBearishMacroRejectsImmediately(t *testing.T) {
	cfg := config.Defaults()
	res := Compute(&cfg, Input{MacroTrend: model.TrendBearish})
	require.False(t, res.ValidEntry)
	require.Contains(t, res.Reasons, "macro_trend_bearish")
}

func TestDowntrendRequiresDeadCatBounce(t *testing.T) {
	cfg := config.Defaults()
	candles := flatM5(30, 100, 10)
	// push MA50 above MA15 by fading the most recent 15 down, keep the
	// last candle bullish with a volume spike.
	for i := 15; i < 30; i++ {
		candles[i].Open = 90
		candles[i].Close = 90
	}
	candles[29] = candle(88, 92, 50) // bullish, big volume vs prior 10s
	// Live price sits well below MA15 even though the last closed candle
	// bounced, satisfying the dead-cat-bounce disparity condition.
	res := Compute(&cfg, Input{MacroTrend: model.TrendNeutral, M5Candles: candles, Price: 85})
	require.True(t, res.VolumeConfirmed)
	require.True(t, res.ValidEntry, "dead-cat-bounce conditions are all satisfied")
}

func TestUptrendStageClassification(t *testing.T) {
	cfg := config.Defaults()
	candles := flatM5(25, 100, 10)
	for i := range candles {
		candles[i].Open = 100
		candles[i].Close = 100 + float64(i)*0.1 // mild, steady rise: MA15 > MA50 given the climb
	}
	// Force a ~0.9% rise over the 24-candle window (100.1 -> 101) -> Mid stage.
	candles[0].Close = 100
	candles[len(candles)-1].Close = 101
	res := Compute(&cfg, Input{MacroTrend: model.TrendNeutral, M5Candles: candles, Price: 101})
	require.Equal(t, model.StageMid, res.Stage)
}

func TestThreeBearishM5CandlesRejects(t *testing.T) {
	cfg := config.Defaults()
	candles := flatM5(25, 100, 10)
	for i := range candles {
		candles[i].Open = 100
		candles[i].Close = 105 // uptrend overall so we reach the stage branch
	}
	// last three bearish
	candles[22] = candle(110, 108, 10)
	candles[23] = candle(108, 106, 10)
	candles[24] = candle(106, 104, 10)
	res := Compute(&cfg, Input{MacroTrend: model.TrendNeutral, M5Candles: candles, Price: 104})
	require.False(t, res.ValidEntry)
	require.Contains(t, res.Reasons, "three_bearish_m5_candles")
}

func TestM15BearishStrictModeRejects(t *testing.T) {
	cfg := config.Defaults()
	cfg.MTFStrictMode = true
	m5 := flatM5(25, 100, 10)
	for i := range m5 {
		m5[i].Close = 100 + float64(i)*0.5
	}
	m15 := flatM5(25, 100, 10)
	for i := range m15 {
		m15[i].Close = 100 - float64(i)*0.5 // declining -> change15m negative
	}
	res := Compute(&cfg, Input{MacroTrend: model.TrendNeutral, M5Candles: m5, M15Candles: m15, Price: 110})
	require.Equal(t, model.TrendBearish, res.Trend15m)
	require.False(t, res.ValidEntry)
	require.Contains(t, res.Reasons, "m15_bearish_strict_mode")
}
