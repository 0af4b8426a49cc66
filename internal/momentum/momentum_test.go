package momentum

import (
	"testing"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func m1Candle(open, closeP, vol float64) model.Candle {
	return model.Candle{Open: open, Close: closeP, Volume: vol}
}

func bullishOrderbook() model.Orderbook {
	return model.Orderbook{TotalBidSize: 90, TotalAskSize: 10, Imbalance: 0.8}
}

func TestOrderbookWallOfAsksHardRejects(t *testing.T) {
	cfg := config.Defaults()
	in := Input{Orderbook: model.Orderbook{Imbalance: -0.5}}
	res := Compute(&cfg, in)
	require.False(t, res.Signal)
	require.Equal(t, "orderbook_wall_of_asks", res.Reason)
}

func TestNoRawSignalWhenFlat(t *testing.T) {
	cfg := config.Defaults()
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = m1Candle(100, 100, 10)
	}
	res := Compute(&cfg, Input{M1Candles: candles, Orderbook: bullishOrderbook(), Price: 100})
	require.False(t, res.Signal)
}

func momentumCandles() []model.Candle {
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = m1Candle(100, 100, 10)
	}
	candles[19].Volume = 80 // late volume spike, well short of the 0.03 parabolic threshold in price
	return candles
}

func TestMinuteSignalFiresAndPassesPostFilters(t *testing.T) {
	cfg := config.Defaults()
	candles := momentumCandles()

	res := Compute(&cfg, Input{
		Price:     102, // 2% above window open: above MOMENTUM_THRESHOLD, below the 3% parabolic veto
		M1Candles: candles,
		Orderbook: bullishOrderbook(),
		MTF: model.MTFResult{
			ValidEntry: true,
			Stage:      model.StageEarly,
			Trend5m:    model.TrendBullish,
			Trend15m:   model.TrendNeutral,
		},
	})
	require.True(t, res.MinuteSignal)
	require.True(t, res.Signal)
	require.GreaterOrEqual(t, res.Strength, cfg.MinSignalStrength)
}

func TestMTFInvalidEntryRejectsEvenWithRawSignal(t *testing.T) {
	cfg := config.Defaults()
	candles := momentumCandles()

	res := Compute(&cfg, Input{
		Price:     102,
		M1Candles: candles,
		Orderbook: bullishOrderbook(),
		MTF:       model.MTFResult{ValidEntry: false, Trend5m: model.TrendNeutral},
	})
	require.False(t, res.Signal)
	require.Equal(t, "mtf_invalid_entry", res.Reason)
}

func TestStageLateAlwaysRejects(t *testing.T) {
	cfg := config.Defaults()
	candles := momentumCandles()

	res := Compute(&cfg, Input{
		Price:     102,
		M1Candles: candles,
		Orderbook: bullishOrderbook(),
		MTF: model.MTFResult{
			ValidEntry: true,
			Stage:      model.StageLate,
			Trend5m:    model.TrendBullish,
		},
	})
	require.False(t, res.Signal)
	require.Equal(t, "stage_late", res.Reason)
}

func TestM5MomentumFadingRejects(t *testing.T) {
	cfg := config.Defaults()
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = m1Candle(100, 100, 10)
	}
	for i := 14; i < 20; i++ {
		candles[i] = m1Candle(100+float64(i), 100+float64(i)+1, 10)
	}
	candles[19].Volume = 80

	res := Compute(&cfg, Input{
		Price:        130,
		M1Candles:    candles,
		Orderbook:    bullishOrderbook(),
		PrevM5Return: 0.01,
		LastM5Return: 0.002, // less than half of prev -> fading
		MTF: model.MTFResult{
			ValidEntry: true,
			Stage:      model.StageEarly,
			Trend5m:    model.TrendBullish,
		},
	})
	require.False(t, res.Signal)
	require.Equal(t, "m5_momentum_fading", res.Reason)
}

func TestTrendFollowingFallback(t *testing.T) {
	cfg := config.Defaults()
	flat := make([]model.Candle, 20)
	for i := range flat {
		flat[i] = m1Candle(100, 100, 10)
	}
	res := Compute(&cfg, Input{
		Price:            100,
		M1Candles:        flat,
		Orderbook:        bullishOrderbook(),
		M5BidVolumeRatio: 0.6,
		LastMinuteChange: 0.004,
		MTF: model.MTFResult{
			ValidEntry: true,
			Stage:      model.StageNeutral,
			Trend5m:    model.TrendNeutral,
			Trend15m:   model.TrendNeutral,
		},
	})
	require.True(t, res.Signal)
	require.Equal(t, 80.0, res.Strength)
}
