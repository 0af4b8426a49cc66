package entry

import (
	"testing"
	"time"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func freshState() *model.InstrumentState {
	return &model.InstrumentState{}
}

func baseInput(state *model.InstrumentState) Input {
	return Input{
		Now:          time.Now(),
		CurrentPrice: 100,
		State:        state,
		Trend:        model.TrendResult{H4Delta: 0.001, Daily3dDelta: 0.01, M5Delta: 0.01},
		MTF:          model.MTFResult{ValidEntry: true},
		Momentum:     model.MomentumResult{Signal: true, Strength: 80},
		Sentiment:    model.SentimentResult{Sentiment: model.SentimentNeutral},
		Indicators:   model.Indicators{RSI: 50, Fatigue: 10},
	}
}

func TestAllPreconditionsPassAllowsEntry(t *testing.T) {
	cfg := config.Defaults()
	d := Evaluate(&cfg, baseInput(freshState()))
	require.True(t, d.Enter)
}

func TestMaxTradesPerHourRejects(t *testing.T) {
	cfg := config.Defaults()
	s := freshState()
	s.TradesInHour = cfg.MaxTradesPerHour
	d := Evaluate(&cfg, baseInput(s))
	require.False(t, d.Enter)
	require.Equal(t, "max_trades_per_hour_reached", d.Reason)
}

func TestTooSoonAfterLastTradeRejects(t *testing.T) {
	cfg := config.Defaults()
	s := freshState()
	s.LastTradeTime = time.Now().Add(-1 * time.Minute)
	d := Evaluate(&cfg, baseInput(s))
	require.False(t, d.Enter)
	require.Equal(t, "too_soon_after_last_trade", d.Reason)
}

func TestLossCooldownUsesLongerWindowAfterTwoConsecutiveLosses(t *testing.T) {
	cfg := config.Defaults()
	s := freshState()
	s.ConsecutiveLosses = 2
	s.LastLossTime = time.Now().Add(-700 * time.Second) // past the 600s base cooldown...
	d := Evaluate(&cfg, baseInput(s))
	require.False(t, d.Enter, "...but still inside the 1200s consecutive-loss cooldown")
	require.Equal(t, "loss_cooldown_active", d.Reason)
}

func TestReentryGuardRequiresPriceBelowLastExit(t *testing.T) {
	cfg := config.Defaults()
	s := freshState()
	s.ConsecutiveLosses = 1
	s.LastExitPrice = 100
	in := baseInput(s)
	in.CurrentPrice = 99 // only 1% below, needs >=2%
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "reentry_guard_price_not_low_enough", d.Reason)
}

func TestMacroOverheatedRejects(t *testing.T) {
	cfg := config.Defaults()
	in := baseInput(freshState())
	in.Trend.Daily3dDelta = 0.25
	in.Trend.M5Delta = 0.001
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "macro_overheated", d.Reason)
}

func TestFatigueElevatedRequiresStrongMomentum(t *testing.T) {
	cfg := config.Defaults()
	in := baseInput(freshState())
	in.Indicators.Fatigue = 40
	in.Momentum.Strength = 60 // below the 75 floor required when fatigue is elevated
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "fatigue_or_rsi_elevated_without_strong_momentum", d.Reason)
}

func TestRSIOverboughtRejects(t *testing.T) {
	cfg := config.Defaults()
	in := baseInput(freshState())
	in.Indicators.RSI = 80
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "rsi_overbought", d.Reason)
}

func TestMomentumExhaustionRejects(t *testing.T) {
	cfg := config.Defaults()
	in := baseInput(freshState())
	in.Indicators.MomentumExhaustion = true
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "momentum_exhaustion", d.Reason)
}

func TestNoMomentumSignalRejects(t *testing.T) {
	cfg := config.Defaults()
	in := baseInput(freshState())
	in.Momentum.Signal = false
	d := Evaluate(&cfg, in)
	require.False(t, d.Enter)
	require.Equal(t, "no_momentum_signal", d.Reason)
}
