package position

import (
	"testing"
	"time"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func TestInitialStopLossRateUsesFallbackWhenVolatilityUnknown(t *testing.T) {
	cfg := config.Defaults()
	require.Equal(t, cfg.InitialStopLoss, InitialStopLossRate(&cfg, 0, false))
}

func TestInitialStopLossRateScalesWithVolatility(t *testing.T) {
	cfg := config.Defaults()
	rate := InitialStopLossRate(&cfg, 0.05, true) // factor = min(0.5, 1.0) = 0.5
	require.InDelta(t, cfg.DynamicStopLossMin+(cfg.DynamicStopLossMax-cfg.DynamicStopLossMin)*0.5, rate, 1e-9)
}

func TestInitialStopLossRateClampsAtMax(t *testing.T) {
	cfg := config.Defaults()
	rate := InitialStopLossRate(&cfg, 1.0, true) // factor = min(10, 1.0) = 1.0
	require.Equal(t, cfg.DynamicStopLossMax, rate)
}

func TestOpenSetsStopAndTakeProfit(t *testing.T) {
	cfg := config.Defaults()
	now := time.Now()
	pos := Open(&cfg, 100, 2, now, 0, false)
	require.Equal(t, 100.0, pos.EntryPrice)
	require.Equal(t, 200.0, pos.QuoteAmount)
	require.InDelta(t, 100*(1-cfg.InitialStopLoss), pos.StopLossPrice, 1e-9)
	require.InDelta(t, 100*(1+cfg.TakeProfitTarget), pos.TakeProfitPrice, 1e-9)
}

func TestBreakEvenPromotion(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)
	reason := Tick(&cfg, pos, 100*(1+cfg.BreakEvenTrigger), time.Now())
	require.Equal(t, ExitNone, reason)
	require.Equal(t, 100.0, pos.StopLossPrice, "stop must be raised to break-even")
}

func TestTrailingActivationAndMonotonicUpdate(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)

	Tick(&cfg, pos, 100*(1+cfg.TrailingStopActivation), time.Now())
	require.True(t, pos.TrailingActive)
	firstStop := pos.StopLossPrice

	// Price keeps rising: the trailing stop must follow upward, never down.
	Tick(&cfg, pos, 100*(1+cfg.TrailingStopActivation+0.01), time.Now())
	require.GreaterOrEqual(t, pos.StopLossPrice, firstStop)

	// Price dips slightly off the peak but stays above the trailing stop:
	// the stop must not retreat, and the position must not exit.
	afterRise := pos.StopLossPrice
	reason := Tick(&cfg, pos, 100*(1+cfg.TrailingStopActivation+0.007), time.Now())
	require.Equal(t, ExitNone, reason)
	require.Equal(t, afterRise, pos.StopLossPrice, "trailing stop is monotonic non-decreasing")
}

func TestStopLossExitWhenNotTrailing(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)
	reason := Tick(&cfg, pos, pos.StopLossPrice, time.Now())
	require.Equal(t, ExitStopLoss, reason)
}

func TestTrailingStopExitWhenTrailingActive(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)
	Tick(&cfg, pos, 100*(1+cfg.TrailingStopActivation), time.Now())
	require.True(t, pos.TrailingActive)
	reason := Tick(&cfg, pos, pos.StopLossPrice, time.Now())
	require.Equal(t, ExitTrailingStop, reason)
}

func TestTakeProfitPromotesToTrailingInsteadOfExiting(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)
	reason := Tick(&cfg, pos, pos.TakeProfitPrice, time.Now())
	require.Equal(t, ExitNone, reason)
	require.True(t, pos.TrailingActive)
}

func TestTimeExitAfterMaxHoldingTime(t *testing.T) {
	cfg := config.Defaults()
	entryTime := time.Now().Add(-(cfg.MaxHoldingTime + time.Second))
	pos := Open(&cfg, 100, 1, entryTime, 0, false)
	reason := Tick(&cfg, pos, 100, time.Now())
	require.Equal(t, ExitTimeExit, reason)
}

func TestCloseBookkeepingAppliesFeesAndStreaks(t *testing.T) {
	cfg := config.Defaults()
	pos := Open(&cfg, 100, 1, time.Now(), 0, false)
	state := &model.InstrumentState{}
	global := &model.GlobalState{}

	outcome := Close(&cfg, pos, 110, time.Now(), state, global)
	require.Greater(t, outcome.Profit, 0.0)
	require.True(t, outcome.IsWin)
	require.Equal(t, 0, state.ConsecutiveLosses)
	require.Equal(t, 1, global.CumulativeTrades)
	require.Equal(t, 1, global.CumulativeWins)

	lossOutcome := Close(&cfg, pos, 90, time.Now(), state, global)
	require.False(t, lossOutcome.IsWin)
	require.Equal(t, 1, state.ConsecutiveLosses)
	require.Equal(t, 2, global.CumulativeTrades)
	require.Equal(t, 1, global.CumulativeLosses)
}
