package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/exchange"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func TestRatioHandlesZeroTotal(t *testing.T) {
	require.Equal(t, 0.5, ratio(0, 0))
	require.InDelta(t, 0.75, ratio(3, 1), 1e-9)
}

func TestCloseDeltaAtGuardsShortHistory(t *testing.T) {
	candles := []model.Candle{{Close: 100}, {Close: 110}}
	require.Equal(t, 0.0, closeDeltaAt(candles, 5))
	require.InDelta(t, 0.10, closeDeltaAt(candles, 1), 1e-9)
}

func TestCheckBTCSetsMarketSafeOnDowntrend(t *testing.T) {
	cfg := config.Defaults()
	cfg.BTCDowntrendBuyBlock = true
	rest := &fakeRESTForBTC{change: -0.02}
	o := New(&cfg, rest, nil, nil)

	o.checkBTC(context.Background())

	require.Equal(t, model.TrendBearish, o.global.BTCTrend)
	require.False(t, o.global.MarketSafe)
}

func TestCheckBTCLeavesMarketSafeOnNeutral(t *testing.T) {
	cfg := config.Defaults()
	cfg.BTCDowntrendBuyBlock = true
	rest := &fakeRESTForBTC{change: 0.0}
	o := New(&cfg, rest, nil, nil)

	o.checkBTC(context.Background())

	require.True(t, o.global.MarketSafe)
}

func TestApplyFillOpensAndClosesPosition(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	o := New(&cfg, &fakeRESTForBTC{}, nil, nil)
	require.NoError(t, o.AddInstrument(context.Background(), "KRW-ETH"))
	inst, ok := o.lookup("KRW-ETH")
	require.True(t, ok)

	o.applyFill(inst, exchange.Order{
		Instrument:     "KRW-ETH",
		Side:           exchange.SideBid,
		State:          exchange.OrderStateDone,
		Price:          100,
		ExecutedVolume: 2,
		Paid:           200,
		CreatedAt:      time.Now(),
	})
	require.True(t, inst.state.HasPosition())
	require.Equal(t, 100.0, inst.state.Position.EntryPrice)

	o.applyFill(inst, exchange.Order{
		Instrument: "KRW-ETH",
		Side:       exchange.SideAsk,
		State:      exchange.OrderStateDone,
		Price:      110,
		CreatedAt:  time.Now(),
	})
	require.False(t, inst.state.HasPosition())
	require.Equal(t, 1, o.global.CumulativeTrades)
	require.Equal(t, 1, o.global.CumulativeWins)
}

type fakeRESTForBTC struct {
	change float64
}

func (f *fakeRESTForBTC) Accounts(ctx context.Context) ([]exchange.Account, error) { return nil, nil }
func (f *fakeRESTForBTC) Ticker(ctx context.Context, instruments []string) ([]exchange.Ticker, error) {
	return nil, nil
}
func (f *fakeRESTForBTC) Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error) {
	return []model.Candle{
		{Close: 100},
		{Close: 100 * (1 + f.change)},
	}, nil
}
func (f *fakeRESTForBTC) Orderbook(ctx context.Context, instrument string) (model.Orderbook, error) {
	return model.Orderbook{}, nil
}
func (f *fakeRESTForBTC) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.Order, error) {
	return exchange.Order{}, nil
}
func (f *fakeRESTForBTC) Cancel(ctx context.Context, uuid string) error { return nil }
func (f *fakeRESTForBTC) Order(ctx context.Context, uuid string) (exchange.Order, error) {
	return exchange.Order{}, nil
}
func (f *fakeRESTForBTC) ClosedOrders(ctx context.Context, instrument string, since, until time.Time, states []exchange.OrderState) ([]exchange.Order, error) {
	return nil, nil
}
func (f *fakeRESTForBTC) AllMarkets(ctx context.Context) ([]exchange.Market, error) { return nil, nil }
