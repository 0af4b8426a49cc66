package tickagg

import (
	"testing"

	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

func trade(ms int64, side model.Side, vol float64) model.Trade {
	return model.Trade{TimestampMs: ms, Side: side, Volume: vol, Price: 100}
}

func TestPushTradeWindowCutoffsUseTickTime(t *testing.T) {
	a := New()
	// seed with a trade that will end up outside the 1m window but inside the 5m window
	a.PushTrade(trade(0, model.SideBid, 50))
	// a trade 4 minutes later: inside 5m window, outside 1m window, relative
	// to itself as "now".
	a.PushTrade(trade(4*60_000, model.SideAsk, 7))

	agg := a.Aggregates()
	require.Equal(t, 0.0, agg.BidVolume1m, "the old trade must fall outside the 1m window measured from the latest tick time")
	require.Equal(t, 7.0, agg.AskVolume1m)
	require.Equal(t, 7.0, agg.AskVolume5m)
	require.Equal(t, 50.0, agg.BidVolume5m, "the trade at t=0 is inside the 5m window measured from t=4m")
}

func TestPushTradeAccumulatesWithinWindow(t *testing.T) {
	a := New()
	a.PushTrade(trade(0, model.SideBid, 10))
	a.PushTrade(trade(30_000, model.SideBid, 5))
	a.PushTrade(trade(59_000, model.SideAsk, 3))

	agg := a.Aggregates()
	require.Equal(t, 15.0, agg.BidVolume1m)
	require.Equal(t, 3.0, agg.AskVolume1m)
	require.Equal(t, 1, agg.AskCount1m)
	require.Equal(t, 2, agg.BidCount1m)
}

func TestTapeCapacityEviction(t *testing.T) {
	a := New()
	for i := 0; i < tapeCapacity+50; i++ {
		a.PushTrade(trade(int64(i), model.SideBid, 1))
	}
	tape := a.Tape()
	require.Len(t, tape, tapeCapacity)
	require.Equal(t, int64(50), tape[0].TimestampMs, "oldest trades must be evicted first")
}

func TestApplyOrderbookComputesDerivedFields(t *testing.T) {
	a := New()
	ob := model.Orderbook{
		TotalBidSize: 30,
		TotalAskSize: 10,
		Units: []model.OrderbookUnit{
			{BidPrice: 99, AskPrice: 101, BidSize: 5, AskSize: 2},
			{BidPrice: 98, AskPrice: 102, BidSize: 5, AskSize: 2},
		},
	}
	a.ApplyOrderbook(ob)

	got := a.Orderbook()
	require.Equal(t, 2.0, got.Spread)
	require.InDelta(t, 2.0/99.0, got.SpreadRate, 1e-9)
	require.InDelta(t, 10.0/14.0, got.BidDepthRatio, 1e-9, "bid_depth_ratio sums top-5 levels (fewer if unavailable)")
	require.InDelta(t, 0.5, got.Imbalance, 1e-9, "(30-10)/(30+10) = 0.5")
}

func TestApplyOrderbookEmptyBookIsZeroValueSafe(t *testing.T) {
	a := New()
	a.ApplyOrderbook(model.Orderbook{})
	got := a.Orderbook()
	require.Equal(t, 0.0, got.Spread)
	require.Equal(t, 0.0, got.BidDepthRatio)
	require.Equal(t, 0.0, got.Imbalance)
}
