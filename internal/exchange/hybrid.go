package exchange

import (
	"context"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
)

// HybridREST splits the REST surface across two backing implementations:
// market-data reads always go to marketData (the live adapter, since
// candle backfill and market discovery need real history even in
// DRY_RUN), while account/order state goes to orders (DryRunREST in
// DRY_RUN, the live adapter otherwise). Per DryRunREST's own doc comment:
// callers wire candle history through the live adapter regardless of mode.
type HybridREST struct {
	marketData REST
	orders     REST
}

func NewHybridREST(marketData, orders REST) *HybridREST {
	return &HybridREST{marketData: marketData, orders: orders}
}

func (h *HybridREST) Accounts(ctx context.Context) ([]Account, error) {
	return h.orders.Accounts(ctx)
}

func (h *HybridREST) Ticker(ctx context.Context, instruments []string) ([]Ticker, error) {
	return h.marketData.Ticker(ctx, instruments)
}

func (h *HybridREST) Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error) {
	return h.marketData.Candles(ctx, tf, instrument, count, before)
}

func (h *HybridREST) Orderbook(ctx context.Context, instrument string) (model.Orderbook, error) {
	return h.marketData.Orderbook(ctx, instrument)
}

func (h *HybridREST) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	return h.orders.PlaceOrder(ctx, req)
}

func (h *HybridREST) Cancel(ctx context.Context, uuid string) error {
	return h.orders.Cancel(ctx, uuid)
}

func (h *HybridREST) Order(ctx context.Context, uuid string) (Order, error) {
	return h.orders.Order(ctx, uuid)
}

func (h *HybridREST) ClosedOrders(ctx context.Context, instrument string, since, until time.Time, states []OrderState) ([]Order, error) {
	return h.orders.ClosedOrders(ctx, instrument, since, until, states)
}

func (h *HybridREST) AllMarkets(ctx context.Context) ([]Market, error) {
	return h.marketData.AllMarkets(ctx)
}
