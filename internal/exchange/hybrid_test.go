package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
)

type stubREST struct{ tag string }

func (s *stubREST) Accounts(ctx context.Context) ([]Account, error) {
	return []Account{{Currency: s.tag}}, nil
}
func (s *stubREST) Ticker(ctx context.Context, instruments []string) ([]Ticker, error) {
	return []Ticker{{Instrument: s.tag}}, nil
}
func (s *stubREST) Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error) {
	return []model.Candle{{Close: 1}}, nil
}
func (s *stubREST) Orderbook(ctx context.Context, instrument string) (model.Orderbook, error) {
	return model.Orderbook{}, nil
}
func (s *stubREST) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	return Order{UUID: s.tag}, nil
}
func (s *stubREST) Cancel(ctx context.Context, uuid string) error { return nil }
func (s *stubREST) Order(ctx context.Context, uuid string) (Order, error) {
	return Order{UUID: s.tag}, nil
}
func (s *stubREST) ClosedOrders(ctx context.Context, instrument string, since, until time.Time, states []OrderState) ([]Order, error) {
	return nil, nil
}
func (s *stubREST) AllMarkets(ctx context.Context) ([]Market, error) {
	return []Market{{Instrument: s.tag}}, nil
}

func TestHybridRESTRoutesMarketDataAndOrdersSeparately(t *testing.T) {
	market := &stubREST{tag: "market"}
	orders := &stubREST{tag: "orders"}
	h := NewHybridREST(market, orders)

	accounts, err := h.Accounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, "orders", accounts[0].Currency)

	markets, err := h.AllMarkets(context.Background())
	require.NoError(t, err)
	require.Equal(t, "market", markets[0].Instrument)

	order, err := h.PlaceOrder(context.Background(), OrderRequest{})
	require.NoError(t, err)
	require.Equal(t, "orders", order.UUID)
}
