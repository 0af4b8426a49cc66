package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedPrice(price float64) PriceSource {
	return func(instrument string) (float64, bool) { return price, true }
}

func TestDryRunPlaceOrderBuyFillsAtTapePrice(t *testing.T) {
	client := NewDryRunREST(fixedPrice(100), "KRW", 1_000_000)
	order, err := client.PlaceOrder(context.Background(), OrderRequest{
		Instrument: "KRW-BTC",
		Side:       SideBid,
		Kind:       KindPriceMarketBuy,
		Price:      100_000,
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, order.Price)
	require.InDelta(t, 1000.0, order.Volume, 1e-9)

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 900_000, accounts[0].Balance, 1e-9)
}

func TestDryRunPlaceOrderSellCreditsBalance(t *testing.T) {
	client := NewDryRunREST(fixedPrice(100), "KRW", 0)
	order, err := client.PlaceOrder(context.Background(), OrderRequest{
		Instrument: "KRW-BTC",
		Side:       SideAsk,
		Kind:       KindMarket,
		Volume:     2,
	})
	require.NoError(t, err)
	require.Equal(t, 200.0, order.Paid)

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200.0, accounts[0].Balance)
}

func TestDryRunPlaceOrderFailsWithoutObservedPrice(t *testing.T) {
	client := NewDryRunREST(func(string) (float64, bool) { return 0, false }, "KRW", 0)
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Instrument: "KRW-BTC", Side: SideBid, Kind: KindPriceMarketBuy, Price: 1000})
	require.Error(t, err)
}

func TestDryRunOrderLookupRoundTrips(t *testing.T) {
	client := NewDryRunREST(fixedPrice(50), "KRW", 10_000)
	placed, err := client.PlaceOrder(context.Background(), OrderRequest{Instrument: "KRW-ETH", Side: SideBid, Kind: KindPriceMarketBuy, Price: 5000})
	require.NoError(t, err)

	fetched, err := client.Order(context.Background(), placed.UUID)
	require.NoError(t, err)
	require.Equal(t, placed, fetched)
}
