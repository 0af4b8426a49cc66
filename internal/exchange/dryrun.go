package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
)

// DryRunREST simulates fills at the current public-tape price per spec §6's
// DRY_RUN mode: order emission is skipped, positions are simulated. It
// wraps a PriceSource the caller keeps updated from the public WS stream.
type DryRunREST struct {
	mu          sync.Mutex
	prices      PriceSource
	quoteAsset  string
	balance     float64
	orders      map[string]Order
	seq         int
}

// PriceSource returns the last traded price for an instrument. Returning
// false means no trade has been observed yet (a data gap).
type PriceSource func(instrument string) (float64, bool)

// NewDryRunREST seeds the simulated account with startingBalance of
// quoteAsset (e.g. "KRW") and no open positions.
func NewDryRunREST(prices PriceSource, quoteAsset string, startingBalance float64) *DryRunREST {
	return &DryRunREST{
		prices:     prices,
		quoteAsset: quoteAsset,
		balance:    startingBalance,
		orders:     make(map[string]Order),
	}
}

func (d *DryRunREST) Accounts(ctx context.Context) ([]Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []Account{{Currency: d.quoteAsset, Balance: d.balance}}, nil
}

func (d *DryRunREST) Ticker(ctx context.Context, instruments []string) ([]Ticker, error) {
	out := make([]Ticker, 0, len(instruments))
	for _, inst := range instruments {
		if p, ok := d.prices(inst); ok {
			out = append(out, Ticker{Instrument: inst, TradePrice: p, Timestamp: time.Now()})
		}
	}
	return out, nil
}

// Candles is unimplemented for the in-memory fake: backfill is expected to
// come from the live REST client even in DRY_RUN, since simulated fills need
// no history of their own. Callers wire candle history through the live
// adapter's Candles regardless of DryRun.
func (d *DryRunREST) Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error) {
	return nil, fmt.Errorf("dry run REST has no candle history; use the live adapter for backfill")
}

func (d *DryRunREST) Orderbook(ctx context.Context, instrument string) (model.Orderbook, error) {
	return model.Orderbook{}, fmt.Errorf("dry run REST has no orderbook; orderbook comes from the public WS stream")
}

// PlaceOrder fills immediately at the current tape price, per spec §6.
func (d *DryRunREST) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	price, ok := d.prices(req.Instrument)
	if !ok {
		return Order{}, fmt.Errorf("no tape price observed yet for %s", req.Instrument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	uuid := fmt.Sprintf("dryrun-%d", d.seq)

	volume := req.Volume
	paid := req.Price
	switch req.Kind {
	case KindPriceMarketBuy:
		volume = req.Price / price
	default:
		paid = volume * price
	}

	switch req.Side {
	case SideBid:
		d.balance -= paid
	case SideAsk:
		d.balance += paid
	}

	order := Order{
		UUID:           uuid,
		Instrument:     req.Instrument,
		Side:           req.Side,
		Kind:           req.Kind,
		State:          OrderStateDone,
		Price:          price,
		Volume:         volume,
		ExecutedVolume: volume,
		Paid:           paid,
		CreatedAt:      time.Now(),
	}
	d.orders[uuid] = order
	return order, nil
}

func (d *DryRunREST) Cancel(ctx context.Context, uuid string) error {
	return nil // dry run orders fill synchronously; there is nothing to cancel
}

func (d *DryRunREST) Order(ctx context.Context, uuid string) (Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	order, ok := d.orders[uuid]
	if !ok {
		return Order{}, fmt.Errorf("unknown dry run order %s", uuid)
	}
	return order, nil
}

func (d *DryRunREST) ClosedOrders(ctx context.Context, instrument string, since, until time.Time, states []OrderState) ([]Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range d.orders {
		if o.Instrument == instrument {
			out = append(out, o)
		}
	}
	return out, nil
}

func (d *DryRunREST) AllMarkets(ctx context.Context) ([]Market, error) {
	return nil, fmt.Errorf("dry run REST has no market list; use the live adapter for market discovery")
}
