// Package exchange defines the REST/WS adapter boundary per spec §6: the
// core never talks to a venue directly, only through this collaborator
// interface, so DRY_RUN and live trading share one call surface.
//
// Grounded on gatiella-binance-trading-bot's internal/binance.Client (REST
// shape, HMAC-SHA256 query signing) and ducminhle1904-crypto-dca-bot's
// internal/exchange/bybit package (PlaceOrderParams/Order field shape, the
// category/side/orderType vocabulary spot exchanges use), generalized from
// both venues' concrete types into the instrument-agnostic interface the
// spec demands.
package exchange

import (
	"context"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
)

// Side is the order side, spec-named bid/ask rather than buy/sell since the
// core reasons about orderbook sides, not trade direction.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Kind is the order type. "price" is a market-buy priced in quote currency
// (volume omitted, price holds the quote amount to spend); "market" is a
// market-sell sized in base currency; "limit" takes both price and volume.
type Kind string

const (
	KindPriceMarketBuy Kind = "price"
	KindMarket         Kind = "market"
	KindLimit          Kind = "limit"
)

// OrderState classifies a closed_orders() query result.
type OrderState string

const (
	OrderStateWait OrderState = "wait"
	OrderStateDone OrderState = "done"
	OrderStateCancel OrderState = "cancel"
)

// Account is one currency balance line from accounts().
type Account struct {
	Currency    string
	Balance     float64
	Locked      float64
	AvgBuyPrice float64
}

// Ticker is one instrument's current trade price snapshot.
type Ticker struct {
	Instrument string
	TradePrice float64
	Timestamp  time.Time
}

// OrderRequest is place_order()'s parameter set.
type OrderRequest struct {
	Instrument string
	Side       Side
	Kind       Kind
	Volume     float64 // base currency amount, for market-sell/limit
	Price      float64 // quote amount for price-buy, limit price for limit
}

// Order is the result of place_order()/order()/closed_orders().
type Order struct {
	UUID           string
	Instrument     string
	Side           Side
	Kind           Kind
	State          OrderState
	Price          float64
	Volume         float64
	ExecutedVolume float64
	Paid           float64 // quote currency actually spent/received
	CreatedAt      time.Time
}

// Market is one all_markets() entry.
type Market struct {
	Instrument    string
	TradedValue24h float64
}

// REST is the adapter's synchronous collaborator surface, spec §6.
type REST interface {
	Accounts(ctx context.Context) ([]Account, error)
	Ticker(ctx context.Context, instruments []string) ([]Ticker, error)
	Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error)
	Orderbook(ctx context.Context, instrument string) (model.Orderbook, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (Order, error)
	Cancel(ctx context.Context, uuid string) error
	Order(ctx context.Context, uuid string) (Order, error)
	ClosedOrders(ctx context.Context, instrument string, since, until time.Time, states []OrderState) ([]Order, error)
	AllMarkets(ctx context.Context) ([]Market, error)
}

// Tick is one public-stream event, normalized across ticker/trade/orderbook
// pushes so a single channel can carry all three.
type Tick struct {
	Instrument string
	Trade      *model.Trade
	Candle     *model.Candle
	Orderbook  *model.Orderbook
}

// PrivateEvent is one private-stream event (own order/asset update).
type PrivateEvent struct {
	Order *Order
}

// WS is the adapter's asynchronous collaborator surface, spec §6. Public
// pushes land on ticks; private pushes (after authenticating with a bearer
// token regenerated on every reconnect) land on private.
type WS interface {
	RunPublic(ctx context.Context, instruments []string, ticks chan<- Tick) error
	RunPrivate(ctx context.Context, tokenSource func(ctx context.Context) (string, error), events chan<- PrivateEvent) error
}

// envelope is the wire shape spec §6 describes: short-form or long-form
// field names for the same two keys. Payload fields are decoded separately
// per message type from the same raw bytes.
type envelope struct {
	Type string `json:"type"`
	Ty   string `json:"ty"`
	Code string `json:"code"`
	Cd   string `json:"cd"`
}

// normalizeType returns the envelope's message type regardless of which
// form the venue used.
func (e envelope) normalizeType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Ty
}

// normalizeCode returns the envelope's instrument/market code regardless of
// which form the venue used.
func (e envelope) normalizeCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Cd
}
