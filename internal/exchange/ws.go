package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shk7773/momentum-engine/internal/metrics"
	"github.com/shk7773/momentum-engine/internal/model"

	"github.com/gorilla/websocket"
)

// reconnect backoff bounds, grounded on the teacher's ingest.Ingester loop.
const (
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// LiveWS dials the venue's public/private websocket endpoints and normalizes
// every message's envelope per spec §6 before handing it to the caller.
// Grounded on internal/ingest.Ingester/DepthIngester's exponential-backoff
// reconnect loop, generalized from Binance's single-stream-per-connection
// shape to a subscribe-many-instruments-on-one-socket shape.
type LiveWS struct {
	publicURL  string
	privateURL string
}

func NewLiveWS(publicURL, privateURL string) *LiveWS {
	return &LiveWS{publicURL: publicURL, privateURL: privateURL}
}

type subscribeRequest struct {
	Type       string   `json:"type"`
	Instrument []string `json:"codes"`
}

// RunPublic subscribes ticker/trade/orderbook/candle.* for instruments and
// pushes normalized Ticks to ticks until ctx is cancelled. Reconnects with
// exponential backoff on any transient failure.
func (w *LiveWS) RunPublic(ctx context.Context, instruments []string, ticks chan<- Tick) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := w.connectAndConsumePublic(ctx, instruments, ticks)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("public ws error: %v, reconnecting in %v", err, delay)
			metrics.RecordWSReconnect("public")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (w *LiveWS) connectAndConsumePublic(ctx context.Context, instruments []string, ticks chan<- Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.publicURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subs := []string{"ticker", "trade", "orderbook", "candle.1s", "candle.1m", "candle.5m", "candle.15m", "candle.30m", "candle.60m"}
	for _, s := range subs {
		if err := conn.WriteJSON(subscribeRequest{Type: s, Instrument: instruments}); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, ok, err := decodePublicMessage(raw)
		if err != nil {
			log.Printf("public ws decode error: %v", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case ticks <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}

// decodePublicMessage normalizes a raw public-stream message into a Tick.
// Returns ok=false for message types the core doesn't care about.
func decodePublicMessage(raw []byte) (Tick, bool, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Tick{}, false, err
	}

	switch env.normalizeType() {
	case "trade":
		var t struct {
			Code      string  `json:"code"`
			Cd        string  `json:"cd"`
			Price     float64 `json:"trade_price"`
			Volume    float64 `json:"trade_volume"`
			Side      string  `json:"ask_bid"`
			Timestamp int64   `json:"timestamp"`
			Sequence  int64   `json:"sequential_id"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return Tick{}, false, err
		}
		side := model.SideBid
		if t.Side == "ASK" {
			side = model.SideAsk
		}
		trade := model.Trade{
			TimestampMs: t.Timestamp,
			Price:       t.Price,
			Volume:      t.Volume,
			Side:        side,
			SequenceID:  t.Sequence,
		}
		return Tick{Instrument: normalizeOr(t.Code, t.Cd), Trade: &trade}, true, nil

	case "orderbook":
		var o struct {
			Code         string `json:"code"`
			Cd           string `json:"cd"`
			TotalAskSize float64 `json:"total_ask_size"`
			TotalBidSize float64 `json:"total_bid_size"`
			Units        []struct {
				AskPrice float64 `json:"ask_price"`
				BidPrice float64 `json:"bid_price"`
				AskSize  float64 `json:"ask_size"`
				BidSize  float64 `json:"bid_size"`
			} `json:"orderbook_units"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return Tick{}, false, err
		}
		ob := model.Orderbook{TotalAskSize: o.TotalAskSize, TotalBidSize: o.TotalBidSize}
		for _, u := range o.Units {
			ob.Units = append(ob.Units, model.OrderbookUnit{AskPrice: u.AskPrice, BidPrice: u.BidPrice, AskSize: u.AskSize, BidSize: u.BidSize})
		}
		return Tick{Instrument: normalizeOr(o.Code, o.Cd), Orderbook: &ob}, true, nil

	case "candle.1s", "candle.1m", "candle.5m", "candle.15m", "candle.30m", "candle.60m":
		var c struct {
			Code       string  `json:"code"`
			Cd         string  `json:"cd"`
			OpenTimeMs int64   `json:"open_time_ms"`
			Open       float64 `json:"opening_price"`
			High       float64 `json:"high_price"`
			Low        float64 `json:"low_price"`
			Close      float64 `json:"trade_price"`
			Volume     float64 `json:"candle_acc_trade_volume"`
		}
		if err := json.Unmarshal(raw, &c); err != nil {
			return Tick{}, false, err
		}
		candle := model.Candle{
			Timeframe:  timeframeFromType(env.normalizeType()),
			OpenTimeMs: c.OpenTimeMs,
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
		}
		return Tick{Instrument: normalizeOr(c.Code, c.Cd), Candle: &candle}, true, nil

	default:
		return Tick{}, false, nil
	}
}

func timeframeFromType(t string) model.Timeframe {
	switch t {
	case "candle.1s":
		return model.TFSecond
	case "candle.1m":
		return model.TFMinute
	case "candle.5m":
		return model.TF5Min
	case "candle.15m":
		return model.TF15Min
	case "candle.30m":
		return model.TF30Min
	case "candle.60m":
		return model.TFHour
	default:
		return model.TFMinute
	}
}

func normalizeOr(longForm, shortForm string) string {
	if longForm != "" {
		return longForm
	}
	return shortForm
}

// RunPrivate subscribes myOrder/myAsset, authenticating with a bearer token
// obtained from tokenSource. On disconnect the token is regenerated before
// the next reconnect attempt, per spec §6.
func (w *LiveWS) RunPrivate(ctx context.Context, tokenSource func(ctx context.Context) (string, error), events chan<- PrivateEvent) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		token, err := tokenSource(ctx)
		if err != nil {
			return fmt.Errorf("regenerate bearer token: %w", err)
		}

		err = w.connectAndConsumePrivate(ctx, token, events)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("private ws error: %v, reconnecting in %v", err, delay)
			metrics.RecordWSReconnect("private")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (w *LiveWS) connectAndConsumePrivate(ctx context.Context, token string, events chan<- PrivateEvent) error {
	header := map[string][]string{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.privateURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, s := range []string{"myOrder", "myAsset"} {
		if err := conn.WriteJSON(subscribeRequest{Type: s}); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("private ws decode error: %v", err)
			continue
		}
		if env.normalizeType() != "myOrder" {
			continue
		}
		var o orderResponse
		if err := json.Unmarshal(raw, &o); err != nil {
			log.Printf("private ws order decode error: %v", err)
			continue
		}
		order := o.toOrder()
		select {
		case events <- PrivateEvent{Order: &order}:
		case <-ctx.Done():
			return nil
		}
	}
}
