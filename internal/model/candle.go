// Package model holds the data types shared across every component, per the
// data model in SPEC_FULL.md §3. Types here are plain value structs; rings
// and stores that own collections of them live in their respective packages.
package model

// Timeframe tags a Candle with its bucket width. Declared in spec order.
type Timeframe string

const (
	TFSecond Timeframe = "S1"
	TFMinute Timeframe = "M1"
	TF5Min   Timeframe = "M5"
	TF15Min  Timeframe = "M15"
	TF30Min  Timeframe = "M30"
	TFHour   Timeframe = "H1"
	TF4Hour  Timeframe = "H4"
	TFDay    Timeframe = "D1"
)

// RingCapacity returns the bounded ring size mandated by spec §3 for a
// timeframe that the CandleStore physically retains (H4/D1 are derived from
// the M5 ring by TrendAnalyzer, not separately stored).
func RingCapacity(tf Timeframe) int {
	switch tf {
	case TFSecond:
		return 120
	case TFMinute:
		return 200
	case TF5Min:
		return 600
	case TF15Min:
		return 400
	case TF30Min:
		return 200
	case TFHour:
		return 200
	default:
		return 200
	}
}

// Candle is {open, high, low, close, volume, open_time} with a timeframe tag.
// OpenTimeMs is the exchange-reported open time in unix milliseconds; rings
// are totally ordered by this field, never by arrival/wall-clock time.
type Candle struct {
	Timeframe  Timeframe
	OpenTimeMs int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Side identifies the aggressor side of a trade tick.
type Side string

const (
	SideBid Side = "BID" // market-buy-side execution
	SideAsk Side = "ASK"
)

// Trade is a single executed transaction on the public tape.
type Trade struct {
	TimestampMs int64
	Price       float64
	Volume      float64
	Side        Side
	SequenceID  int64
}

// OrderbookUnit is one (ask_price, bid_price, ask_size, bid_size) level.
type OrderbookUnit struct {
	AskPrice float64
	BidPrice float64
	AskSize  float64
	BidSize  float64
}

// Orderbook is a snapshot plus its cached derived fields.
type Orderbook struct {
	TotalAskSize float64
	TotalBidSize float64
	Units        []OrderbookUnit

	Spread        float64
	SpreadRate    float64
	BidDepthRatio float64 // top-5
	Imbalance     float64 // (bid-ask)/(bid+ask) in [-1,1]
}
