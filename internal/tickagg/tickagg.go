// Package tickagg implements C2 TickAggregator: the trade tape ring, the
// bid/ask volume aggregates recomputed on tick arrival, and the cached
// orderbook snapshot with its derived fields. The imbalance/spread
// computation is grounded on the teacher's internal/orderbook.Book (single
// writer, snapshot-on-demand), generalized from a lock-free atomic pointer
// (appropriate there for a single global instrument) to an RWMutex-guarded
// struct (appropriate here, since TickAggregator is instantiated once per
// instrument and the per-instrument write rate is much lower).
package tickagg

import (
	"sync"

	"github.com/shk7773/momentum-engine/internal/model"
)

const tapeCapacity = 500

const (
	window1mMs = 60_000
	window5mMs = 300_000
	depthLevels = 5
)

// Aggregates holds the bid/ask volume sums and counts recomputed on every
// tick (spec §4.2).
type Aggregates struct {
	BidVolume1m float64
	AskVolume1m float64
	BidVolume5m float64
	AskVolume5m float64
	BidCount1m  int
	AskCount1m  int
}

// Aggregator owns one instrument's trade tape and orderbook cache.
// Single-writer (the stream-dispatch goroutine); Tape()/Aggregates()/
// Orderbook() are safe for concurrent readers.
type Aggregator struct {
	mu   sync.RWMutex
	tape []model.Trade // oldest first, bounded at tapeCapacity

	agg Aggregates
	ob  model.Orderbook
}

func New() *Aggregator {
	return &Aggregator{tape: make([]model.Trade, 0, tapeCapacity)}
}

// PushTrade implements spec §4.2: push into the ring, then recompute the
// 1m/5m aggregates using the arriving tick's own TimestampMs as "now" — never
// wall-clock (spec §9 Open Question 1 resolution).
func (a *Aggregator) PushTrade(t model.Trade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tape = append(a.tape, t)
	if len(a.tape) > tapeCapacity {
		a.tape = a.tape[len(a.tape)-tapeCapacity:]
	}

	nowMs := t.TimestampMs
	cutoff1m := nowMs - window1mMs
	cutoff5m := nowMs - window5mMs

	var agg Aggregates
	for i := len(a.tape) - 1; i >= 0; i-- {
		tr := a.tape[i]
		if tr.TimestampMs < cutoff5m {
			break
		}
		if tr.TimestampMs >= cutoff1m {
			switch tr.Side {
			case model.SideBid:
				agg.BidVolume1m += tr.Volume
				agg.BidCount1m++
			case model.SideAsk:
				agg.AskVolume1m += tr.Volume
				agg.AskCount1m++
			}
		}
		switch tr.Side {
		case model.SideBid:
			agg.BidVolume5m += tr.Volume
		case model.SideAsk:
			agg.AskVolume5m += tr.Volume
		}
	}
	a.agg = agg
}

// Tape returns a defensive copy of the trade tape, oldest first.
func (a *Aggregator) Tape() []model.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Trade, len(a.tape))
	copy(out, a.tape)
	return out
}

// Aggregates returns the latest bid/ask volume sums.
func (a *Aggregator) Aggregates() Aggregates {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.agg
}

// ApplyOrderbook implements spec §4.2's "on orderbook snapshot" handling:
// overwrite cached totals, compute spread, spread_rate, bid_depth_ratio
// (top-5 sums), imbalance.
func (a *Aggregator) ApplyOrderbook(ob model.Orderbook) {
	ob.Spread, ob.SpreadRate = spread(ob)
	ob.BidDepthRatio = depthRatio(ob)
	ob.Imbalance = imbalance(ob.TotalBidSize, ob.TotalAskSize)

	a.mu.Lock()
	a.ob = ob
	a.mu.Unlock()
}

// Orderbook returns the cached snapshot.
func (a *Aggregator) Orderbook() model.Orderbook {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ob
}

func spread(ob model.Orderbook) (spread, rate float64) {
	if len(ob.Units) == 0 {
		return 0, 0
	}
	best := ob.Units[0]
	spread = best.AskPrice - best.BidPrice
	if best.BidPrice > 0 {
		rate = spread / best.BidPrice
	}
	return spread, rate
}

func depthRatio(ob model.Orderbook) float64 {
	levels := depthLevels
	if levels > len(ob.Units) {
		levels = len(ob.Units)
	}
	var bid, ask float64
	for i := 0; i < levels; i++ {
		bid += ob.Units[i].BidSize
		ask += ob.Units[i].AskSize
	}
	total := bid + ask
	if total == 0 {
		return 0
	}
	return bid / total
}

// imbalance is the normalized (bid-ask)/(bid+ask), in [-1,1], per spec §3.
func imbalance(bid, ask float64) float64 {
	total := bid + ask
	if total == 0 {
		return 0
	}
	return (bid - ask) / total
}
