package model

import "time"

// Position is created by execute_buy, mutated only by PositionManager, and
// destroyed by execute_sell. See SPEC_FULL.md §3 EXPANSION for the fields
// added beyond spec.md's original set (BuyOrderID, FeePaidBuy, Reason).
type Position struct {
	EntryPrice   float64
	EntryTime    time.Time
	Volume       float64
	QuoteAmount  float64
	HighestPrice float64

	StopLossPrice   float64
	TakeProfitPrice float64
	TrailingActive  bool
	DynamicStopRate float64

	BuyOrderID string
	FeePaidBuy float64
	Reason     string
}

// ProfitRate returns the unrealized profit rate at the given price.
func (p *Position) ProfitRate(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// InstrumentState is the per-instrument bookkeeping the decision tick and
// PositionManager mutate exclusively; streams only touch candle/tick stores.
type InstrumentState struct {
	Position *Position

	LastTradeTime    time.Time
	LastLossTime     time.Time
	LastExitPrice    float64
	ConsecutiveLosses int
	RecentLossCount  int // within the trailing hour
	TradesInHour     int

	// ProcessingOrder acts as a per-instrument exclusion flag around any
	// order-emitting operation; no new buy or sell may begin while set.
	// In-memory only — crash between placement and fill confirmation has
	// no recovery path, per spec §9 Open Question 3 (not implemented).
	ProcessingOrder bool
}

// HasPosition reports whether the instrument currently holds a position.
func (s *InstrumentState) HasPosition() bool { return s.Position != nil }

// RecordExit updates loss/streak bookkeeping after a position is closed.
// profit >= 0 resets ConsecutiveLosses; profit < 0 increments it.
func (s *InstrumentState) RecordExit(exitPrice, profit float64, now time.Time) {
	s.LastExitPrice = exitPrice
	if profit >= 0 {
		s.ConsecutiveLosses = 0
	} else {
		s.ConsecutiveLosses++
		s.LastLossTime = now
		s.RecentLossCount++
	}
}

// GlobalState tracks process-wide cumulative counters, owned exclusively by
// the Orchestrator and updated only by PositionManager's exit path.
type GlobalState struct {
	CumulativeProfit float64
	CumulativeTrades int
	CumulativeWins   int
	CumulativeLosses int

	DailyProfit float64
	DailyTrades int

	BTCTrend   Trend
	MarketSafe bool
	StartTime  time.Time
}

// RecordTrade applies the outcome of a closed position to the global
// counters. profit >= 0 counts as a win.
func (g *GlobalState) RecordTrade(profit float64) {
	g.CumulativeProfit += profit
	g.CumulativeTrades++
	g.DailyProfit += profit
	g.DailyTrades++
	if profit >= 0 {
		g.CumulativeWins++
	} else {
		g.CumulativeLosses++
	}
}

// ResetDaily clears the daily counters; called by the Orchestrator's
// macro-refresh loop on the first tick after a UTC date change.
func (g *GlobalState) ResetDaily() {
	g.DailyProfit = 0
	g.DailyTrades = 0
}
