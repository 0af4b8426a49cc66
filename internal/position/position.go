// Package position implements C9 PositionManager: per-instrument position
// lifecycle — initial dynamic stop at entry, break-even promotion, trailing
// activation/update, the ordered exit checks, and exit bookkeeping — per
// spec §4.9.
// Grounded on the teacher's internal/state.RingBuffer single-writer
// discipline generalized to a single mutable Position struct (the position
// manager is the sole writer of Position/InstrumentState per spec §5), and
// on gatiella's risk.Manager for the general shape of a stop/take-profit
// state machine evaluated once per tick.
package position

import (
	"time"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
)

// ExitReason identifies why a position was closed.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitTimeExit     ExitReason = "time_exit"
	ExitNone         ExitReason = ""
)

// Tick mutates pos in place per spec §4.9 steps 1-4, then evaluates the
// ordered exit checks (step 5). Returns the exit reason (ExitNone if the
// position should remain open).
func Tick(cfg *config.Config, pos *model.Position, price float64, now time.Time) ExitReason {
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}

	// A price exactly on a trigger counts as reaching it; the epsilon absorbs
	// float rounding in ProfitRate (100*(1+0.006) yields a rate just under 0.006).
	const rateEpsilon = 1e-9
	profitRate := pos.ProfitRate(price) + rateEpsilon

	if profitRate >= cfg.BreakEvenTrigger && pos.StopLossPrice < pos.EntryPrice {
		pos.StopLossPrice = pos.EntryPrice
	}

	if profitRate >= cfg.TrailingStopActivation && !pos.TrailingActive {
		pos.TrailingActive = true
		floor := pos.EntryPrice * (1 + cfg.TrailingMinProfit)
		if floor > pos.StopLossPrice {
			pos.StopLossPrice = floor
		}
	}

	if pos.TrailingActive {
		candidate := pos.HighestPrice * (1 - cfg.TrailingStopDistance)
		floor := pos.EntryPrice * (1 + cfg.TrailingMinProfit)
		if floor > candidate {
			candidate = floor
		}
		if candidate > pos.StopLossPrice {
			pos.StopLossPrice = candidate
		}
	}

	switch {
	case price <= pos.StopLossPrice:
		if pos.TrailingActive {
			return ExitTrailingStop
		}
		return ExitStopLoss
	case price >= pos.TakeProfitPrice && !pos.TrailingActive:
		pos.TrailingActive = true
		pos.StopLossPrice = maxOf(pos.EntryPrice, pos.EntryPrice*(1+cfg.TrailingMinProfit))
		return ExitNone
	case now.Sub(pos.EntryTime) >= cfg.MaxHoldingTime:
		return ExitTimeExit
	}

	return ExitNone
}

// InitialStopLossRate implements spec §4.9's dynamic initial-stop formula.
// volatilityKnown distinguishes "volatility undersampled" (< 20 prices, per
// spec §4.3) from a genuine zero reading.
func InitialStopLossRate(cfg *config.Config, volatility float64, volatilityKnown bool) float64 {
	if !volatilityKnown {
		return cfg.InitialStopLoss
	}
	factor := volatility * 10
	if factor > 1.0 {
		factor = 1.0
	}
	rate := cfg.DynamicStopLossMin + (cfg.DynamicStopLossMax-cfg.DynamicStopLossMin)*factor
	if rate < cfg.DynamicStopLossMin {
		rate = cfg.DynamicStopLossMin
	}
	if rate > cfg.DynamicStopLossMax {
		rate = cfg.DynamicStopLossMax
	}
	return rate
}

// Open constructs a new Position at entry, per spec §4.9.
func Open(cfg *config.Config, entryPrice, volume float64, now time.Time, volatility float64, volatilityKnown bool) *model.Position {
	rate := InitialStopLossRate(cfg, volatility, volatilityKnown)
	return &model.Position{
		EntryPrice:      entryPrice,
		EntryTime:       now,
		Volume:          volume,
		QuoteAmount:     entryPrice * volume,
		HighestPrice:    entryPrice,
		StopLossPrice:   entryPrice * (1 - rate),
		TakeProfitPrice: entryPrice * (1 + cfg.TakeProfitTarget),
		DynamicStopRate: rate,
	}
}

// ExitOutcome bundles the bookkeeping result of closing a position.
type ExitOutcome struct {
	Profit      float64
	ProfitRate  float64
	IsWin       bool
}

// Close implements spec §4.9's exit bookkeeping: profit net of both legs'
// trading fee, and the resulting InstrumentState/GlobalState updates.
func Close(cfg *config.Config, pos *model.Position, sellPrice float64, now time.Time, state *model.InstrumentState, global *model.GlobalState) ExitOutcome {
	buyValue := pos.Volume * pos.EntryPrice
	sellValue := pos.Volume * sellPrice
	fees := (buyValue + sellValue) * cfg.TradingFeeRate
	profit := sellValue - buyValue - fees

	state.RecordExit(sellPrice, profit, now)
	global.RecordTrade(profit)

	return ExitOutcome{
		Profit:     profit,
		ProfitRate: profit / buyValue,
		IsWin:      profit >= 0,
	}
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
