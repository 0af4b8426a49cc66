// Package entry implements C8 EntryPolicy: the eight ordered preconditions
// that gate a new position, orchestrating TrendAnalyzer, MTFEvaluator,
// MomentumDetector, and SentimentEngine results plus the reentry/risk gates.
// Grounded on the teacher's internal/engine.go per-tick evaluation sequence
// (a fixed ordered cascade of checks over a shared per-instrument state
// snapshot), generalized from a scoring pass to a binary entry gate.
package entry

import (
	"time"

	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/model"
)

const minuteOfFreshEntryCooldown = 5 * time.Minute

// Decision is EntryPolicy's output for one instrument on one decision tick.
type Decision struct {
	Enter  bool
	Reason string
}

// Input bundles the borrowed state and component results EntryPolicy reads.
type Input struct {
	Now           time.Time
	CurrentPrice  float64
	State         *model.InstrumentState
	Trend         model.TrendResult
	MTF           model.MTFResult
	Momentum      model.MomentumResult
	Sentiment     model.SentimentResult
	Indicators    model.Indicators
	SellPressure  float64 // ask_ratio_1m, used by precondition 5
}

// Evaluate implements spec §4.8's eight ordered preconditions, rejecting on
// the first that fails.
func Evaluate(cfg *config.Config, in Input) Decision {
	if reason, ok := canTrade(cfg, in.State, in.Now); !ok {
		return Decision{Reason: reason}
	}

	if in.State.ConsecutiveLosses > 0 && in.State.LastExitPrice > 0 {
		if in.CurrentPrice > 0.98*in.State.LastExitPrice {
			return Decision{Reason: "reentry_guard_price_not_low_enough"}
		}
	}

	if in.Trend.H4Delta < -0.005 {
		return Decision{Reason: "macro_h4_decline"}
	}
	if in.Trend.Daily3dDelta > 0.20 && in.Trend.M5Delta < 0.005 {
		return Decision{Reason: "macro_overheated"}
	}

	if in.Sentiment.Sentiment == model.SentimentBearish {
		return Decision{Reason: "sentiment_bearish"}
	}

	if in.Indicators.Fatigue >= 35 || in.Indicators.RSI >= 65 {
		if !(in.Momentum.Strength >= 75 && in.SellPressure <= 0.50) {
			return Decision{Reason: "fatigue_or_rsi_elevated_without_strong_momentum"}
		}
	}

	if in.Indicators.RSI >= 75 {
		return Decision{Reason: "rsi_overbought"}
	}

	if in.Indicators.MomentumExhaustion {
		return Decision{Reason: "momentum_exhaustion"}
	}

	if !in.Momentum.Signal {
		return Decision{Reason: "no_momentum_signal"}
	}

	return Decision{Enter: true}
}

// canTrade implements spec §4.8 precondition 1.
func canTrade(cfg *config.Config, s *model.InstrumentState, now time.Time) (string, bool) {
	if s.TradesInHour >= cfg.MaxTradesPerHour {
		return "max_trades_per_hour_reached", false
	}
	if !s.LastTradeTime.IsZero() && now.Sub(s.LastTradeTime) < minuteOfFreshEntryCooldown {
		return "too_soon_after_last_trade", false
	}
	if !s.LastLossTime.IsZero() {
		cooldown := cfg.CoolDownAfterLoss
		if s.ConsecutiveLosses >= 2 {
			cooldown = cfg.ConsecutiveLossCooldown
		}
		if now.Sub(s.LastLossTime) < cooldown {
			return "loss_cooldown_active", false
		}
	}
	if s.RecentLossCount >= 3 {
		return "too_many_recent_losses", false
	}
	return "", true
}
