// Package config builds the immutable Config record injected into every
// component at construction (spec §9: "no process-wide singletons").
//
// Loading follows the pack convention: a .env file for secrets/environment
// overrides (joho/godotenv, as in gatiella-binance-trading-bot and
// ducminhle1904-crypto-dca-bot), merged with a YAML file for the instrument
// list and tunable thresholds (gopkg.in/yaml.v3, as in gatiella's config
// loader), with environment variables taking precedence over the YAML
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is immutable after Load returns. Every threshold named in spec §6
// has a field here; defaults match the values enumerated there.
type Config struct {
	// Exchange credentials, passed once to the REST/WS adapter at init.
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`

	DryRun bool `yaml:"dry_run"`

	MaxInvestment   float64 `yaml:"max_investment"`
	MinOrderAmount  float64 `yaml:"min_order_amount"`
	TradingFeeRate  float64 `yaml:"trading_fee_rate"`

	MomentumWindow       int     `yaml:"momentum_window"`
	MomentumThreshold    float64 `yaml:"momentum_threshold"`
	MinSignalStrength    float64 `yaml:"min_signal_strength"`
	VolumeSpikeRatio     float64 `yaml:"volume_spike_ratio"`
	ConsecutiveUpCandles int     `yaml:"consecutive_up_candles"`
	BreakoutVelocity     float64 `yaml:"breakout_velocity"`

	SecondMomentumWindow    int     `yaml:"second_momentum_window"`
	SecondMomentumThreshold float64 `yaml:"second_momentum_threshold"`
	SecondRapidRiseThreshold float64 `yaml:"second_rapid_rise_threshold"`
	UseSecondCandles        bool    `yaml:"use_second_candles"`

	MTFEnabled             bool    `yaml:"mtf_enabled"`
	MTF5mMinCandles        int     `yaml:"mtf_5m_min_candles"`
	MTF15mMinCandles       int     `yaml:"mtf_15m_min_candles"`
	MTF5mTrendThreshold    float64 `yaml:"mtf_5m_trend_threshold"`
	MTF15mTrendThreshold   float64 `yaml:"mtf_15m_trend_threshold"`
	MTF5mEarlyStageMax     float64 `yaml:"mtf_5m_early_stage_max"`
	MTFMax1mChange         float64 `yaml:"mtf_max_1m_change"`
	MTFVolumeConfirmation  float64 `yaml:"mtf_volume_confirmation"`
	MTFStrictMode          bool    `yaml:"mtf_strict_mode"`

	MacroMinChangeRate     float64       `yaml:"macro_min_change_rate"`
	MacroBullishThreshold  float64       `yaml:"macro_bullish_threshold"`
	MacroUpdateInterval    time.Duration `yaml:"-"`

	LongTermFilterEnabled        bool    `yaml:"long_term_filter_enabled"`
	DailyBearishThreshold        float64 `yaml:"daily_bearish_threshold"`
	H4BearishThreshold           float64 `yaml:"h4_bearish_threshold"`
	IgnoreShortSqueezeInDowntrend bool   `yaml:"ignore_short_squeeze_in_downtrend"`

	VReversalEnabled    bool    `yaml:"v_reversal_enabled"`
	VReversalMinDrop    float64 `yaml:"v_reversal_min_drop"`
	VReversalMinRise    float64 `yaml:"v_reversal_min_rise"`
	VolatilityMaxStddev float64 `yaml:"volatility_max_stddev"`

	InitialStopLoss       float64       `yaml:"initial_stop_loss"`
	DynamicStopLossMin    float64       `yaml:"dynamic_stop_loss_min"`
	DynamicStopLossMax    float64       `yaml:"dynamic_stop_loss_max"`
	BreakEvenTrigger      float64       `yaml:"break_even_trigger"`
	TrailingStopActivation float64      `yaml:"trailing_stop_activation"`
	TrailingStopDistance  float64       `yaml:"trailing_stop_distance"`
	TrailingMinProfit     float64       `yaml:"trailing_min_profit"`
	TakeProfitTarget      float64       `yaml:"take_profit_target"`
	MaxHoldingTime        time.Duration `yaml:"-"`

	MaxTradesPerHour        int           `yaml:"max_trades_per_hour"`
	CoolDownAfterLoss       time.Duration `yaml:"-"`
	ConsecutiveLossCooldown time.Duration `yaml:"-"`

	BTCTrendThreshold    float64       `yaml:"btc_trend_threshold"`
	BTCBullishThreshold  float64       `yaml:"btc_bullish_threshold"`
	BTCCheckInterval     time.Duration `yaml:"-"`
	BTCDowntrendBuyBlock bool          `yaml:"btc_downtrend_buy_block"`

	Markets             []string      `yaml:"markets"`
	TopMarketCount      int           `yaml:"top_market_count"`
	MarketUpdateInterval time.Duration `yaml:"-"`

	ReportInterval time.Duration `yaml:"-"`

	DataDir string `yaml:"data_dir"`
	LogDir  string `yaml:"log_dir"`

	MetricsAddr   string `yaml:"metrics_addr"`
	BroadcastAddr string `yaml:"broadcast_addr"`

	ExchangeBaseURL      string `yaml:"exchange_base_url"`
	ExchangePublicWSURL  string `yaml:"exchange_public_ws_url"`
	ExchangePrivateWSURL string `yaml:"exchange_private_ws_url"`
	QuoteAsset           string `yaml:"quote_asset"`
	DryRunStartBalance   float64 `yaml:"dry_run_start_balance"`

	// Duration fields configured in seconds in YAML/env; parsed here.
	MacroUpdateIntervalSec     int `yaml:"macro_update_interval"`
	MaxHoldingTimeSec          int `yaml:"max_holding_time"`
	CoolDownAfterLossSec       int `yaml:"cool_down_after_loss"`
	ConsecutiveLossCooldownSec int `yaml:"consecutive_loss_cooldown"`
	BTCCheckIntervalSec        int `yaml:"btc_check_interval"`
	MarketUpdateIntervalSec    int `yaml:"market_update_interval"`
	ReportIntervalSec          int `yaml:"report_interval"`
}

// Defaults returns the spec §6 default values before YAML/env overrides.
func Defaults() Config {
	cfg := Config{
		DryRun: true,

		MaxInvestment:  100000,
		MinOrderAmount: 5000,
		TradingFeeRate: 0.0005,

		MomentumWindow:       20,
		MomentumThreshold:    0.015,
		MinSignalStrength:    75,
		VolumeSpikeRatio:     3.0,
		ConsecutiveUpCandles: 6,
		BreakoutVelocity:     0.0015,

		SecondMomentumWindow:     15,
		SecondMomentumThreshold:  0.002,
		SecondRapidRiseThreshold: 0.006,
		UseSecondCandles:         true,

		MTFEnabled:            true,
		MTF5mMinCandles:       24,
		MTF15mMinCandles:      12,
		MTF5mTrendThreshold:   0.002,
		MTF15mTrendThreshold:  0.002,
		MTF5mEarlyStageMax:    0.02,
		MTFMax1mChange:        0.03,
		MTFVolumeConfirmation: 1.5,
		MTFStrictMode:         false,

		MacroMinChangeRate:    -0.015,
		MacroBullishThreshold: 0.015,

		LongTermFilterEnabled:         true,
		DailyBearishThreshold:         -0.02,
		H4BearishThreshold:            -0.005,
		IgnoreShortSqueezeInDowntrend: true,

		VReversalEnabled:    true,
		VReversalMinDrop:    -0.003,
		VReversalMinRise:    0.002,
		VolatilityMaxStddev: 0.008,

		InitialStopLoss:        0.020,
		DynamicStopLossMin:     0.015,
		DynamicStopLossMax:     0.025,
		BreakEvenTrigger:       0.006,
		TrailingStopActivation: 0.008,
		TrailingStopDistance:   0.004,
		TrailingMinProfit:      0.003,
		TakeProfitTarget:       0.025,

		MaxTradesPerHour: 20,

		BTCTrendThreshold:    -0.01,
		BTCBullishThreshold:  0.01,
		BTCDowntrendBuyBlock: true,

		TopMarketCount: 20,

		DataDir: "data",
		LogDir:  "logs",

		MetricsAddr:   ":9090",
		BroadcastAddr: ":8080",

		ExchangeBaseURL:      "https://api.upbit.com",
		ExchangePublicWSURL:  "wss://api.upbit.com/websocket/v1",
		ExchangePrivateWSURL: "wss://api.upbit.com/websocket/v1/private",
		QuoteAsset:           "KRW",
		DryRunStartBalance:   1000000,

		MacroUpdateIntervalSec:     60,
		MaxHoldingTimeSec:          21600,
		CoolDownAfterLossSec:       600,
		ConsecutiveLossCooldownSec: 1200,
		BTCCheckIntervalSec:        60,
		MarketUpdateIntervalSec:    600,
		ReportIntervalSec:          30,
	}
	cfg.resolveDurations()
	return cfg
}

// Load reads .env (if present, ignored if absent), then a YAML file at
// yamlPath (if non-empty and present), then applies recognized environment
// variable overrides, and finally resolves the *_Sec integer fields into
// time.Duration fields.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := Defaults()

	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", yamlPath, err)
		}
	}

	cfg.APIKey = envOr("EXCHANGE_API_KEY", cfg.APIKey)
	cfg.APISecret = envOr("EXCHANGE_API_SECRET", cfg.APISecret)
	cfg.DryRun = envBoolOr("DRY_RUN", cfg.DryRun)
	if m := os.Getenv("MARKET"); m != "" {
		cfg.Markets = strings.Split(m, ",")
	}

	cfg.resolveDurations()
	return cfg, nil
}

func (c *Config) resolveDurations() {
	c.MacroUpdateInterval = time.Duration(c.MacroUpdateIntervalSec) * time.Second
	c.MaxHoldingTime = time.Duration(c.MaxHoldingTimeSec) * time.Second
	c.CoolDownAfterLoss = time.Duration(c.CoolDownAfterLossSec) * time.Second
	c.ConsecutiveLossCooldown = time.Duration(c.ConsecutiveLossCooldownSec) * time.Second
	c.BTCCheckInterval = time.Duration(c.BTCCheckIntervalSec) * time.Second
	c.MarketUpdateInterval = time.Duration(c.MarketUpdateIntervalSec) * time.Second
	c.ReportInterval = time.Duration(c.ReportIntervalSec) * time.Second
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
