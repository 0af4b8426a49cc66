// Package metrics implements C11: a Prometheus registry of counters and
// gauges observed from the same points the csvlog trade journal and the
// orchestrator's stream dispatch loops already touch, exposed over HTTP
// alongside the engine's other endpoints.
//
// Grounded on ducminhle1904-crypto-dca-bot/internal/monitoring/metrics.go's
// promauto.NewCounterVec/NewGaugeVec package-level variable shape and its
// RecordTrade-style thin wrapper functions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CandlesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_candles_processed_total",
			Help: "Total candles applied to the candle store.",
		},
		[]string{"instrument", "timeframe"},
	)

	TicksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_ticks_processed_total",
			Help: "Total trade ticks pushed into the tick aggregator.",
		},
		[]string{"instrument"},
	)

	EntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_entries_total",
			Help: "Total entry orders placed.",
		},
		[]string{"instrument"},
	)

	EntriesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_entries_rejected_total",
			Help: "Total entry evaluations that did not result in an order.",
		},
		[]string{"instrument", "reason"},
	)

	PositionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "momentum_engine_positions_open",
			Help: "Whether an instrument currently holds an open position (1) or not (0).",
		},
		[]string{"instrument"},
	)

	CumulativeProfit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "momentum_engine_cumulative_profit",
			Help: "Cumulative realized profit across all closed positions.",
		},
	)

	WSReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_ws_reconnects_total",
			Help: "Total websocket reconnect attempts.",
		},
		[]string{"stream"},
	)

	RESTRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_engine_rest_retries_total",
			Help: "Total REST responses with HTTP 429 or 5xx (transient errors); the client does not retry them.",
		},
		[]string{"endpoint"},
	)
)

// RecordCandle observes one candle applied to the store for instrument/timeframe.
func RecordCandle(instrument, timeframe string) {
	CandlesProcessed.WithLabelValues(instrument, timeframe).Inc()
}

// RecordTick observes one trade tick dispatched to instrument's aggregator.
func RecordTick(instrument string) {
	TicksProcessed.WithLabelValues(instrument).Inc()
}

// RecordExit flips the open-position gauge back down and updates cumulative profit.
func RecordExit(instrument string, cumulativeProfit float64) {
	PositionsOpen.WithLabelValues(instrument).Set(0)
	CumulativeProfit.Set(cumulativeProfit)
}

// RecordRejection observes an entry evaluation that did not place an order.
func RecordRejection(instrument, reason string) {
	EntriesRejected.WithLabelValues(instrument, reason).Inc()
}

// RecordWSReconnect observes one reconnect attempt on stream ("public" or "private").
func RecordWSReconnect(stream string) {
	WSReconnects.WithLabelValues(stream).Inc()
}

// RecordRESTRetry observes one REST response with HTTP 429 or 5xx against
// endpoint. The call is returned to the caller as a transient error, not retried.
func RecordRESTRetry(endpoint string) {
	RESTRetries.WithLabelValues(endpoint).Inc()
}

// Handler returns the /metrics HTTP handler. main serves it on its own
// listener (MetricsAddr), separate from the dashboard on BroadcastAddr.
func Handler() http.Handler {
	return promhttp.Handler()
}
