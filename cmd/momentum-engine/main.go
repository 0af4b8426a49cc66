// Command momentum-engine runs the real-time momentum trading engine.
//
// Grounded on cmd/orderflow/main.go's top-level wiring: a single
// context.Context cancelled on SIGINT/SIGTERM, one goroutine per long-lived
// component, plain constructor calls with no framework/DI container.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shk7773/momentum-engine/internal/broadcast"
	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/csvlog"
	"github.com/shk7773/momentum-engine/internal/exchange"
	"github.com/shk7773/momentum-engine/internal/metrics"
	"github.com/shk7773/momentum-engine/internal/orchestrator"
	"github.com/shk7773/momentum-engine/internal/report"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	dryRun := flag.Bool("dry-run", false, "force DRY_RUN mode regardless of config/env")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting momentum-engine...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	startedAt := time.Now()
	opLog, err := csvlog.OpenOperationalLog(cfg.LogDir, startedAt)
	if err != nil {
		log.Fatalf("open operational log: %v", err)
	}
	defer opLog.Close()
	log.SetOutput(opLog)

	tradeLogger, err := csvlog.NewTradeLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("open trade logger: %v", err)
	}
	defer tradeLogger.Close()

	liveREST := exchange.NewLiveREST(cfg.ExchangeBaseURL, cfg.APIKey, cfg.APISecret)
	ws := exchange.NewLiveWS(cfg.ExchangePublicWSURL, cfg.ExchangePrivateWSURL)

	var rest exchange.REST = liveREST
	var orch *orchestrator.Orchestrator
	if cfg.DryRun {
		dryRunREST := exchange.NewDryRunREST(func(instrument string) (float64, bool) {
			if orch == nil {
				return 0, false
			}
			return orch.LastPrice(instrument)
		}, cfg.QuoteAsset, cfg.DryRunStartBalance)
		rest = exchange.NewHybridREST(liveREST, dryRunREST)
	}

	orch = orchestrator.New(&cfg, rest, ws, nil)
	orch.SetTokenSource(liveREST.BearerToken)

	consoleReporter := report.New(orch.Global())
	combined := newCombinedReporter(consoleReporter, tradeLogger)
	orch.SetReporter(combined)

	ctx, cancel := context.WithCancel(context.Background())

	if len(cfg.Markets) > 0 {
		for _, m := range cfg.Markets {
			if err := orch.AddInstrument(ctx, m); err != nil {
				log.Printf("add configured market %s: %v", m, err)
			}
		}
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	reportStop := make(chan struct{})
	dashboardMux := http.NewServeMux()
	dashboard := broadcast.NewServer(func() []broadcast.Snapshot {
		raw := orch.Snapshots()
		out := make([]broadcast.Snapshot, len(raw))
		for i, s := range raw {
			out[i] = broadcast.Snapshot{
				Instrument:  s.Instrument,
				Price:       s.Price,
				HasPosition: s.HasPosition,
				EntryPrice:  s.EntryPrice,
				ProfitRate:  s.ProfitRate,
			}
		}
		return out
	}, 1*time.Second)
	dashboard.Start(dashboardMux, reportStop)
	go func() {
		if err := http.ListenAndServe(cfg.BroadcastAddr, dashboardMux); err != nil {
			log.Printf("dashboard server exited: %v", err)
		}
	}()

	go consoleReporter.RunPeriodic(reportStop, cfg.ReportInterval)
	go runMonthlyExportLoop(reportStop, cfg.LogDir, consoleReporter)

	go func() {
		if err := orch.Run(ctx); err != nil {
			log.Printf("orchestrator exited: %v", err)
		}
	}()

	log.Printf("momentum-engine running (dry_run=%v, started=%s)", cfg.DryRun, startedAt.Format(time.RFC3339))

	waitForShutdown(cancel)
	close(reportStop)
}

func waitForShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down...")
	cancel()
}

// runMonthlyExportLoop checks the UTC day once an hour and, the first time it
// sees a new day, rewrites the current month's workbook from the whole
// in-memory journal (see SPEC_FULL.md's C12 expansion).
func runMonthlyExportLoop(stop <-chan struct{}, logDir string, reporter *report.Reporter) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	lastDay := -1
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if now.UTC().Day() == lastDay {
				continue
			}
			lastDay = now.UTC().Day()
			path := filepath.Join(logDir, now.UTC().Format("2006-01")+".xlsx")
			if err := reporter.ExportMonthlyWorkbook(path); err != nil {
				log.Printf("export monthly workbook: %v", err)
			}
		}
	}
}

// combinedReporter fans out every orchestrator.Reporter call to both the
// console/Excel reporter and the durable trades.csv journal, per
// SPEC_FULL.md's C12 expansion naming both as required outputs.
type combinedReporter struct {
	console          *report.Reporter
	trades           *csvlog.TradeLogger
	cumulativeProfit float64
}

func newCombinedReporter(console *report.Reporter, trades *csvlog.TradeLogger) *combinedReporter {
	return &combinedReporter{console: console, trades: trades}
}

func (c *combinedReporter) RecordEntry(instrument string, price, quoteAmount float64) {
	c.console.RecordEntry(instrument, price, quoteAmount)
	volume := 0.0
	if price != 0 {
		volume = quoteAmount / price
	}
	c.trades.Log(csvlog.TradeRow{
		Timestamp:  time.Now(),
		Market:     instrument,
		Type:       "buy",
		Price:      price,
		TradeValue: quoteAmount,
		Volume:     volume,
	})
}

func (c *combinedReporter) RecordExit(instrument string, price, profit, profitRate float64, reason string) {
	c.console.RecordExit(instrument, price, profit, profitRate, reason)
	c.cumulativeProfit += profit
	c.trades.Log(csvlog.TradeRow{
		Timestamp:        time.Now(),
		Market:           instrument,
		Type:             "sell",
		Price:            price,
		Profit:           profit,
		ProfitRate:       profitRate,
		CumulativeProfit: c.cumulativeProfit,
		Reason:           reason,
	})
}

func (c *combinedReporter) RecordRejection(instrument, reason string) {
	c.console.RecordRejection(instrument, reason)
}
