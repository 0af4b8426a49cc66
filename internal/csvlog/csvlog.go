// Package csvlog implements the persistent-state logging spec §6 and §7
// require beyond candle rings: the append-only trade-log CSV and the
// per-run rotating operational log file.
//
// Grounded on the teacher's internal/logger.Logger: a non-blocking buffered
// channel into a dedicated goroutine, batched writes through a bufio.Writer
// flushed on a ticker, so the hot decision path never blocks on disk I/O.
// Generalized from the teacher's daily-rotating full-snapshot CSV to a
// single append-only trade-log file (spec §6 names one fixed path, not a
// rotating one) plus a one-shot operational log file opener.
package csvlog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	chanSize    = 256
	flushPeriod = 1 * time.Second
)

var tradeLogHeader = []string{
	"timestamp", "market", "type", "price", "trade_value", "volume",
	"profit", "profit_rate", "cumulative_profit", "reason",
}

// TradeRow is one row of the trade-log CSV, per spec §6's header.
type TradeRow struct {
	Timestamp        time.Time
	Market           string
	Type             string // "buy" or "sell"
	Price            float64
	TradeValue       float64
	Volume           float64
	Profit           float64
	ProfitRate       float64
	CumulativeProfit float64
	Reason           string
}

func (r TradeRow) toRecord() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Market,
		r.Type,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		strconv.FormatFloat(r.TradeValue, 'f', -1, 64),
		strconv.FormatFloat(r.Volume, 'f', -1, 64),
		strconv.FormatFloat(r.Profit, 'f', -1, 64),
		strconv.FormatFloat(r.ProfitRate, 'f', -1, 64),
		strconv.FormatFloat(r.CumulativeProfit, 'f', -1, 64),
		r.Reason,
	}
}

// TradeLogger appends one row per executed buy/sell to logs/trades.csv,
// per spec §6/§7. Log is non-blocking; a saturated channel drops the row
// rather than stall the caller's decision tick.
type TradeLogger struct {
	ch chan TradeRow
}

// NewTradeLogger opens (or creates) logDir/trades.csv and starts the
// background writer goroutine.
func NewTradeLogger(logDir string) (*TradeLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("csvlog: create log dir: %w", err)
	}
	path := filepath.Join(logDir, "trades.csv")

	writeHeader := false
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open trade log: %w", err)
	}

	l := &TradeLogger{ch: make(chan TradeRow, chanSize)}
	go l.run(f, writeHeader)
	return l, nil
}

// Log enqueues row for the background writer. Never blocks.
func (l *TradeLogger) Log(row TradeRow) {
	select {
	case l.ch <- row:
	default:
		log.Printf("csvlog: trade log channel full, dropping row for %s", row.Market)
	}
}

func (l *TradeLogger) run(f *os.File, writeHeader bool) {
	defer f.Close()
	w := csv.NewWriter(bufio.NewWriterSize(f, 1<<16))

	if writeHeader {
		_ = w.Write(tradeLogHeader)
		w.Flush()
	}

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case row, ok := <-l.ch:
			if !ok {
				w.Flush()
				return
			}
			if err := w.Write(row.toRecord()); err != nil {
				log.Printf("csvlog: write trade row: %v", err)
			}
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Close drains and stops the background writer.
func (l *TradeLogger) Close() {
	close(l.ch)
}

// OpenOperationalLog creates logDir/trading_YYYYMMDD_HHMMSS.log for the
// process's structured decision/entry/exit log lines, per spec §6's
// rotating-per-run operational log.
func OpenOperationalLog(logDir string, startedAt time.Time) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("csvlog: create log dir: %w", err)
	}
	name := fmt.Sprintf("trading_%s.log", startedAt.UTC().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open operational log: %w", err)
	}
	return f, nil
}
