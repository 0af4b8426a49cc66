// Package report implements C12 Reporting: a periodic console dashboard and
// a monthly Excel workbook export, both over the same in-memory trade
// journal the orchestrator feeds through Reporter.
//
// Grounded on ducminhle1904-crypto-dca-bot's printStartupInfo/printBotConfiguration
// go-pretty table shape (table.NewWriter + SetStyle(StyleRounded) +
// AppendRows + SetColumnConfigs) for the console side, and its
// pkg/reporting/excel.go sheet-per-concern workbook layout
// (SetSheetName/NewSheet/SetCellValue/SaveAs) for the Excel side,
// simplified from that package's custom cell styling to plain values —
// this spec has no requirement for colored cells, only a durable monthly
// record.
package report

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"
)

// TradeRecord is one journal entry: either an entry, an exit, or a rejection.
type TradeRecord struct {
	Timestamp  time.Time
	Instrument string
	Kind       string // "entry", "exit", "rejected"
	Price      float64
	Amount     float64 // quote amount on entry, profit on exit
	ProfitRate float64
	Reason     string
}

// Reporter is the orchestrator.Reporter implementation: an in-memory trade
// journal plus cumulative counters read from the shared GlobalState.
type Reporter struct {
	mu     sync.Mutex
	global *model.GlobalState
	trades []TradeRecord
}

func New(global *model.GlobalState) *Reporter {
	return &Reporter{global: global}
}

func (r *Reporter) RecordEntry(instrument string, price, quoteAmount float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, TradeRecord{
		Timestamp:  time.Now(),
		Instrument: instrument,
		Kind:       "entry",
		Price:      price,
		Amount:     quoteAmount,
	})
}

func (r *Reporter) RecordExit(instrument string, price, profit, profitRate float64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, TradeRecord{
		Timestamp:  time.Now(),
		Instrument: instrument,
		Kind:       "exit",
		Price:      price,
		Amount:     profit,
		ProfitRate: profitRate,
		Reason:     reason,
	})
}

func (r *Reporter) RecordRejection(instrument, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, TradeRecord{
		Timestamp:  time.Now(),
		Instrument: instrument,
		Kind:       "rejected",
		Reason:     reason,
	})
}

func (r *Reporter) snapshot() []TradeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TradeRecord, len(r.trades))
	copy(out, r.trades)
	return out
}

// recentExits returns the last n exit records, most recent first.
func recentExits(trades []TradeRecord, n int) []TradeRecord {
	var exits []TradeRecord
	for i := len(trades) - 1; i >= 0 && len(exits) < n; i-- {
		if trades[i].Kind == "exit" {
			exits = append(exits, trades[i])
		}
	}
	return exits
}

// PrintSummary renders the cumulative-counters table plus the most recent
// exits, mirroring the teacher's startup-info table shape.
func (r *Reporter) PrintSummary() {
	trades := r.snapshot()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("MOMENTUM ENGINE SUMMARY")
	t.SetStyle(table.StyleRounded)

	winRate := 0.0
	if r.global.CumulativeTrades > 0 {
		winRate = float64(r.global.CumulativeWins) / float64(r.global.CumulativeTrades) * 100
	}

	t.AppendRows([]table.Row{
		{"Cumulative P&L", fmt.Sprintf("%.2f", r.global.CumulativeProfit)},
		{"Cumulative Trades", r.global.CumulativeTrades},
		{"Win Rate", fmt.Sprintf("%.1f%%", winRate)},
		{"Daily P&L", fmt.Sprintf("%.2f", r.global.DailyProfit)},
		{"BTC Trend", string(r.global.BTCTrend)},
		{"Market Safe", r.global.MarketSafe},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 15, Align: text.AlignLeft},
	})
	t.Render()

	exits := recentExits(trades, 10)
	if len(exits) == 0 {
		return
	}

	et := table.NewWriter()
	et.SetOutputMirror(os.Stdout)
	et.SetTitle("RECENT EXITS")
	et.SetStyle(table.StyleRounded)
	et.AppendHeader(table.Row{"Time", "Instrument", "Price", "Profit", "Profit Rate", "Reason"})
	for _, ex := range exits {
		et.AppendRow(table.Row{
			ex.Timestamp.Format("15:04:05"), ex.Instrument,
			fmt.Sprintf("%.4f", ex.Price), fmt.Sprintf("%.2f", ex.Amount),
			fmt.Sprintf("%.2f%%", ex.ProfitRate*100), ex.Reason,
		})
	}
	et.Render()
}

// RunPeriodic prints the summary every interval until stop is closed.
func (r *Reporter) RunPeriodic(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.PrintSummary()
		}
	}
}

// ExportMonthlyWorkbook writes every journaled trade plus a summary sheet to
// an .xlsx file at path, grounded on ducminhle1904's multi-sheet workbook
// shape (one sheet per concern).
func (r *Reporter) ExportMonthlyWorkbook(path string) error {
	trades := r.snapshot()
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp.Before(trades[j].Timestamp) })

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"
	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	fx.NewSheet(summarySheet)

	header := []string{"Timestamp", "Instrument", "Kind", "Price", "Amount", "ProfitRate", "Reason"}
	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		fx.SetCellValue(tradesSheet, cell, h)
	}
	for i, tr := range trades {
		row := i + 2
		values := []interface{}{
			tr.Timestamp.UTC().Format(time.RFC3339), tr.Instrument, tr.Kind,
			tr.Price, tr.Amount, tr.ProfitRate, tr.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			fx.SetCellValue(tradesSheet, cell, v)
		}
	}

	winRate := 0.0
	if r.global.CumulativeTrades > 0 {
		winRate = float64(r.global.CumulativeWins) / float64(r.global.CumulativeTrades) * 100
	}
	summaryRows := [][2]interface{}{
		{"Cumulative Profit", r.global.CumulativeProfit},
		{"Cumulative Trades", r.global.CumulativeTrades},
		{"Cumulative Wins", r.global.CumulativeWins},
		{"Cumulative Losses", r.global.CumulativeLosses},
		{"Win Rate %", winRate},
		{"Start Time", r.global.StartTime.UTC().Format(time.RFC3339)},
	}
	for i, pair := range summaryRows {
		row := i + 1
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		fx.SetCellValue(summarySheet, labelCell, pair[0])
		fx.SetCellValue(summarySheet, valueCell, pair[1])
	}

	return fx.SaveAs(path)
}
