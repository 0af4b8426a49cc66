package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRecordEntryAndExitAccumulateTrades(t *testing.T) {
	global := &model.GlobalState{StartTime: time.Now()}
	r := New(global)

	r.RecordEntry("KRW-BTC", 100, 1000)
	r.RecordExit("KRW-BTC", 110, 100, 0.10, "take_profit")
	r.RecordRejection("KRW-ETH", "insufficient momentum")

	trades := r.snapshot()
	require.Len(t, trades, 3)
	require.Equal(t, "entry", trades[0].Kind)
	require.Equal(t, "exit", trades[1].Kind)
	require.Equal(t, "rejected", trades[2].Kind)
}

func TestRecentExitsReturnsMostRecentFirst(t *testing.T) {
	global := &model.GlobalState{}
	r := New(global)
	r.RecordExit("A", 1, 1, 0.1, "r1")
	r.RecordExit("B", 2, 2, 0.2, "r2")

	exits := recentExits(r.snapshot(), 10)
	require.Len(t, exits, 2)
	require.Equal(t, "B", exits[0].Instrument)
	require.Equal(t, "A", exits[1].Instrument)
}

func TestExportMonthlyWorkbookWritesTradesAndSummarySheets(t *testing.T) {
	global := &model.GlobalState{StartTime: time.Now(), CumulativeTrades: 1, CumulativeWins: 1}
	r := New(global)
	r.RecordEntry("KRW-BTC", 100, 1000)
	r.RecordExit("KRW-BTC", 110, 100, 0.10, "take_profit")

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, r.ExportMonthlyWorkbook(path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	rows, err := fx.GetRows("Trades")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + entry + exit
	require.Equal(t, "KRW-BTC", rows[1][1])

	summaryRows, err := fx.GetRows("Summary")
	require.NoError(t, err)
	require.NotEmpty(t, summaryRows)
}
