package csvlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTradeLoggerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTradeLogger(dir)
	require.NoError(t, err)

	l.Log(TradeRow{Timestamp: time.Now(), Market: "KRW-BTC", Type: "buy", Price: 100, TradeValue: 1000, Volume: 10})
	l.Close()
	time.Sleep(50 * time.Millisecond)

	contents, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "timestamp,market,type,price,trade_value,volume,profit,profit_rate,cumulative_profit,reason")
	require.Contains(t, string(contents), "KRW-BTC")
}

func TestNewTradeLoggerAppendsWithoutDuplicatingHeader(t *testing.T) {
	dir := t.TempDir()
	l1, err := NewTradeLogger(dir)
	require.NoError(t, err)
	l1.Log(TradeRow{Timestamp: time.Now(), Market: "KRW-BTC", Type: "buy"})
	l1.Close()
	time.Sleep(50 * time.Millisecond)

	l2, err := NewTradeLogger(dir)
	require.NoError(t, err)
	l2.Log(TradeRow{Timestamp: time.Now(), Market: "KRW-ETH", Type: "sell"})
	l2.Close()
	time.Sleep(50 * time.Millisecond)

	contents, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	count := 0
	for _, line := range splitLines(string(contents)) {
		if line == "timestamp,market,type,price,trade_value,volume,profit,profit_rate,cumulative_profit,reason" {
			count++
		}
	}
	require.Equal(t, 1, count, "header must appear exactly once across process restarts")
}

func TestOpenOperationalLogNamesFileByStartTime(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f, err := OpenOperationalLog(dir, started)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, "trading_20260102_030405.log", filepath.Base(f.Name()))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
