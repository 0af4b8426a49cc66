package candlestore

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
)

// csvHeader matches spec §6: "candle fields including candle_date_time_utc".
var csvHeader = []string{"candle_date_time_utc", "open_time_ms", "open", "high", "low", "close", "volume"}

func csvPath(dataDir, instrument string, tf model.Timeframe) string {
	return filepath.Join(dataDir, fmt.Sprintf("%s_%sm.csv", instrument, string(tf)))
}

// loadCSV reads the durable cache file for (instrument, tf). A missing or
// corrupted file is treated as an empty cache — the caller falls back to a
// full REST refetch, per spec §4.1.
func loadCSV(dataDir, instrument string, tf model.Timeframe) []model.Candle {
	path := csvPath(dataDir, instrument, tf)
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return nil
	}
	rows = rows[1:] // header

	out := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		openMs, err1 := strconv.ParseInt(row[1], 10, 64)
		open, err2 := strconv.ParseFloat(row[2], 64)
		high, err3 := strconv.ParseFloat(row[3], 64)
		low, err4 := strconv.ParseFloat(row[4], 64)
		closeP, err5 := strconv.ParseFloat(row[5], 64)
		vol, err6 := strconv.ParseFloat(row[6], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			continue // malformed row: skip, do not fail the whole load
		}
		out = append(out, model.Candle{
			Timeframe:  tf,
			OpenTimeMs: openMs,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closeP,
			Volume:     vol,
		})
	}
	return out
}

// persistAll overwrites the durable cache file with the full current ring,
// per spec §4.1 "durable file is overwritten on bulk save".
func persistAll(dataDir, instrument string, tf model.Timeframe, candles []model.Candle) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	path := csvPath(dataDir, instrument, tf)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(bufio.NewWriter(f))
	defer w.Flush()
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range candles {
		if err := w.Write(candleRow(c)); err != nil {
			return err
		}
	}
	return nil
}

// appendLive appends a single row, per spec §4.1 "appends are best-effort".
func appendLive(dataDir, instrument string, tf model.Timeframe, c model.Candle) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	path := csvPath(dataDir, instrument, tf)
	needsHeader := false
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		needsHeader = true
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if needsHeader {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	return w.Write(candleRow(c))
}

func candleRow(c model.Candle) []string {
	return []string{
		time.UnixMilli(c.OpenTimeMs).UTC().Format("2006-01-02T15:04:05Z"),
		strconv.FormatInt(c.OpenTimeMs, 10),
		strconv.FormatFloat(c.Open, 'f', -1, 64),
		strconv.FormatFloat(c.High, 'f', -1, 64),
		strconv.FormatFloat(c.Low, 'f', -1, 64),
		strconv.FormatFloat(c.Close, 'f', -1, 64),
		strconv.FormatFloat(c.Volume, 'f', -1, 64),
	}
}
