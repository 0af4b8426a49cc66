package candlestore

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shk7773/momentum-engine/internal/model"
)

// timeframeMinutes is used only for smart_init's gap computation (spec
// §4.1: "gap = (latest.open_time − last_local.open_time) / tf_minutes + 2").
var timeframeMinutes = map[model.Timeframe]int64{
	model.TFSecond: 0, // handled specially: seconds, not minutes
	model.TFMinute: 1,
	model.TF5Min:   5,
	model.TF15Min:  15,
	model.TF30Min:  30,
	model.TFHour:   60,
}

// RESTSource is the subset of the exchange REST collaborator (spec §6) that
// CandleStore needs: historical candle backfill, descending by time, and the
// single latest candle for gap computation. Declared here (not imported from
// the exchange package) to avoid a store<->exchange import cycle — the
// exchange package depends on model only, and candlestore depends on this
// narrow interface, matching exchange.REST.Candles' signature exactly so any
// exchange.REST implementation satisfies it structurally.
type RESTSource interface {
	Candles(ctx context.Context, tf model.Timeframe, instrument string, count int, before time.Time) ([]model.Candle, error)
}

// Store owns the six bounded rings for one instrument. It is exclusively
// mutated by the instrument's stream-dispatch goroutine for live updates;
// backfill/persist may be called from the macro-refresh goroutine, guarded
// by the same mutex (spec §5: "single writer" is a per-instrument discipline,
// not literally one goroutine forever — the mutex makes that safe without
// forcing every caller through a channel).
type Store struct {
	mu         sync.RWMutex
	instrument string
	dataDir    string
	rings      map[model.Timeframe]*ring
}

// Timeframes physically retained by CandleStore (H4/D1/D3 are derived from
// the M5 ring by TrendAnalyzer, per spec §4.4).
var StoredTimeframes = []model.Timeframe{
	model.TFSecond, model.TFMinute, model.TF5Min, model.TF15Min, model.TF30Min, model.TFHour,
}

func New(instrument, dataDir string) *Store {
	s := &Store{instrument: instrument, dataDir: dataDir, rings: make(map[model.Timeframe]*ring)}
	for _, tf := range StoredTimeframes {
		s.rings[tf] = newRing(model.RingCapacity(tf))
	}
	return s
}

// ApplyLive implements spec §4.1 apply_live. Schema-mismatched candles
// (zero OpenTimeMs) are dropped silently (logged), never propagated as an
// error that would stall the pipeline.
func (s *Store) ApplyLive(tf model.Timeframe, c model.Candle) {
	if c.OpenTimeMs == 0 {
		log.Printf("candlestore[%s/%s]: dropping candle with zero open_time", s.instrument, tf)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[tf]
	if !ok {
		return
	}
	r.applyLive(c)
	if err := appendLive(s.dataDir, s.instrument, tf, c); err != nil {
		log.Printf("candlestore[%s/%s]: append_live persist warning: %v", s.instrument, tf, err)
	}
}

// ApplyRESTBackfill implements spec §4.1 apply_rest_backfill.
func (s *Store) ApplyRESTBackfill(tf model.Timeframe, candles []model.Candle) {
	if len(candles) == 0 {
		return // "if REST returns empty, keep local"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[tf]
	if !ok {
		return
	}
	r.applyBackfill(candles)
}

// Snapshot returns a read-only copy of the ring, oldest first, for use by
// indicator/analyzer components (spec §3: "borrowed views... do not own the
// data").
func (s *Store) Snapshot(tf model.Timeframe) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rings[tf]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Persist overwrites the durable cache file for tf with the current ring
// (spec §4.1 persist). Errors are logged, never fatal to the pipeline.
func (s *Store) Persist(tf model.Timeframe) {
	s.mu.RLock()
	candles := s.rings[tf].snapshot()
	s.mu.RUnlock()
	if err := persistAll(s.dataDir, s.instrument, tf, candles); err != nil {
		log.Printf("candlestore[%s/%s]: persist warning: %v", s.instrument, tf, err)
	}
}

// PersistAll persists every retained timeframe; called from the
// Orchestrator's macro-refresh loop.
func (s *Store) PersistAll() {
	for _, tf := range StoredTimeframes {
		s.Persist(tf)
	}
}

// SmartInit implements spec §4.1 smart_init:
//  1. load from durable cache; if empty, fetch full maxCount from REST.
//  2. fetch single latest candle; compute gap.
//  3. if gap >= maxCount, refetch full; else fetch min(gap, 200) and merge.
//
// Always persists back to cache afterward. Gap computation always uses
// exchange-reported timestamps (the supplied candles' OpenTimeMs), never
// wall-clock.
func (s *Store) SmartInit(ctx context.Context, tf model.Timeframe, maxCount int, src RESTSource) error {
	local := loadCSV(s.dataDir, s.instrument, tf)

	s.mu.Lock()
	if len(local) > 0 {
		s.rings[tf].applyBackfill(local)
	}
	s.mu.Unlock()

	if len(local) == 0 {
		full, err := src.Candles(ctx, tf, s.instrument, maxCount, time.Time{})
		if err != nil {
			return err
		}
		s.ApplyRESTBackfill(tf, full)
		s.Persist(tf)
		return nil
	}

	latestBatch, err := src.Candles(ctx, tf, s.instrument, 1, time.Time{})
	if err != nil || len(latestBatch) == 0 {
		// Transient failure fetching the latest candle: keep local state,
		// do not treat as a hard error (spec §7 "transient... upper tasks
		// never see them").
		s.Persist(tf)
		return nil
	}
	latest := latestBatch[0]

	s.mu.RLock()
	lastLocal, ok := s.rings[tf].last()
	s.mu.RUnlock()
	if !ok {
		full, err := src.Candles(ctx, tf, s.instrument, maxCount, time.Time{})
		if err != nil {
			return err
		}
		s.ApplyRESTBackfill(tf, full)
		s.Persist(tf)
		return nil
	}

	gap := gapCount(tf, lastLocal.OpenTimeMs, latest.OpenTimeMs, maxCount)

	if gap >= maxCount {
		full, err := src.Candles(ctx, tf, s.instrument, maxCount, time.Time{})
		if err != nil {
			return err
		}
		s.ApplyRESTBackfill(tf, full)
	} else {
		fetch := gap
		if fetch > 200 {
			fetch = 200
		}
		if fetch > 0 {
			more, err := src.Candles(ctx, tf, s.instrument, fetch, time.Time{})
			if err != nil {
				return err
			}
			s.ApplyRESTBackfill(tf, more)
		}
	}
	s.Persist(tf)
	return nil
}

// gapCount computes spec §4.1's gap formula. If the timeframe's minute
// width is unknown (shouldn't happen for stored timeframes) or the
// timestamps are non-monotonic in an unparseable way, return maxCount to
// force a full refetch, per spec "if parsing a timestamp fails, treat gap
// as max_count".
func gapCount(tf model.Timeframe, lastLocalMs, latestMs int64, maxCount int) int {
	var tfMs int64
	if tf == model.TFSecond {
		tfMs = 1000
	} else {
		mins, ok := timeframeMinutes[tf]
		if !ok || mins == 0 {
			return maxCount
		}
		tfMs = mins * 60 * 1000
	}
	if tfMs <= 0 {
		return maxCount
	}
	diff := latestMs - lastLocalMs
	if diff < 0 {
		return maxCount
	}
	return int(diff/tfMs) + 2
}
