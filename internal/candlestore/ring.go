// Package candlestore implements C1: rolling candle windows per instrument,
// disk persistence, and smart gap-fill, grounded on the teacher's
// state.RingBuffer single-writer/mutex-guarded discipline (state/buffer.go)
// generalized from "overwrite oldest slot" to the ordered replace-or-append
// semantics spec.md §3/§4.1 require.
package candlestore

import (
	"sort"

	"github.com/shk7773/momentum-engine/internal/model"
)

// ring is a capacity-bounded, open_time-ordered sequence of candles for one
// (instrument, timeframe) pair. Single-writer (the stream-dispatch goroutine
// for live updates, or the decision/macro goroutines for backfill); readers
// get a copied-out snapshot via Snapshot.
type ring struct {
	capacity int
	candles  []model.Candle
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity, candles: make([]model.Candle, 0, capacity)}
}

// applyLive replaces the last entry in place if OpenTimeMs matches, otherwise
// appends and evicts the oldest entry if capacity is exceeded. Applying the
// same live candle twice is idempotent (spec §8 round-trip property).
func (r *ring) applyLive(c model.Candle) {
	n := len(r.candles)
	if n > 0 && r.candles[n-1].OpenTimeMs == c.OpenTimeMs {
		r.candles[n-1] = c
		return
	}
	r.candles = append(r.candles, c)
	if len(r.candles) > r.capacity {
		r.candles = r.candles[len(r.candles)-r.capacity:]
	}
}

// applyBackfill merges candles (any order) into the ring, sorted ascending
// by OpenTimeMs, deduplicated on OpenTimeMs (later-supplied wins), then
// truncated to capacity keeping the newest. Re-applying the same xs is a
// no-op modulo ordering, matching spec §8.
func (r *ring) applyBackfill(xs []model.Candle) {
	if len(xs) == 0 {
		return
	}
	merged := make(map[int64]model.Candle, len(r.candles)+len(xs))
	for _, c := range r.candles {
		merged[c.OpenTimeMs] = c
	}
	for _, c := range xs {
		merged[c.OpenTimeMs] = c
	}
	out := make([]model.Candle, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTimeMs < out[j].OpenTimeMs })
	if len(out) > r.capacity {
		out = out[len(out)-r.capacity:]
	}
	r.candles = out
}

// snapshot returns a defensive copy, oldest first.
func (r *ring) snapshot() []model.Candle {
	out := make([]model.Candle, len(r.candles))
	copy(out, r.candles)
	return out
}

func (r *ring) last() (model.Candle, bool) {
	if len(r.candles) == 0 {
		return model.Candle{}, false
	}
	return r.candles[len(r.candles)-1], true
}

func (r *ring) len() int { return len(r.candles) }
