// Package orchestrator implements C10: the scheduler that owns every
// per-instrument stream, decision tick, and the macro/BTC/market-list
// refresh loops, wiring every other component together per spec §5/§9.
//
// Grounded on cmd/orderflow/main.go's top-level wiring (context.Context +
// signal-driven cancellation, one goroutine per stream, a single owning
// goroutine per instrument reading off a channel) and on
// internal/engine.Engine's "one mutex-guarded struct per instrument, all
// reads/writes funneled through its methods" discipline, generalized from
// one BTC perpetual to an arbitrary instrument set with per-instrument
// locking instead of a single global engine.
package orchestrator

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shk7773/momentum-engine/internal/candlestore"
	"github.com/shk7773/momentum-engine/internal/config"
	"github.com/shk7773/momentum-engine/internal/entry"
	"github.com/shk7773/momentum-engine/internal/errs"
	"github.com/shk7773/momentum-engine/internal/exchange"
	"github.com/shk7773/momentum-engine/internal/indicators"
	"github.com/shk7773/momentum-engine/internal/metrics"
	"github.com/shk7773/momentum-engine/internal/mtf"
	"github.com/shk7773/momentum-engine/internal/model"
	"github.com/shk7773/momentum-engine/internal/momentum"
	"github.com/shk7773/momentum-engine/internal/position"
	"github.com/shk7773/momentum-engine/internal/sentiment"
	"github.com/shk7773/momentum-engine/internal/tickagg"
	"github.com/shk7773/momentum-engine/internal/trend"
)

const btcInstrument = "KRW-BTC"

// decisionInterval is the per-instrument decision tick rate, spec §5's "~1Hz".
const decisionInterval = 1 * time.Second

// backfillCandleCount is smart_init's maxCount per timeframe (spec §4.1
// leaves the exact figure to the adapter). 300 M5 candles cover the
// TrendAnalyzer lookbacks up to d1Back (288); d3Back (576) needs more M5
// history than one backfill supplies, so the 3-day delta reads 0 until live
// candles fill the M5 ring.
const backfillCandleCount = 300

// Reporter is the narrow slice of C12 Reporting the orchestrator pushes
// decisions/exits into. Declared here to avoid an orchestrator<->report
// import cycle.
type Reporter interface {
	RecordEntry(instrument string, price, quoteAmount float64)
	RecordExit(instrument string, price, profit, profitRate float64, reason string)
	RecordRejection(instrument, reason string)
}

// instrument bundles one symbol's owned state. Every field here is mutated
// only while holding mu, per spec §5's single-writer-per-instrument rule.
type instrument struct {
	mu        sync.Mutex
	symbol    string
	store     *candlestore.Store
	agg       *tickagg.Aggregator
	state     *model.InstrumentState
	lastPrice float64
	trendRes  model.TrendResult
}

// Orchestrator is the top-level scheduler. One instance per process.
type Orchestrator struct {
	cfg         *config.Config
	rest        exchange.REST
	ws          exchange.WS
	report      Reporter
	tokenSource func(ctx context.Context) (string, error)

	global *model.GlobalState

	mu          sync.RWMutex
	instruments map[string]*instrument
}

func New(cfg *config.Config, rest exchange.REST, ws exchange.WS, report Reporter) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		rest:        rest,
		ws:          ws,
		report:      report,
		global:      &model.GlobalState{StartTime: time.Now(), MarketSafe: true},
		instruments: make(map[string]*instrument),
	}
}

// AddInstrument registers symbol and smart-inits every stored timeframe from
// REST/disk cache, per spec §4.1.
func (o *Orchestrator) AddInstrument(ctx context.Context, symbol string) error {
	o.mu.Lock()
	if _, exists := o.instruments[symbol]; exists {
		o.mu.Unlock()
		return nil
	}
	inst := &instrument{
		symbol: symbol,
		store:  candlestore.New(symbol, o.cfg.DataDir),
		agg:    tickagg.New(),
		state:  &model.InstrumentState{},
	}
	o.instruments[symbol] = inst
	o.mu.Unlock()

	for _, tf := range candlestore.StoredTimeframes {
		if err := inst.store.SmartInit(ctx, tf, backfillCandleCount, o.rest); err != nil {
			log.Printf("orchestrator: smart_init %s/%s failed: %v", symbol, tf, err)
		}
	}
	return nil
}

// RemoveInstrument drops symbol from the managed set unless it currently
// holds an open position, per the market-list refresh's union-with-held rule.
func (o *Orchestrator) RemoveInstrument(symbol string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instruments[symbol]
	if !ok {
		return
	}
	inst.mu.Lock()
	held := inst.state.HasPosition()
	inst.mu.Unlock()
	if held {
		return
	}
	delete(o.instruments, symbol)
}

func (o *Orchestrator) instrumentSymbols() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.instruments))
	for s := range o.instruments {
		out = append(out, s)
	}
	return out
}

// Global exposes the shared GlobalState for a C12 Reporter to read
// cumulative counters from.
func (o *Orchestrator) Global() *model.GlobalState {
	return o.global
}

// SetReporter attaches r after construction, so a Reporter built from
// Global() (e.g. report.New) can be wired in without a construction cycle.
func (o *Orchestrator) SetReporter(r Reporter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.report = r
}

// SetTokenSource attaches the bearer-token provider Run uses to authenticate
// the private stream. Late-bound for the same reason SetReporter is: the
// token source (LiveREST.BearerToken) is constructed outside the
// orchestrator and wired in before Run starts, never concurrently with it.
func (o *Orchestrator) SetTokenSource(ts func(ctx context.Context) (string, error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokenSource = ts
}

// LastPrice returns the most recent traded price observed for symbol, for
// use as a DryRunREST PriceSource. ok is false if no trade has arrived yet.
func (o *Orchestrator) LastPrice(symbol string) (float64, bool) {
	inst, ok := o.lookup(symbol)
	if !ok {
		return 0, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.lastPrice == 0 {
		return 0, false
	}
	return inst.lastPrice, true
}

func (o *Orchestrator) lookup(symbol string) (*instrument, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	inst, ok := o.instruments[symbol]
	return inst, ok
}

// InstrumentSnapshot is a point-in-time read of one instrument's price and
// position, for an operator dashboard to poll; see internal/broadcast.
type InstrumentSnapshot struct {
	Instrument  string
	Price       float64
	HasPosition bool
	EntryPrice  float64
	ProfitRate  float64
}

// Snapshots returns a consistent-per-instrument (not cross-instrument) read
// of every managed instrument's current price and position.
func (o *Orchestrator) Snapshots() []InstrumentSnapshot {
	symbols := o.instrumentSymbols()
	out := make([]InstrumentSnapshot, 0, len(symbols))
	for _, s := range symbols {
		inst, ok := o.lookup(s)
		if !ok {
			continue
		}
		inst.mu.Lock()
		snap := InstrumentSnapshot{Instrument: s, Price: inst.lastPrice}
		if inst.state.HasPosition() {
			snap.HasPosition = true
			snap.EntryPrice = inst.state.Position.EntryPrice
			snap.ProfitRate = inst.state.Position.ProfitRate(inst.lastPrice)
		}
		inst.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

// Run starts every stream/loop and blocks until ctx is cancelled. Per-
// instrument failures are logged and isolated (spec §7's propagation rule);
// stream errors are logged too, and Run returns nil once every loop has exited.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ticks := make(chan exchange.Tick, 4096)
	privateEvents := make(chan exchange.PrivateEvent, 256)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := o.ws.RunPublic(ctx, o.instrumentSymbols(), ticks); err != nil {
			log.Printf("orchestrator: public stream exited: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.dispatchTicks(ctx, ticks)
	}()

	o.mu.RLock()
	tokenSource := o.tokenSource
	o.mu.RUnlock()
	if tokenSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.ws.RunPrivate(ctx, tokenSource, privateEvents); err != nil {
				log.Printf("orchestrator: private stream exited: %v", err)
			}
		}()
	} else {
		log.Printf("orchestrator: no token source configured, private fills will never be applied")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.dispatchPrivate(ctx, privateEvents)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.decisionLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.macroLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.marketListLoop(ctx)
	}()

	if o.cfg.BTCDowntrendBuyBlock {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.btcLoop(ctx)
		}()
	}

	wg.Wait()
	return nil
}

// dispatchTicks fans every public-stream Tick into its instrument's store
// or tick aggregator. This is the sole writer of live candle/tape data.
func (o *Orchestrator) dispatchTicks(ctx context.Context, ticks <-chan exchange.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			inst, ok := o.lookup(t.Instrument)
			if !ok {
				continue
			}
			switch {
			case t.Trade != nil:
				inst.mu.Lock()
				inst.agg.PushTrade(*t.Trade)
				inst.lastPrice = t.Trade.Price
				inst.mu.Unlock()
				metrics.RecordTick(t.Instrument)
			case t.Orderbook != nil:
				inst.agg.ApplyOrderbook(*t.Orderbook)
			case t.Candle != nil:
				inst.store.ApplyLive(t.Candle.Timeframe, *t.Candle)
				metrics.RecordCandle(t.Instrument, string(t.Candle.Timeframe))
			}
		}
	}
}

// dispatchPrivate applies fill confirmations to the owning instrument's
// position. Per spec §7, no position side-effect is applied unless the
// fill is confirmed here.
func (o *Orchestrator) dispatchPrivate(ctx context.Context, events <-chan exchange.PrivateEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Order == nil || ev.Order.State != exchange.OrderStateDone {
				continue
			}
			inst, ok := o.lookup(ev.Order.Instrument)
			if !ok {
				continue
			}
			o.applyFill(inst, *ev.Order)
		}
	}
}

func (o *Orchestrator) applyFill(inst *instrument, order exchange.Order) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	switch order.Side {
	case exchange.SideBid:
		if inst.state.HasPosition() {
			return // duplicate fill notification; ignore
		}
		ind := indicators.Compute(inst.agg.Tape(), inst.store.Snapshot(model.TF5Min))
		volatilityKnown := len(inst.agg.Tape()) >= 20
		pos := position.Open(o.cfg, order.Price, order.ExecutedVolume, order.CreatedAt, ind.Volatility, volatilityKnown)
		pos.BuyOrderID = order.UUID
		pos.FeePaidBuy = order.Paid * o.cfg.TradingFeeRate
		inst.state.Position = pos
		inst.state.LastTradeTime = order.CreatedAt
		inst.state.TradesInHour++
		if o.report != nil {
			o.report.RecordEntry(inst.symbol, pos.EntryPrice, pos.QuoteAmount)
		}
		metrics.PositionsOpen.WithLabelValues(inst.symbol).Set(1)
	case exchange.SideAsk:
		if !inst.state.HasPosition() {
			return
		}
		outcome := position.Close(o.cfg, inst.state.Position, order.Price, order.CreatedAt, inst.state, o.global)
		reason := inst.state.Position.Reason
		if o.report != nil {
			o.report.RecordExit(inst.symbol, order.Price, outcome.Profit, outcome.ProfitRate, reason)
		}
		metrics.RecordExit(inst.symbol, o.global.CumulativeProfit)
		inst.state.Position = nil
	}
}

// decisionLoop runs the ~1Hz per-instrument tick: manage an open position,
// otherwise evaluate EntryPolicy and emit a buy.
func (o *Orchestrator) decisionLoop(ctx context.Context) {
	ticker := time.NewTicker(decisionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, symbol := range o.instrumentSymbols() {
				inst, ok := o.lookup(symbol)
				if !ok {
					continue
				}
				o.tickInstrument(ctx, inst, now)
			}
		}
	}
}

func (o *Orchestrator) tickInstrument(ctx context.Context, inst *instrument, now time.Time) {
	inst.mu.Lock()
	price := inst.lastPrice
	hasPosition := inst.state.HasPosition()
	inst.mu.Unlock()

	if price == 0 {
		return // no tape observed yet; nothing to do
	}

	if hasPosition {
		o.manageExit(ctx, inst, price, now)
		return
	}

	if !o.global.MarketSafe {
		return // BTC downtrend buy-block: manage exits only, no new entries
	}

	o.evaluateEntry(ctx, inst, price, now)
}

func (o *Orchestrator) manageExit(ctx context.Context, inst *instrument, price float64, now time.Time) {
	inst.mu.Lock()
	pos := inst.state.Position
	if pos == nil || inst.state.ProcessingOrder {
		inst.mu.Unlock()
		return
	}
	reason := position.Tick(o.cfg, pos, price, now)
	inst.mu.Unlock()

	if reason == position.ExitNone {
		return
	}

	inst.mu.Lock()
	inst.state.ProcessingOrder = true
	pos.Reason = string(reason)
	volume := pos.Volume
	inst.mu.Unlock()

	defer func() {
		inst.mu.Lock()
		inst.state.ProcessingOrder = false
		inst.mu.Unlock()
	}()

	_, err := o.rest.PlaceOrder(ctx, exchange.OrderRequest{
		Instrument: inst.symbol,
		Side:       exchange.SideAsk,
		Kind:       exchange.KindMarket,
		Volume:     volume,
	})
	if err != nil {
		log.Printf("orchestrator: sell %s failed: %v", inst.symbol, errs.OrderFailed(inst.symbol, "manage_exit", err))
	}
	// Position-closing bookkeeping happens only on the confirmed fill via
	// dispatchPrivate/applyFill, never here, per spec §7.
}

func (o *Orchestrator) evaluateEntry(ctx context.Context, inst *instrument, price float64, now time.Time) {
	inst.mu.Lock()
	tape := inst.agg.Tape()
	aggregates := inst.agg.Aggregates()
	ob := inst.agg.Orderbook()
	candles5 := inst.store.Snapshot(model.TF5Min)
	candles1 := inst.store.Snapshot(model.TFMinute)
	candles15 := inst.store.Snapshot(model.TF15Min)
	candlesSec := inst.store.Snapshot(model.TFSecond)
	trendRes := inst.trendRes
	state := inst.state
	processing := inst.state.ProcessingOrder
	inst.mu.Unlock()

	if processing {
		return
	}

	ind := indicators.Compute(tape, candles5)
	bidPressure1m := ratio(aggregates.BidVolume1m, aggregates.AskVolume1m)
	bidPressure5m := ratio(aggregates.BidVolume5m, aggregates.AskVolume5m)
	askPressure1m := 1 - bidPressure1m

	mtfRes := mtf.Compute(o.cfg, mtf.Input{
		MacroTrend: trendRes.Trend,
		M5Candles:  candles5,
		M15Candles: candles15,
		Price:      price,
	})

	// The previous M5 candle's own return: its close vs the close before it.
	var prevM5Return float64
	if len(candles5) > 0 {
		prevM5Return = closeDeltaAt(candles5[:len(candles5)-1], 1)
	}

	momentumRes := momentum.Compute(o.cfg, momentum.Input{
		Price:            price,
		M1Candles:        candles1,
		S1Candles:        candlesSec,
		Orderbook:        ob,
		MTF:              mtfRes,
		PrevM5Return:     prevM5Return,
		LastM5Return:     closeDeltaAt(candles5, 1),
		M5BidVolumeRatio: bidPressure5m,
		LastMinuteChange: closeDeltaAt(candles1, 1),
	})

	sentimentRes := sentiment.Compute(sentiment.Input{
		BidPressure1m:      bidPressure1m,
		Imbalance:          ob.Imbalance,
		RSI:                ind.RSI,
		Fatigue:            ind.Fatigue,
		MomentumExhaustion: ind.MomentumExhaustion,
		Volatility:         ind.Volatility,
	})

	decision := entry.Evaluate(o.cfg, entry.Input{
		Now:          now,
		CurrentPrice: price,
		State:        state,
		Trend:        trendRes,
		MTF:          mtfRes,
		Momentum:     momentumRes,
		Sentiment:    sentimentRes,
		Indicators:   ind,
		SellPressure: askPressure1m,
	})

	if !decision.Enter {
		if o.report != nil {
			o.report.RecordRejection(inst.symbol, decision.Reason)
		}
		metrics.RecordRejection(inst.symbol, decision.Reason)
		return
	}

	o.executeBuy(ctx, inst, price)
}

func (o *Orchestrator) executeBuy(ctx context.Context, inst *instrument, price float64) {
	inst.mu.Lock()
	inst.state.ProcessingOrder = true
	inst.mu.Unlock()
	defer func() {
		inst.mu.Lock()
		inst.state.ProcessingOrder = false
		inst.mu.Unlock()
	}()

	quote := o.cfg.MaxInvestment
	if quote < o.cfg.MinOrderAmount {
		return
	}

	_, err := o.rest.PlaceOrder(ctx, exchange.OrderRequest{
		Instrument: inst.symbol,
		Side:       exchange.SideBid,
		Kind:       exchange.KindPriceMarketBuy,
		Price:      quote,
	})
	if err != nil {
		log.Printf("orchestrator: buy %s failed: %v", inst.symbol, errs.OrderFailed(inst.symbol, "execute_buy", err))
		return
	}
	metrics.EntriesTotal.WithLabelValues(inst.symbol).Inc()
	// Position is opened only on the confirmed fill via applyFill.
}

// macroLoop recomputes each instrument's cached TrendResult and persists its
// candle rings every MacroUpdateInterval, per spec §5.
func (o *Orchestrator) macroLoop(ctx context.Context) {
	for _, symbol := range o.instrumentSymbols() {
		if inst, ok := o.lookup(symbol); ok {
			o.refreshMacro(inst)
		}
	}

	ticker := time.NewTicker(o.cfg.MacroUpdateInterval)
	defer ticker.Stop()
	lastDay := time.Now().UTC().Format("2006-01-02")
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if day := now.UTC().Format("2006-01-02"); day != lastDay {
				lastDay = day
				o.global.ResetDaily()
			}
			for _, symbol := range o.instrumentSymbols() {
				inst, ok := o.lookup(symbol)
				if !ok {
					continue
				}
				o.refreshMacro(inst)
			}
		}
	}
}

func (o *Orchestrator) refreshMacro(inst *instrument) {
	inst.mu.Lock()
	tape := inst.agg.Tape()
	aggregates := inst.agg.Aggregates()
	candles5 := inst.store.Snapshot(model.TF5Min)
	candles1 := inst.store.Snapshot(model.TFMinute)
	candles15 := inst.store.Snapshot(model.TF15Min)
	inst.mu.Unlock()

	ind := indicators.Compute(tape, candles5)
	bidPressure1m := ratio(aggregates.BidVolume1m, aggregates.AskVolume1m)

	trendRes := trend.Compute(o.cfg, trend.Input{
		M5Candles:     candles5,
		M1Candles:     candles1,
		M15Candles:    candles15,
		Indicators:    ind,
		BidPressure1m: bidPressure1m,
	})

	inst.mu.Lock()
	inst.trendRes = trendRes
	inst.mu.Unlock()

	inst.store.PersistAll()
}

// marketListLoop re-ranks tradable instruments by 24h traded value every
// MarketUpdateInterval, unioned with whatever is currently held, per spec §5.
func (o *Orchestrator) marketListLoop(ctx context.Context) {
	if len(o.cfg.Markets) > 0 {
		for _, m := range o.cfg.Markets {
			if err := o.AddInstrument(ctx, m); err != nil {
				log.Printf("orchestrator: add configured market %s: %v", m, err)
			}
		}
		return // explicit MARKET list disables auto-discovery, per spec §6
	}

	o.refreshMarkets(ctx)
	ticker := time.NewTicker(o.cfg.MarketUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.refreshMarkets(ctx)
		}
	}
}

func (o *Orchestrator) refreshMarkets(ctx context.Context) {
	markets, err := o.rest.AllMarkets(ctx)
	if err != nil {
		log.Printf("orchestrator: all_markets failed: %v", err)
		return
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].TradedValue24h > markets[j].TradedValue24h })
	if len(markets) > o.cfg.TopMarketCount {
		markets = markets[:o.cfg.TopMarketCount]
	}

	wanted := make(map[string]bool, len(markets))
	for _, m := range markets {
		wanted[m.Instrument] = true
		if err := o.AddInstrument(ctx, m.Instrument); err != nil {
			log.Printf("orchestrator: add_instrument %s: %v", m.Instrument, err)
		}
	}

	for _, symbol := range o.instrumentSymbols() {
		if !wanted[symbol] {
			o.RemoveInstrument(symbol)
		}
	}
}

// btcLoop computes BTC's 1h return every BTCCheckInterval and sets
// global.MarketSafe, gating new entries process-wide per spec §5/§9.
func (o *Orchestrator) btcLoop(ctx context.Context) {
	o.checkBTC(ctx)
	ticker := time.NewTicker(o.cfg.BTCCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.checkBTC(ctx)
		}
	}
}

func (o *Orchestrator) checkBTC(ctx context.Context) {
	candles, err := o.rest.Candles(ctx, model.TFHour, btcInstrument, 2, time.Time{})
	if err != nil || len(candles) < 2 {
		return // transient: keep the previous MarketSafe verdict
	}
	// The REST adapter returns candles newest first; closeDeltaAt wants oldest first.
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].OpenTimeMs < candles[j].OpenTimeMs })
	change := closeDeltaAt(candles, 1)

	trend := model.TrendNeutral
	switch {
	case change <= o.cfg.BTCTrendThreshold:
		trend = model.TrendBearish
	case change >= o.cfg.BTCBullishThreshold:
		trend = model.TrendBullish
	}

	o.global.BTCTrend = trend
	o.global.MarketSafe = !(o.cfg.BTCDowntrendBuyBlock && trend == model.TrendBearish)
}

func ratio(bid, ask float64) float64 {
	total := bid + ask
	if total == 0 {
		return 0.5
	}
	return bid / total
}

// closeDeltaAt mirrors trend.closeDelta's back-counting convention: back=1
// is the most recent closed candle vs the one before it.
func closeDeltaAt(candles []model.Candle, back int) float64 {
	if len(candles) < back+1 {
		return 0
	}
	last := candles[len(candles)-1]
	prior := candles[len(candles)-1-back]
	if prior.Close == 0 {
		return 0
	}
	return (last.Close - prior.Close) / prior.Close
}
