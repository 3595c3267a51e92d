// Package engine composes the feature extractor, alpha factor engine, stat
// arb engine, and risk manager behind the feed/pull surface consumed by the
// host event loop.
package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"quantcore-go/internal/alpha"
	"quantcore-go/internal/book"
	"quantcore-go/internal/metrics"
	"quantcore-go/internal/risk"
	"quantcore-go/internal/signal"
	"quantcore-go/internal/statarb"
)

// Engine is the synchronous pipeline core. It performs no I/O and never
// blocks; the host event loop delivers ticks and snapshots one at a time.
// The engine's own mutex is the synchronization barrier required before any
// cross-symbol aggregation (pair signals, portfolio metrics).
type Engine struct {
	log zerolog.Logger

	extractor *book.Extractor
	alpha     *alpha.Engine
	statarb   *statarb.Engine
	risk      *risk.Manager

	mu         sync.Mutex // guards lastPrices
	lastPrices map[string]float64
}

// Option tunes engine construction.
type Option func(*options)

type options struct {
	factorDecay float64
	entry       float64
	exit        float64
}

// WithFactorDecay overrides the constant decay attached to emitted alpha
// factors.
func WithFactorDecay(decay float64) Option {
	return func(o *options) { o.factorDecay = decay }
}

// WithThresholds overrides the stat-arb entry/exit z-score bands.
func WithThresholds(entry, exit float64) Option {
	return func(o *options) {
		o.entry = entry
		o.exit = exit
	}
}

// New wires the four components with the supplied limits and pairs.
func New(limits risk.Limits, pairs []statarb.Pair, log zerolog.Logger, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	af := alpha.NewEngine()
	if o.factorDecay > 0 {
		af = alpha.NewEngineWithDecay(o.factorDecay)
	}
	sa := statarb.NewEngine()
	sa.SetPairs(pairs)
	if o.entry > 0 || o.exit > 0 {
		sa.SetThresholds(o.entry, o.exit)
	}

	return &Engine{
		log:        log,
		extractor:  book.NewExtractor(),
		alpha:      af,
		statarb:    sa,
		risk:       risk.NewManager(limits, log),
		lastPrices: make(map[string]float64),
	}
}

// FeedTick routes one trade sample to the alpha and stat-arb engines, marks
// any open position, and reports resulting closures.
func (e *Engine) FeedTick(t signal.Tick) []risk.CloseEvent {
	metrics.TicksTotal.WithLabelValues(t.Symbol).Inc()

	e.alpha.Update(t.Symbol, t.Price, t.Volume, t.Ts)
	e.statarb.UpdatePrice(t.Symbol, t.Price)

	e.mu.Lock()
	e.lastPrices[t.Symbol] = t.Price
	e.mu.Unlock()

	if ev := e.risk.MarkPrice(t.Symbol, t.Price); ev != nil {
		return []risk.CloseEvent{*ev}
	}
	return nil
}

// FeedOrderBook extracts features from one snapshot.
func (e *Engine) FeedOrderBook(snap book.Snapshot) book.Features {
	metrics.SnapshotsTotal.WithLabelValues(snap.Symbol).Inc()
	return e.extractor.Extract(snap)
}

// SetPairs replaces the stat-arb pair configuration.
func (e *Engine) SetPairs(pairs []statarb.Pair) { e.statarb.SetPairs(pairs) }

// SetLimits hot-swaps the risk limits.
func (e *Engine) SetLimits(limits risk.Limits) { e.risk.SetLimits(limits) }

// DayBoundary resets daily risk metrics. Must be called explicitly by the
// host; the engine never resets on its own.
func (e *Engine) DayBoundary() { e.risk.ResetDaily() }

// AlphaFactors returns the normalized factor set for symbol, empty until
// enough samples accumulate.
func (e *Engine) AlphaFactors(symbol string) []alpha.Factor {
	factors := e.alpha.Factors(symbol)
	if len(factors) > 0 {
		metrics.SignalsTotal.WithLabelValues("alpha").Inc()
	}
	return factors
}

// Microstructure returns the composite short-horizon signal for symbol.
func (e *Engine) Microstructure(symbol string) (alpha.MicrostructureSignal, bool) {
	sig, ok := e.alpha.Microstructure(symbol)
	if ok {
		metrics.SignalsTotal.WithLabelValues("microstructure").Inc()
	}
	return sig, ok
}

// MicroSignal wraps the microstructure alpha for symbol into the shared
// signal envelope consumed by the order loop. ok is false until enough
// samples accumulate.
func (e *Engine) MicroSignal(symbol string, ts int64) (signal.Signal, bool) {
	micro, ok := e.Microstructure(symbol)
	if !ok {
		return signal.Signal{}, false
	}
	return signal.Signal{
		Symbol: symbol,
		Score:  micro.Alpha,
		Reason: "microstructure",
		Ts:     ts,
	}, true
}

// StatArbSignals evaluates every configured pair against the latest seen
// prices.
func (e *Engine) StatArbSignals() []statarb.Signal {
	e.mu.Lock()
	latest := make(map[string]float64, len(e.lastPrices))
	for sym, px := range e.lastPrices {
		latest[sym] = px
	}
	e.mu.Unlock()

	signals := e.statarb.Signals(latest)
	if len(signals) > 0 {
		metrics.SignalsTotal.WithLabelValues("statarb").Inc()
	}
	return signals
}

// CheckLimits evaluates a proposed order without side effects.
func (e *Engine) CheckLimits(symbol string, quantity, price float64) risk.Decision {
	return e.risk.CheckLimits(symbol, quantity, price)
}

// EmergencyStop closes every open position at its current mark. Hard circuit
// breaker for the host.
func (e *Engine) EmergencyStop() []risk.CloseEvent { return e.risk.EmergencyStop() }

// Risk exposes the risk manager for position lifecycle calls.
func (e *Engine) Risk() *risk.Manager { return e.risk }

// StatArb exposes the stat-arb engine's support routines (Bollinger bands,
// hedge ratio estimation, cointegration proxy).
func (e *Engine) StatArb() *statarb.Engine { return e.statarb }

// RiskMetrics derives the current portfolio risk snapshot.
func (e *Engine) RiskMetrics() risk.Metrics { return e.risk.ComputeMetrics() }

// Positions returns a copy of all open positions.
func (e *Engine) Positions() []risk.Position { return e.risk.Positions() }
