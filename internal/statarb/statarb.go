// Package statarb tracks configured symbol pairs and emits mean-reversion
// signals on their spreads.
package statarb

import (
	"math"
	"sync"

	"quantcore-go/internal/series"
)

const (
	priceCap  = 1000
	spreadCap = 200

	zscoreWindow = 20

	// DefaultEntryThreshold and DefaultExitThreshold are the z-score bands
	// for opening and unwinding a pair trade.
	DefaultEntryThreshold = 2.0
	DefaultExitThreshold  = 0.5

	maxConfidence = 0.95
)

// Direction is the emitted pair bias.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// Pair is externally supplied pair configuration, optionally re-estimated via
// HedgeRatio and Cointegration.
type Pair struct {
	Symbol1             string
	Symbol2             string
	HedgeRatio          float64
	Correlation         float64
	CointegrationPValue float64
}

// Signal is one evaluated pair spread.
type Signal struct {
	Pair           Pair
	Spread         float64
	ZScore         float64
	Signal         Direction
	Confidence     float64 // [0, 0.95]
	EntryThreshold float64
	ExitThreshold  float64
}

// Bands is the Bollinger band evaluation for one symbol.
type Bands struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Position float64 // 0 at lower band, 1 at upper band
	Signal   string  // OVERSOLD, OVERBOUGHT, NEUTRAL
}

// Engine owns per-symbol price histories and per-pair spread histories.
type Engine struct {
	mu      sync.Mutex
	entry   float64
	exit    float64
	pairs   []Pair
	prices  map[string]*series.Ring[float64]
	spreads map[string]*series.Ring[float64]
}

// NewEngine builds an engine with default entry/exit thresholds and no pairs.
func NewEngine() *Engine {
	return &Engine{
		entry:   DefaultEntryThreshold,
		exit:    DefaultExitThreshold,
		prices:  make(map[string]*series.Ring[float64]),
		spreads: make(map[string]*series.Ring[float64]),
	}
}

// SetThresholds overrides the entry/exit z-score bands. Non-positive values
// keep the current setting.
func (e *Engine) SetThresholds(entry, exit float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry > 0 {
		e.entry = entry
	}
	if exit > 0 {
		e.exit = exit
	}
}

// SetPairs replaces the tracked pair configuration.
func (e *Engine) SetPairs(pairs []Pair) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pairs = append(e.pairs[:0], pairs...)
}

// Pairs returns a copy of the tracked pair configuration.
func (e *Engine) Pairs() []Pair {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pair, len(e.pairs))
	copy(out, e.pairs)
	return out
}

// UpdatePrice appends one price observation for symbol.
func (e *Engine) UpdatePrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ring := e.prices[symbol]
	if ring == nil {
		ring = series.NewRing[float64](priceCap)
		e.prices[symbol] = ring
	}
	ring.Push(price)
}

// Signals evaluates every configured pair against the latest prices. Pairs
// whose spread history is still shorter than the z-score window are skipped.
func (e *Engine) Signals(latest map[string]float64) []Signal {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Signal, 0, len(e.pairs))
	for _, pair := range e.pairs {
		p1, ok1 := latest[pair.Symbol1]
		p2, ok2 := latest[pair.Symbol2]
		if !ok1 || !ok2 {
			continue
		}
		spread := p1 - pair.HedgeRatio*p2

		key := pair.Symbol1 + "/" + pair.Symbol2
		hist := e.spreads[key]
		if hist == nil {
			hist = series.NewRing[float64](spreadCap)
			e.spreads[key] = hist
		}
		hist.Push(spread)
		if hist.Len() < zscoreWindow {
			continue
		}

		window := hist.Last(zscoreWindow)
		z := (spread - series.Mean(window)) / (series.Std(window) + series.Epsilon)

		direction := Neutral
		switch {
		case z > e.entry:
			direction = Short
		case z < -e.entry:
			direction = Long
		}

		out = append(out, Signal{
			Pair:           pair,
			Spread:         spread,
			ZScore:         z,
			Signal:         direction,
			Confidence:     math.Min(math.Abs(z)/3, maxConfidence),
			EntryThreshold: e.entry,
			ExitThreshold:  e.exit,
		})
	}
	return out
}

// BollingerBands evaluates a k-sigma band over the last period prices. Returns
// ok=false with insufficient history.
func (e *Engine) BollingerBands(symbol string, period int, k float64) (Bands, bool) {
	if period <= 0 {
		period = 20
	}
	if k <= 0 {
		k = 2
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ring := e.prices[symbol]
	if ring == nil || ring.Len() < period {
		return Bands{}, false
	}
	window := ring.Last(period)
	mid := series.Mean(window)
	dev := series.Std(window)
	price := window[len(window)-1]

	b := Bands{
		Upper:  mid + k*dev,
		Middle: mid,
		Lower:  mid - k*dev,
		Signal: "NEUTRAL",
	}
	b.Position = (price - b.Lower) / (b.Upper - b.Lower + series.Epsilon)
	switch {
	case price <= b.Lower:
		b.Signal = "OVERSOLD"
	case price >= b.Upper:
		b.Signal = "OVERBOUGHT"
	}
	return b, true
}

// MeanReversion scores how stretched the latest price is against its lookback
// mean, bounded by tanh. Insufficient history yields 0.
func (e *Engine) MeanReversion(symbol string, lookback int) float64 {
	if lookback <= 0 {
		lookback = 50
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ring := e.prices[symbol]
	if ring == nil || ring.Len() < lookback {
		return 0
	}
	window := ring.Last(lookback)
	mean := series.Mean(window)
	price := window[len(window)-1]
	return math.Tanh(5 * (price - mean) / (mean + series.Epsilon))
}

// Cointegration reports the Pearson correlation of the two price series over
// the trailing window. This is a correlation proxy, not an ADF/stationarity
// test; treat results as an approximation of pair co-movement.
func (e *Engine) Cointegration(symbol1, symbol2 string, window int) float64 {
	if window <= 0 {
		window = 100
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	xs, ys, ok := e.alignedWindows(symbol1, symbol2, window)
	if !ok {
		return 0
	}

	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
		sumYY += ys[i] * ys[i]
	}
	num := n*sumXY - sumX*sumY
	den := math.Sqrt(n*sumXX-sumX*sumX) * math.Sqrt(n*sumYY-sumY*sumY)
	if den < series.Epsilon {
		return 0
	}
	return num / den
}

// HedgeRatio estimates the OLS slope of symbol1's prices on symbol2's over
// the trailing window. A degenerate regressor yields 1.
func (e *Engine) HedgeRatio(symbol1, symbol2 string, window int) float64 {
	if window <= 0 {
		window = 100
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ys, xs, ok := e.alignedWindows(symbol1, symbol2, window)
	if !ok {
		return 1
	}

	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	den := n*sumXX - sumX*sumX
	if math.Abs(den) < series.Epsilon {
		return 1
	}
	return (n*sumXY - sumX*sumY) / den
}

// alignedWindows returns equal-length trailing windows for both symbols.
// Caller holds e.mu.
func (e *Engine) alignedWindows(symbol1, symbol2 string, window int) ([]float64, []float64, bool) {
	r1 := e.prices[symbol1]
	r2 := e.prices[symbol2]
	if r1 == nil || r2 == nil {
		return nil, nil, false
	}
	n := window
	if r1.Len() < n {
		n = r1.Len()
	}
	if r2.Len() < n {
		n = r2.Len()
	}
	if n < 2 {
		return nil, nil, false
	}
	return r1.Last(n), r2.Last(n), true
}
