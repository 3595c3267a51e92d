// Package alpha derives normalized microstructure alpha factors from rolling
// tick histories.
package alpha

import (
	"math"
	"sync"

	"quantcore-go/internal/series"
)

const (
	sampleCap    = 1000
	factorCap    = 200
	minSignal    = 30 // samples required for a microstructure signal
	minFactors   = 50 // samples required for the factor set
	emaSmoothing = 0.3

	// DefaultDecay is emitted for every factor regardless of sample age.
	// The age-dependent decay the field suggests was never implemented
	// upstream; the constant is preserved as observed behavior.
	DefaultDecay = 0.9048374180359595 // exp(-0.1)
)

// Factor is one normalized alpha factor.
type Factor struct {
	Name           string
	Value          float64
	ZScore         float64
	Percentile     float64 // [0,1]
	SignalStrength float64 // [0,1]
	DecayFactor    float64
}

// MicrostructureSignal aggregates short-horizon features into a bounded
// composite alpha.
type MicrostructureSignal struct {
	Symbol         string
	NoiseRatio     float64
	Momentum1s     float64
	Momentum5s     float64
	Momentum30s    float64
	VolumeMomentum float64
	PriceVelocity  float64
	Acceleration   float64
	Alpha          float64 // [-1,1]
}

type sample struct {
	price  float64
	volume float64
	ts     int64
}

// Engine owns per-symbol tick histories and per-factor normalization
// histories. All methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	decay   float64
	samples map[string]*series.Ring[sample]
	// factor value histories keyed by symbol then factor name, used only
	// for re-normalization and independent of the raw tick history
	factorHist map[string]map[string]*series.Ring[float64]
}

// NewEngine builds an engine emitting the default decay factor.
func NewEngine() *Engine {
	return NewEngineWithDecay(DefaultDecay)
}

// NewEngineWithDecay overrides the constant decay factor attached to every
// emitted Factor.
func NewEngineWithDecay(decay float64) *Engine {
	if decay <= 0 {
		decay = DefaultDecay
	}
	return &Engine{
		decay:      decay,
		samples:    make(map[string]*series.Ring[sample]),
		factorHist: make(map[string]map[string]*series.Ring[float64]),
	}
}

// Update appends one tick sample, evicting the oldest beyond capacity.
func (e *Engine) Update(symbol string, price, volume float64, ts int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ring := e.samples[symbol]
	if ring == nil {
		ring = series.NewRing[sample](sampleCap)
		e.samples[symbol] = ring
	}
	ring.Push(sample{price: price, volume: volume, ts: ts})
}

// SampleCount reports how many ticks are held for symbol.
func (e *Engine) SampleCount(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ring := e.samples[symbol]; ring != nil {
		return ring.Len()
	}
	return 0
}

// Microstructure computes the composite short-horizon signal. It returns
// ok=false until at least 30 samples have been recorded.
func (e *Engine) Microstructure(symbol string) (MicrostructureSignal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ring := e.samples[symbol]
	if ring == nil || ring.Len() < minSignal {
		return MicrostructureSignal{}, false
	}
	samples := ring.Values()
	prices := extractPrices(samples)

	sig := MicrostructureSignal{
		Symbol:         symbol,
		NoiseRatio:     noiseRatio(prices),
		Momentum1s:     momentum(samples, 1000),
		Momentum5s:     momentum(samples, 5000),
		Momentum30s:    momentum(samples, 30000),
		VolumeMomentum: volumeMomentum(samples),
	}
	sig.PriceVelocity, sig.Acceleration = kinematics(samples)

	weighted := -0.20*sig.NoiseRatio +
		0.30*sig.Momentum1s +
		0.20*sig.Momentum5s +
		0.10*sig.Momentum30s +
		0.15*sig.VolumeMomentum +
		0.25*sig.PriceVelocity
	sig.Alpha = math.Tanh(5 * weighted)
	return sig, true
}

// Factors computes the six-factor set for symbol, each normalized against its
// own rolling history. Returns nil until at least 50 samples are recorded.
func (e *Engine) Factors(symbol string) []Factor {
	e.mu.Lock()
	defer e.mu.Unlock()

	ring := e.samples[symbol]
	if ring == nil || ring.Len() < minFactors {
		return nil
	}
	samples := ring.Values()
	prices := extractPrices(samples)
	volumes := extractVolumes(samples)

	raw := []struct {
		name  string
		value float64
	}{
		{"momentum_volume", momentumVolume(prices, volumes)},
		{"mean_reversion", meanReversion(prices)},
		{"volume_divergence", volumeDivergence(prices, volumes)},
		{"volatility_regime", volatilityRegime(prices)},
		{"microstructure_noise", -noiseRatio(prices)},
		{"tick_momentum", tickMomentum(prices)},
	}

	factors := make([]Factor, 0, len(raw))
	for _, r := range raw {
		factors = append(factors, e.normalize(symbol, r.name, r.value))
	}
	return factors
}

// normalize pushes value into the factor's own history and scores it against
// that history. Caller holds e.mu.
func (e *Engine) normalize(symbol, name string, value float64) Factor {
	hist := e.factorHist[symbol]
	if hist == nil {
		hist = make(map[string]*series.Ring[float64])
		e.factorHist[symbol] = hist
	}
	ring := hist[name]
	if ring == nil {
		ring = series.NewRing[float64](factorCap)
		hist[name] = ring
	}
	ring.Push(value)

	vals := ring.Values()
	z := (value - series.Mean(vals)) / (series.Std(vals) + series.Epsilon)
	return Factor{
		Name:           name,
		Value:          value,
		ZScore:         z,
		Percentile:     series.PercentileRank(vals, value),
		SignalStrength: math.Tanh(math.Abs(z)),
		DecayFactor:    e.decay,
	}
}

func extractPrices(samples []sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.price
	}
	return out
}

func extractVolumes(samples []sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.volume
	}
	return out
}
