package alpha

import (
	"math"

	"quantcore-go/internal/series"
)

// noiseRatio compares the variance of raw log returns against the variance of
// log returns on an exponentially smoothed price series. High values mean the
// market is choppy relative to its underlying drift.
func noiseRatio(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	smoothed := make([]float64, len(prices))
	smoothed[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		smoothed[i] = emaSmoothing*prices[i] + (1-emaSmoothing)*smoothed[i-1]
	}
	rawVar := series.Variance(series.LogReturns(prices))
	smoothVar := series.Variance(series.LogReturns(smoothed))
	return rawVar / (smoothVar + series.Epsilon)
}

// momentum measures fractional price change over the trailing windowMs
// milliseconds. Fewer than 2 samples in the window yields 0.
func momentum(samples []sample, windowMs int64) float64 {
	if len(samples) == 0 {
		return 0
	}
	cutoff := samples[len(samples)-1].ts - windowMs
	start := -1
	for i, s := range samples {
		if s.ts >= cutoff {
			start = i
			break
		}
	}
	if start < 0 || len(samples)-start < 2 {
		return 0
	}
	first := samples[start].price
	last := samples[len(samples)-1].price
	if first <= 0 {
		return 0
	}
	return (last - first) / first
}

// volumeMomentum compares mean volume over the last 10 samples against the
// prior 40.
func volumeMomentum(samples []sample) float64 {
	const recentN, priorN = 10, 40
	if len(samples) <= recentN {
		return 0
	}
	recentStart := len(samples) - recentN
	priorStart := recentStart - priorN
	if priorStart < 0 {
		priorStart = 0
	}
	var recent, prior float64
	for _, s := range samples[recentStart:] {
		recent += s.volume
	}
	recent /= recentN
	priorCount := recentStart - priorStart
	for _, s := range samples[priorStart:recentStart] {
		prior += s.volume
	}
	prior /= float64(priorCount)
	return (recent - prior) / (prior + series.Epsilon)
}

// kinematics returns first and second finite differences of price over real
// elapsed seconds, from the last 3 samples.
func kinematics(samples []sample) (velocity, acceleration float64) {
	n := len(samples)
	if n < 2 {
		return 0, 0
	}
	a, b := samples[n-2], samples[n-1]
	dt1 := float64(b.ts-a.ts) / 1000
	if dt1 > 0 {
		velocity = (b.price - a.price) / dt1
	}
	if n < 3 {
		return velocity, 0
	}
	z := samples[n-3]
	dt0 := float64(a.ts-z.ts) / 1000
	if dt0 > 0 && dt1 > 0 {
		v0 := (a.price - z.price) / dt0
		acceleration = (velocity - v0) / dt1
	}
	return velocity, acceleration
}

// momentumVolume scales 20-sample price momentum by the log of the
// recent-to-average volume ratio, capped at 3x.
func momentumVolume(prices, volumes []float64) float64 {
	const lookback = 20
	n := len(prices)
	if n < lookback+1 {
		return 0
	}
	base := prices[n-1-lookback]
	if base <= 0 {
		return 0
	}
	mom := (prices[n-1] - base) / base
	recent := series.Mean(volumes[n-5:])
	avg := series.Mean(volumes[n-lookback:])
	if avg <= 0 || recent <= 0 {
		return 0
	}
	ratio := recent / avg
	if ratio > 3 {
		ratio = 3
	}
	return mom * math.Log(ratio)
}

// meanReversion is contrarian: positive deviation from the 30-sample mean
// produces a negative value.
func meanReversion(prices []float64) float64 {
	const lookback = 30
	n := len(prices)
	if n < lookback {
		return 0
	}
	window := prices[n-lookback:]
	dev := (prices[n-1] - series.Mean(window)) / (series.Std(window) + series.Epsilon)
	return -math.Tanh(5 * dev)
}

// volumeDivergence is 1 when price direction and volume-trend direction over a
// 20-sample window disagree, else 0.
func volumeDivergence(prices, volumes []float64) float64 {
	const window = 20
	n := len(prices)
	if n < window {
		return 0
	}
	p := prices[n-window:]
	v := volumes[n-window:]
	priceDir := sign(p[len(p)-1] - p[0])
	volDir := sign(series.Mean(v[window/2:]) - series.Mean(v[:window/2]))
	if priceDir != 0 && volDir != 0 && priceDir != volDir {
		return 1
	}
	return 0
}

// volatilityRegime compares recent realized volatility (last 10 log returns)
// against the rest of the history.
func volatilityRegime(prices []float64) float64 {
	const recentN = 10
	returns := series.LogReturns(prices)
	if len(returns) <= recentN {
		return 0
	}
	recent := series.Std(returns[len(returns)-recentN:])
	historical := series.Std(returns[:len(returns)-recentN])
	return (recent - historical) / (historical + series.Epsilon)
}

// tickMomentum balances up-ticks against down-ticks over the last 10 samples.
func tickMomentum(prices []float64) float64 {
	const window = 10
	n := len(prices)
	if n < 2 {
		return 0
	}
	start := n - window
	if start < 1 {
		start = 1
	}
	var ups, downs float64
	for i := start; i < n; i++ {
		switch {
		case prices[i] > prices[i-1]:
			ups++
		case prices[i] < prices[i-1]:
			downs++
		}
	}
	return (ups - downs) / (ups + downs + series.Epsilon)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
