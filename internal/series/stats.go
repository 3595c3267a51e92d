package series

import "math"

// Epsilon guards divisions throughout the engines so degenerate windows
// produce neutral values instead of NaN/Inf.
const Epsilon = 1e-10

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Variance returns the population variance, 0 for fewer than 2 values.
func Variance(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := Mean(vals)
	var acc float64
	for _, v := range vals {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(vals))
}

// Std returns the population standard deviation.
func Std(vals []float64) float64 {
	return math.Sqrt(Variance(vals))
}

// LogReturns maps a price series to its log returns. Non-positive prices are
// skipped to keep the output finite.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// PercentileRank reports the fraction of vals less than or equal to v.
func PercentileRank(vals []float64, v float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	rank := 0
	for _, x := range vals {
		if x <= v {
			rank++
		}
	}
	return float64(rank) / float64(len(vals))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
