package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics for a numeric sequence.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// Summarize computes population statistics over values. An empty input
// returns the zero Summary.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sum := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Min:    min,
		Max:    max,
		Median: median,
		Count:  n,
	}
}

// StdDev returns the population standard deviation of values, 0 for fewer
// than two elements.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return Summarize(values).StdDev
}

// Sigmoid maps any real x to the 0-100 range.
func Sigmoid(x float64) float64 {
	return 100 / (1 + math.Exp(-x))
}

// PercentileRank linearly scales value between min and max to 0-100. A
// degenerate range defaults to the median rank.
func PercentileRank(value, min, max float64) float64 {
	if max <= min {
		return 50
	}
	return Clamp((value-min)/(max-min)*100, 0, 100)
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
