package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Finite returns a copy of x without NaN and infinite entries.
func Finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Mean computes the average of a slice. An empty slice has mean 0.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// Std computes the population standard deviation of a slice.
func Std(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, v := stat.PopMeanVariance(x, nil)
	return math.Sqrt(v)
}

// MinMax returns the minimum and maximum values in the slice.
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		if v < lo {
			lo = v
		} else if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Median returns the median value of the slice (allocates a copy).
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

// Percentile returns the p-th percentile of x (0 <= p <= 100) using linear
// interpolation between closest ranks.
func Percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if p <= 0 || p >= 100 {
		lo, hi := MinMax(x)
		if p <= 0 {
			return lo
		}
		return hi
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return cp[lower]
	}
	return cp[lower]*(1-weight) + cp[upper]*weight
}
