package formulas

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of data using linear interpolation between
// order statistics (Hyndman-Fan definition 7, the numpy/pandas default).
//
// The virtual index and the interpolation follow numpy's "linear" method step
// for step so results agree bit for bit with numpy.quantile:
//
//	h     = n*p + (1 - p) - 1
//	lo    = floor(h), hi = min(lo+1, n-1)
//	gamma = h - lo
//	q     = x[lo] + (x[hi]-x[lo])*gamma        (gamma <  0.5)
//	q     = x[hi] - (x[hi]-x[lo])*(1-gamma)    (gamma >= 0.5)
//
// data is not modified. NaN is returned for empty input or p outside [0,1].
func Quantile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return math.NaN()
	}

	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)

	return QuantileSorted(sorted, p)
}

// QuantileSorted is Quantile for data already sorted in ascending order.
func QuantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := float64(n)*p + (1 - p) - 1
	lo := math.Floor(h)
	gamma := h - lo

	loIdx := int(lo)
	if loIdx < 0 {
		loIdx = 0
	}
	if loIdx > n-1 {
		loIdx = n - 1
	}
	hiIdx := loIdx + 1
	if hiIdx > n-1 {
		hiIdx = n - 1
	}

	a, b := sorted[loIdx], sorted[hiIdx]
	diff := b - a
	if gamma >= 0.5 {
		return b - diff*(1-gamma)
	}
	return a + diff*gamma
}
