package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility returns the annualized rolling volatility of returns.
//
// Each point is the population standard deviation of the trailing window
// scaled by sqrt(periodsPerYear). The first window-1 periods have no full
// window and are omitted, so the result has len(returns)-window+1 entries.
// Returns nil if window < 2 or there are fewer returns than the window.
func RollingVolatility(returns []float64, window int, periodsPerYear int) []float64 {
	if window < 2 || len(returns) < window || periodsPerYear < 1 {
		return nil
	}

	// go-talib: inReal, inTimePeriod, inNbDev
	raw := talib.StdDev(returns, window, 1.0)

	scale := math.Sqrt(float64(periodsPerYear))
	out := make([]float64, 0, len(returns)-window+1)
	for _, v := range raw[window-1:] {
		out = append(out, v*scale)
	}
	return out
}

// AnnualizedVolatility calculates annualized sample volatility from periodic returns.
func AnnualizedVolatility(returns []float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear < 1 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(float64(periodsPerYear))
}
