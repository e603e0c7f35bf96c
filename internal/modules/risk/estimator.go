package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EstimationMode selects which return transform the estimator works on.
type EstimationMode int

const (
	// Arithmetic estimates on raw returns and annualizes by periodsPerYear.
	Arithmetic EstimationMode = iota
	// Log estimates on ln(1+r) with no annualization; the horizon is explicit
	// in the path model instead.
	Log
)

// String returns the mode name
func (m EstimationMode) String() string {
	switch m {
	case Arithmetic:
		return "arithmetic"
	case Log:
		return "log"
	default:
		return "unknown"
	}
}

// DistributionParameters is the (location, scale) pair of a normal model.
// Scale is never negative; zero is a valid degenerate scale.
type DistributionParameters struct {
	Location float64 `json:"location"`
	Scale    float64 `json:"scale"`
}

// Variance returns Scale squared.
func (p DistributionParameters) Variance() float64 {
	return p.Scale * p.Scale
}

// Estimate computes the mean and the sample standard deviation (n-1
// denominator) of values.
//
// Arithmetic: location = mean*periodsPerYear, scale = std*sqrt(periodsPerYear).
// Log: values are transformed to ln(1+r) first and periodsPerYear is ignored.
func Estimate(values []float64, mode EstimationMode, periodsPerYear int) (DistributionParameters, error) {
	const op = "estimate"

	if periodsPerYear < 1 {
		return DistributionParameters{}, newError(KindInvalidParameter, op, "periods per year must be >= 1, got %d", periodsPerYear)
	}
	if len(values) < 2 {
		return DistributionParameters{}, newError(KindInsufficientData, op, "need at least 2 observations, got %d", len(values))
	}

	switch mode {
	case Arithmetic:
		mean, std := stat.MeanStdDev(values, nil)
		ppy := float64(periodsPerYear)
		return DistributionParameters{
			Location: mean * ppy,
			Scale:    std * math.Sqrt(ppy),
		}, nil

	case Log:
		logReturns := make([]float64, len(values))
		for i, r := range values {
			if r <= -1 {
				return DistributionParameters{}, newError(KindInvalidParameter, op,
					"return %g at index %d is a loss of 100%% or more and has no log return", r, i)
			}
			logReturns[i] = math.Log1p(r)
		}
		mean, std := stat.MeanStdDev(logReturns, nil)
		return DistributionParameters{Location: mean, Scale: std}, nil

	default:
		return DistributionParameters{}, newError(KindInvalidParameter, op, "unknown estimation mode %d", mode)
	}
}
