package risk

import (
	"context"
	"fmt"
	"math"
)

// MarketFactor is the coefficient name holding the market beta.
const MarketFactor = "Mkt-RF"

// DegenerateTolerance is the magnitude below which a ratio denominator is
// treated as zero.
const DegenerateTolerance = 1e-12

// Coefficients exposes the named coefficients of a fitted linear model.
type Coefficients interface {
	Coefficient(name string) (float64, bool)
}

// Regressor fits a factor model to a return series.
type Regressor interface {
	Regress(ctx context.Context, series ReturnSeries) (Coefficients, error)
}

// Sharpe returns (annualized mean - riskFreeAnnual) / annualized std dev.
func Sharpe(in Input, riskFreeAnnual float64, periodsPerYear int) (float64, error) {
	const op = "sharpe"

	params, _, err := annualized(in, periodsPerYear)
	if err != nil {
		return 0, err
	}
	if math.Abs(params.Scale) < DegenerateTolerance {
		return 0, newError(KindDegenerateInput, op, "annualized standard deviation is zero")
	}
	return (params.Location - riskFreeAnnual) / params.Scale, nil
}

// Treynor returns (annualized mean - riskFreeAnnual) / beta, with beta taken
// from the MarketFactor coefficient fitted by regressor on the aggregated
// series.
func Treynor(ctx context.Context, in Input, regressor Regressor, riskFreeAnnual float64, periodsPerYear int) (float64, error) {
	const op = "treynor"

	params, port, err := annualized(in, periodsPerYear)
	if err != nil {
		return 0, err
	}

	coefs, err := regressor.Regress(ctx, port)
	if err != nil {
		return 0, fmt.Errorf("failed to fit factor model: %w", err)
	}
	beta, ok := coefs.Coefficient(MarketFactor)
	if !ok {
		return 0, newError(KindMissingCoefficient, op, "regression has no %q coefficient", MarketFactor)
	}
	if math.Abs(beta) < DegenerateTolerance {
		return 0, newError(KindDegenerateInput, op, "market beta is zero")
	}
	return (params.Location - riskFreeAnnual) / beta, nil
}

func annualized(in Input, periodsPerYear int) (DistributionParameters, ReturnSeries, error) {
	if periodsPerYear < 1 {
		return DistributionParameters{}, ReturnSeries{}, newError(KindInvalidParameter, "annualize", "periods per year must be >= 1, got %d", periodsPerYear)
	}
	port, err := Aggregate(in)
	if err != nil {
		return DistributionParameters{}, ReturnSeries{}, err
	}
	params, err := Estimate(port.Values, Arithmetic, periodsPerYear)
	if err != nil {
		return DistributionParameters{}, ReturnSeries{}, err
	}
	return params, port, nil
}
