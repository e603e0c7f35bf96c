package risk

import (
	"math"

	"github.com/tom-sims/quant-research-toolkit/pkg/formulas"
)

// OutcomeSpace says how simulated outcomes are read by ExtractVaR.
type OutcomeSpace int

const (
	// ReturnSpace outcomes are simulated returns.
	ReturnSpace OutcomeSpace = iota
	// ValueSpace outcomes are terminal values of a path starting at 1.0.
	ValueSpace
)

// String returns the space name
func (s OutcomeSpace) String() string {
	if s == ValueSpace {
		return "value"
	}
	return "return"
}

// ExtractVaR turns simulated outcomes into a loss quantile at confidence.
//
//	ReturnSpace: VaR = -Q(values, 1-confidence)
//	ValueSpace:  VaR =  Q(1-values, confidence)
//
// Q is linear interpolation between order statistics in both spaces. The
// result is reported as a loss magnitude and is not clamped, so a model whose
// tail still gains yields a negative VaR.
func ExtractVaR(result SimulationResult, confidence float64, space OutcomeSpace) (float64, error) {
	const op = "extract var"

	if err := validateConfidence(op, confidence); err != nil {
		return 0, err
	}
	if len(result.Values) == 0 {
		return 0, newError(KindEmptyInput, op, "simulation result has no outcomes")
	}

	var value float64
	switch space {
	case ReturnSpace:
		value = -formulas.Quantile(result.Values, 1-confidence)
	case ValueSpace:
		losses := make([]float64, len(result.Values))
		for i, v := range result.Values {
			losses[i] = 1 - v
		}
		value = formulas.Quantile(losses, confidence)
	default:
		return 0, newError(KindInvalidParameter, op, "unknown outcome space %d", space)
	}
	return finiteVaR(op, value)
}

// finiteVaR rejects quantiles that overflowed, e.g. paths compounding to ±Inf.
func finiteVaR(op string, value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, newError(KindDegenerateInput, op, "VaR is not a finite number (%g); outcomes overflowed", value)
	}
	return value, nil
}

func validateConfidence(op string, confidence float64) error {
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return newError(KindInvalidParameter, op, "confidence must be strictly between 0 and 1, got %g", confidence)
	}
	return nil
}
