package factors

import "fmt"

// TradingDaysPerYear annualizes daily alpha.
const TradingDaysPerYear = 252

// Interpretation is a plain-language reading of a five-factor fit.
type Interpretation struct {
	Fit           string            `json:"fit"`
	Market        string            `json:"market"`
	Alpha         string            `json:"alpha"`
	AnnualAlpha   float64           `json:"annual_alpha"`
	AlphaVerdict  string            `json:"alpha_verdict"`
	Tilts         map[string]string `json:"tilts"`
	TiltStrengths map[string]string `json:"tilt_strengths"`
}

var tiltLabels = map[string][2]string{
	SMB: {"small-cap tilt", "large-cap tilt"},
	HML: {"value tilt", "growth tilt"},
	RMW: {"profitable firms tilt", "weak profitability tilt"},
	CMA: {"conservative investment tilt", "aggressive investment tilt"},
}

// Interpret classifies explanatory power, market exposure, alpha
// significance and style tilts of a daily regression.
func Interpret(reg *Regression) Interpretation {
	out := Interpretation{
		Tilts:         make(map[string]string, len(tiltLabels)),
		TiltStrengths: make(map[string]string, len(tiltLabels)),
	}

	switch r2 := reg.AdjRSquared; {
	case r2 < 0.3:
		out.Fit = "weak"
	case r2 < 0.6:
		out.Fit = "ok"
	case r2 < 0.8:
		out.Fit = "strong"
	default:
		out.Fit = "very strong"
	}

	switch beta := reg.Params[MktRF]; {
	case beta < 0.5:
		out.Market = "defensive"
	case beta > 1.5:
		out.Market = "aggressive"
	default:
		out.Market = "market-like"
	}

	alpha := reg.Params[Const]
	out.AnnualAlpha = alpha * TradingDaysPerYear
	out.Alpha = fmt.Sprintf("%.4f%% per day, %.2f%% per year", alpha*100, out.AnnualAlpha*100)
	switch p := reg.PValues[Const]; {
	case p < 0.05:
		out.AlphaVerdict = "statistically significant"
	case p < 0.10:
		out.AlphaVerdict = "marginal"
	default:
		out.AlphaVerdict = "indistinguishable from zero"
	}

	for name, labels := range tiltLabels {
		b := reg.Params[name]
		if b >= 0 {
			out.Tilts[name] = labels[0]
		} else {
			out.Tilts[name] = labels[1]
		}
		out.TiltStrengths[name] = tiltStrength(b)
	}

	return out
}

func tiltStrength(b float64) string {
	if b < 0 {
		b = -b
	}
	switch {
	case b >= 0.5:
		return "strong"
	case b >= 0.3:
		return "medium"
	case b >= 0.1:
		return "low"
	default:
		return "negligible"
	}
}
