package risk

import (
	"github.com/tom-sims/quant-research-toolkit/pkg/formulas"
)

// Defaults applied by NewVaRRequest.
const (
	DefaultTrials         = 10000
	DefaultPeriodsPerYear = 1
	DefaultHorizonSteps   = 1
)

// VaRRequest holds the model-specific parameters of one VaR calculation.
type VaRRequest struct {
	Model      Model
	Confidence float64
	// HorizonSteps is the number of compounded periods; ignored by SingleStepNormal.
	HorizonSteps int
	Trials       int
	// PeriodsPerYear annualizes the SingleStepNormal parameters; the
	// multi-step models estimate per-period parameters.
	PeriodsPerYear int
	// Seed makes the simulation reproducible. Nil draws a fresh seed, which
	// is reported back in VaRResult.Seed.
	Seed *uint64
	// Workers > 1 evaluates trials concurrently without changing results.
	Workers int
	// MaxSimulatedSteps caps trials x horizon steps below the package limit
	// MaxSimulatedSteps; zero applies the package limit.
	MaxSimulatedSteps int
}

// NewVaRRequest returns a request for model at confidence with default
// horizon, trial count and annualization.
func NewVaRRequest(model Model, confidence float64) VaRRequest {
	return VaRRequest{
		Model:          model,
		Confidence:     confidence,
		HorizonSteps:   DefaultHorizonSteps,
		Trials:         DefaultTrials,
		PeriodsPerYear: DefaultPeriodsPerYear,
	}
}

// Seed returns a pointer to v for VaRRequest.Seed.
func Seed(v uint64) *uint64 {
	return &v
}

// VaRResult is a VaR estimate together with everything needed to reproduce it.
type VaRResult struct {
	Model        Model                  `json:"-"`
	Confidence   float64                `json:"confidence"`
	HorizonSteps int                    `json:"horizon_steps"`
	Trials       int                    `json:"trials"`
	Seed         uint64                 `json:"seed"`
	Params       DistributionParameters `json:"params"`
	// Value is the loss magnitude; positive means a loss.
	Value float64 `json:"var"`
}

func (r VaRRequest) validate() error {
	const op = "calculate var"

	if _, ok := modelNames[r.Model]; !ok {
		return newError(KindInvalidParameter, op, "unknown model %d", r.Model)
	}
	if err := validateConfidence(op, r.Confidence); err != nil {
		return err
	}
	if r.Trials < 1 {
		return newError(KindInvalidParameter, op, "trial count must be a positive integer, got %d", r.Trials)
	}
	if r.Model != SingleStepNormal && r.HorizonSteps < 1 {
		return newError(KindInvalidParameter, op, "horizon steps must be a positive integer, got %d", r.HorizonSteps)
	}
	if r.PeriodsPerYear < 1 {
		return newError(KindInvalidParameter, op, "periods per year must be >= 1, got %d", r.PeriodsPerYear)
	}
	if err := checkSize(op, r.horizon(), r.Trials, r.MaxSimulatedSteps); err != nil {
		return err
	}
	return nil
}

// horizon is the number of steps actually simulated.
func (r VaRRequest) horizon() int {
	if r.Model == SingleStepNormal {
		return 1
	}
	return r.HorizonSteps
}

// CalculateVaR runs aggregation, estimation, simulation and extraction for
// the model named in req. The request is validated before any data work.
func CalculateVaR(in Input, req VaRRequest) (VaRResult, error) {
	if err := req.validate(); err != nil {
		return VaRResult{}, err
	}

	port, err := Aggregate(in)
	if err != nil {
		return VaRResult{}, err
	}

	ppy := 1
	if req.Model == SingleStepNormal {
		ppy = req.PeriodsPerYear
	}
	params, err := Estimate(port.Values, req.Model.EstimationMode(), ppy)
	if err != nil {
		return VaRResult{}, err
	}

	sim, err := NewSimulator(req.Model, WithWorkers(req.Workers))
	if err != nil {
		return VaRResult{}, err
	}

	seed := RandomSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	horizon := req.horizon()

	outcomes, err := sim.Simulate(params, horizon, req.Trials, NewSource(seed))
	if err != nil {
		return VaRResult{}, err
	}

	value, err := ExtractVaR(outcomes, req.Confidence, req.Model.Space())
	if err != nil {
		return VaRResult{}, err
	}

	return VaRResult{
		Model:        req.Model,
		Confidence:   req.Confidence,
		HorizonSteps: horizon,
		Trials:       req.Trials,
		Seed:         seed,
		Params:       params,
		Value:        value,
	}, nil
}

// SingleStepNormalVaR simulates annualized normal returns and reports the
// loss quantile in return space.
func SingleStepNormalVaR(in Input, confidence float64, periodsPerYear, trials int, seed *uint64) (VaRResult, error) {
	req := NewVaRRequest(SingleStepNormal, confidence)
	req.PeriodsPerYear = periodsPerYear
	req.Trials = trials
	req.Seed = seed
	return CalculateVaR(in, req)
}

// CompoundingNormalVaR compounds per-period normal returns over horizonSteps
// and reports the loss quantile of terminal values.
func CompoundingNormalVaR(in Input, confidence float64, horizonSteps, trials int, seed *uint64) (VaRResult, error) {
	req := NewVaRRequest(CompoundingNormal, confidence)
	req.HorizonSteps = horizonSteps
	req.Trials = trials
	req.Seed = seed
	return CalculateVaR(in, req)
}

// LogNormalVaR simulates geometric Brownian motion from log-return
// parameters over horizonSteps and reports the loss quantile of terminal
// values.
func LogNormalVaR(in Input, confidence float64, horizonSteps, trials int, seed *uint64) (VaRResult, error) {
	req := NewVaRRequest(LogNormal, confidence)
	req.HorizonSteps = horizonSteps
	req.Trials = trials
	req.Seed = seed
	return CalculateVaR(in, req)
}

// HistoricalVaR is the loss quantile of the observed returns themselves:
// -Q(returns, 1-confidence).
func HistoricalVaR(in Input, confidence float64) (float64, error) {
	if err := validateConfidence("historical var", confidence); err != nil {
		return 0, err
	}
	port, err := Aggregate(in)
	if err != nil {
		return 0, err
	}
	return finiteVaR("historical var", -formulas.Quantile(port.Values, 1-confidence))
}
