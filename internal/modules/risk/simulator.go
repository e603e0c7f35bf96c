package risk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model selects the stochastic process used to simulate outcomes.
type Model int

const (
	// SingleStepNormal draws one annualized normal return per trial.
	SingleStepNormal Model = iota
	// CompoundingNormal compounds per-period normal returns as acc *= 1+r.
	CompoundingNormal
	// LogNormal compounds geometric Brownian motion steps
	// acc *= exp(drift + diffusion*z).
	LogNormal
)

var modelNames = map[Model]string{
	SingleStepNormal:  "single_step_normal",
	CompoundingNormal: "compounding_normal",
	LogNormal:         "log_normal",
}

// String returns the wire name of the model
func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ParseModel resolves a model from its wire name. "gbm" is accepted for LogNormal.
func ParseModel(name string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "gbm" {
		return LogNormal, nil
	}
	for m, n := range modelNames {
		if n == key {
			return m, nil
		}
	}
	return 0, newError(KindInvalidParameter, "parse model", "unknown model %q", name)
}

// Space reports how the model's outcomes are interpreted by the extractor.
func (m Model) Space() OutcomeSpace {
	if m == SingleStepNormal {
		return ReturnSpace
	}
	return ValueSpace
}

// EstimationMode reports which estimator mode feeds the model.
func (m Model) EstimationMode() EstimationMode {
	if m == LogNormal {
		return Log
	}
	return Arithmetic
}

// SimulationResult holds one outcome per independent trial: a simulated return
// for SingleStepNormal, a terminal value starting from 1.0 otherwise.
type SimulationResult struct {
	Model  Model
	Values []float64
}

// Simulator generates trial outcomes from estimated parameters. Draws are
// consumed from src in trial-major, step-minor order, one per step.
type Simulator interface {
	Simulate(params DistributionParameters, horizonSteps, trials int, src rand.Source) (SimulationResult, error)
}

// NewSource returns the random stream for one simulation call.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

// RandomSeed draws a fresh seed for callers that did not supply one.
func RandomSeed() uint64 {
	return rand.Uint64()
}

// maxPregeneratedDraws bounds the draw buffer used by the parallel path.
const maxPregeneratedDraws = 1 << 26

// Simulation size limits. Requests beyond them are rejected with
// InvalidParameterError before any allocation.
const (
	// MaxTrials bounds the number of simulated paths (and the result slice).
	MaxTrials = 10_000_000
	// MaxSimulatedSteps bounds trials x horizon steps, the number of draws.
	MaxSimulatedSteps = 1_000_000_000
)

// checkSize rejects simulations larger than MaxTrials or maxSteps draws.
// The product is compared by division so it cannot overflow.
func checkSize(op string, horizonSteps, trials, maxSteps int) error {
	if trials > MaxTrials {
		return newError(KindInvalidParameter, op, "trial count %d exceeds the limit of %d", trials, MaxTrials)
	}
	if maxSteps < 1 || maxSteps > MaxSimulatedSteps {
		maxSteps = MaxSimulatedSteps
	}
	if trials >= 1 && horizonSteps > maxSteps/trials {
		return newError(KindInvalidParameter, op,
			"%d trials x %d horizon steps exceeds the limit of %d simulated steps", trials, horizonSteps, maxSteps)
	}
	return nil
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*simulatorConfig)

type simulatorConfig struct {
	workers int
}

// WithWorkers evaluates trials on up to n goroutines. The draw sequence is
// still generated in order from the single stream, so seeded results do not
// depend on n.
func WithWorkers(n int) SimulatorOption {
	return func(c *simulatorConfig) {
		c.workers = n
	}
}

// NewSimulator returns the strategy for model m.
func NewSimulator(m Model, opts ...SimulatorOption) (Simulator, error) {
	cfg := simulatorConfig{workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch m {
	case SingleStepNormal:
		return singleStepSimulator{}, nil
	case CompoundingNormal, LogNormal:
		return multiStepSimulator{model: m, workers: cfg.workers}, nil
	default:
		return nil, newError(KindInvalidParameter, "simulate", "unknown model %d", m)
	}
}

func validateRun(params DistributionParameters, horizonSteps, trials int, src rand.Source) error {
	const op = "simulate"
	if trials < 1 {
		return newError(KindInvalidParameter, op, "trial count must be a positive integer, got %d", trials)
	}
	if err := checkSize(op, horizonSteps, trials, MaxSimulatedSteps); err != nil {
		return err
	}
	if math.IsNaN(params.Location) || math.IsInf(params.Location, 0) {
		return newError(KindInvalidParameter, op, "location must be finite, got %g", params.Location)
	}
	if math.IsNaN(params.Scale) || math.IsInf(params.Scale, 0) || params.Scale < 0 {
		return newError(KindInvalidParameter, op, "scale must be finite and non-negative, got %g", params.Scale)
	}
	if src == nil {
		return newError(KindInvalidParameter, op, "random source is required")
	}
	return nil
}

// singleStepSimulator treats each normal draw as a simulated periodic return.
type singleStepSimulator struct{}

func (singleStepSimulator) Simulate(params DistributionParameters, _ int, trials int, src rand.Source) (SimulationResult, error) {
	if err := validateRun(params, 1, trials, src); err != nil {
		return SimulationResult{}, err
	}

	values := make([]float64, trials)
	if params.Scale == 0 {
		for i := range values {
			values[i] = params.Location
		}
		return SimulationResult{Model: SingleStepNormal, Values: values}, nil
	}

	normal := distuv.Normal{Mu: params.Location, Sigma: params.Scale, Src: src}
	for i := range values {
		values[i] = normal.Rand()
	}
	return SimulationResult{Model: SingleStepNormal, Values: values}, nil
}

// multiStepSimulator compounds horizonSteps periods per trial from 1.0.
type multiStepSimulator struct {
	model   Model
	workers int
}

// growth returns the per-step update for a standard normal draw z.
func (s multiStepSimulator) growth(params DistributionParameters) func(acc, z float64) float64 {
	loc, scale := params.Location, params.Scale
	if s.model == LogNormal {
		drift := loc - 0.5*scale*scale
		return func(acc, z float64) float64 {
			return acc * math.Exp(drift+scale*z)
		}
	}
	return func(acc, z float64) float64 {
		return acc * (1 + (z*scale + loc))
	}
}

func (s multiStepSimulator) Simulate(params DistributionParameters, horizonSteps, trials int, src rand.Source) (SimulationResult, error) {
	if horizonSteps < 1 {
		return SimulationResult{}, newError(KindInvalidParameter, "simulate", "horizon steps must be a positive integer, got %d", horizonSteps)
	}
	if err := validateRun(params, horizonSteps, trials, src); err != nil {
		return SimulationResult{}, err
	}

	step := s.growth(params)
	values := make([]float64, trials)

	// Zero scale: every path is the same deterministic compounding and no
	// draws are consumed.
	if params.Scale == 0 {
		terminal := 1.0
		for k := 0; k < horizonSteps; k++ {
			terminal = step(terminal, 0)
		}
		for i := range values {
			values[i] = terminal
		}
		return SimulationResult{Model: s.model, Values: values}, nil
	}

	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	if s.workers > 1 && trials > 1 && horizonSteps <= maxPregeneratedDraws/trials {
		draws := make([]float64, trials*horizonSteps)
		for i := range draws {
			draws[i] = unit.Rand()
		}
		if err := s.evaluateParallel(values, draws, horizonSteps, step); err != nil {
			return SimulationResult{}, err
		}
		return SimulationResult{Model: s.model, Values: values}, nil
	}

	for i := range values {
		acc := 1.0
		for k := 0; k < horizonSteps; k++ {
			acc = step(acc, unit.Rand())
		}
		values[i] = acc
	}
	return SimulationResult{Model: s.model, Values: values}, nil
}

// evaluateParallel splits trials into contiguous chunks; trial i reads
// draws[i*horizonSteps : (i+1)*horizonSteps].
func (s multiStepSimulator) evaluateParallel(values, draws []float64, horizonSteps int, step func(acc, z float64) float64) error {
	trials := len(values)
	workers := s.workers
	if workers > trials {
		workers = trials
	}
	chunk := (trials + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < trials; start += chunk {
		lo, hi := start, start+chunk
		if hi > trials {
			hi = trials
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				acc := 1.0
				path := draws[i*horizonSteps : (i+1)*horizonSteps]
				for _, z := range path {
					acc = step(acc, z)
				}
				values[i] = acc
			}
			return nil
		})
	}
	return g.Wait()
}
