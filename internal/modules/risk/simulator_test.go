package risk

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSimulator(t *testing.T, m Model, opts ...SimulatorOption) Simulator {
	t.Helper()
	sim, err := NewSimulator(m, opts...)
	require.NoError(t, err)
	return sim
}

func TestSimulate_TrialCount(t *testing.T) {
	params := DistributionParameters{Location: 0.001, Scale: 0.02}

	for _, m := range []Model{SingleStepNormal, CompoundingNormal, LogNormal} {
		t.Run(m.String(), func(t *testing.T) {
			result, err := mustSimulator(t, m).Simulate(params, 5, 1234, NewSource(1))
			require.NoError(t, err)
			assert.Len(t, result.Values, 1234)
			assert.Equal(t, m, result.Model)
		})
	}
}

func TestSimulate_SeedReproducible(t *testing.T) {
	params := DistributionParameters{Location: 0.0005, Scale: 0.015}

	for _, m := range []Model{SingleStepNormal, CompoundingNormal, LogNormal} {
		t.Run(m.String(), func(t *testing.T) {
			sim := mustSimulator(t, m)
			a, err := sim.Simulate(params, 10, 500, NewSource(42))
			require.NoError(t, err)
			b, err := sim.Simulate(params, 10, 500, NewSource(42))
			require.NoError(t, err)
			c, err := sim.Simulate(params, 10, 500, NewSource(43))
			require.NoError(t, err)

			assert.Equal(t, a.Values, b.Values)
			assert.NotEqual(t, a.Values, c.Values)
		})
	}
}

func TestSimulate_ParallelMatchesSequential(t *testing.T) {
	params := DistributionParameters{Location: 0.0004, Scale: 0.012}

	for _, m := range []Model{CompoundingNormal, LogNormal} {
		for _, workers := range []int{2, 3, 8, 5000} {
			sequential, err := mustSimulator(t, m).Simulate(params, 7, 1001, NewSource(99))
			require.NoError(t, err)
			parallel, err := mustSimulator(t, m, WithWorkers(workers)).Simulate(params, 7, 1001, NewSource(99))
			require.NoError(t, err)

			assert.Equal(t, sequential.Values, parallel.Values, "model %s with %d workers", m, workers)
		}
	}
}

func TestSimulate_ConsumptionOrder(t *testing.T) {
	// One draw per step, trial-major: trial i uses draws i*steps .. i*steps+steps-1.
	params := DistributionParameters{Location: 0.001, Scale: 0.02}
	const steps, trials = 3, 4

	result, err := mustSimulator(t, CompoundingNormal).Simulate(params, steps, trials, NewSource(7))
	require.NoError(t, err)

	rng := rand.New(NewSource(7))
	for i := 0; i < trials; i++ {
		acc := 1.0
		for k := 0; k < steps; k++ {
			z := rng.NormFloat64()
			acc *= 1 + (z*params.Scale + params.Location)
		}
		assert.Equal(t, acc, result.Values[i], "trial %d", i)
	}
}

func TestSimulate_SingleStepDraws(t *testing.T) {
	params := DistributionParameters{Location: 0.05, Scale: 0.2}

	result, err := mustSimulator(t, SingleStepNormal).Simulate(params, 1, 3, NewSource(11))
	require.NoError(t, err)

	rng := rand.New(NewSource(11))
	for i := range result.Values {
		assert.Equal(t, rng.NormFloat64()*params.Scale+params.Location, result.Values[i])
	}
}

func TestSimulate_LogNormalPositive(t *testing.T) {
	// Large volatility would push arithmetic compounding below zero
	params := DistributionParameters{Location: -0.05, Scale: 0.9}

	result, err := mustSimulator(t, LogNormal).Simulate(params, 50, 2000, NewSource(5))
	require.NoError(t, err)
	for _, v := range result.Values {
		assert.Greater(t, v, 0.0)
	}

	var95, err := ExtractVaR(result, 0.95, ValueSpace)
	require.NoError(t, err)
	assert.Less(t, var95, 1.0)
}

func TestSimulate_CompoundingKeepsNegativeTerminalValues(t *testing.T) {
	params := DistributionParameters{Location: 0, Scale: 1.5}

	result, err := mustSimulator(t, CompoundingNormal).Simulate(params, 3, 2000, NewSource(3))
	require.NoError(t, err)

	negatives := 0
	for _, v := range result.Values {
		if v < 0 {
			negatives++
		}
	}
	assert.Greater(t, negatives, 0)
}

func TestSimulate_ZeroScale(t *testing.T) {
	params := DistributionParameters{Location: 0.01, Scale: 0}

	tests := []struct {
		model Model
		want  float64
	}{
		{SingleStepNormal, 0.01},
		{CompoundingNormal, 1.01 * 1.01 * 1.01},
		{LogNormal, math.Exp(0.01) * math.Exp(0.01) * math.Exp(0.01)},
	}

	for _, tt := range tests {
		t.Run(tt.model.String(), func(t *testing.T) {
			result, err := mustSimulator(t, tt.model).Simulate(params, 3, 10, NewSource(1))
			require.NoError(t, err)
			for _, v := range result.Values {
				assert.InDelta(t, tt.want, v, 1e-15)
			}
		})
	}
}

func TestSimulate_Validation(t *testing.T) {
	good := DistributionParameters{Location: 0, Scale: 0.01}

	tests := []struct {
		name    string
		model   Model
		params  DistributionParameters
		horizon int
		trials  int
		src     rand.Source
	}{
		{"zero trials", SingleStepNormal, good, 1, 0, NewSource(1)},
		{"negative trials", LogNormal, good, 1, -5, NewSource(1)},
		{"zero horizon compounding", CompoundingNormal, good, 0, 10, NewSource(1)},
		{"zero horizon gbm", LogNormal, good, 0, 10, NewSource(1)},
		{"negative scale", CompoundingNormal, DistributionParameters{Scale: -0.1}, 1, 10, NewSource(1)},
		{"nan scale", SingleStepNormal, DistributionParameters{Scale: math.NaN()}, 1, 10, NewSource(1)},
		{"infinite location", LogNormal, DistributionParameters{Location: math.Inf(-1), Scale: 0.1}, 1, 10, NewSource(1)},
		{"missing source", CompoundingNormal, good, 1, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustSimulator(t, tt.model).Simulate(tt.params, tt.horizon, tt.trials, tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestSimulate_RejectsOversizedRuns(t *testing.T) {
	good := DistributionParameters{Location: 0, Scale: 0.01}

	tests := []struct {
		name    string
		model   Model
		horizon int
		trials  int
	}{
		{"trials above limit", SingleStepNormal, 1, MaxTrials + 1},
		{"huge trial count", CompoundingNormal, 4, 1 << 62},
		{"product overflows int", LogNormal, 1 << 40, 1 << 23},
		{"product above step limit", CompoundingNormal, MaxSimulatedSteps/1000 + 1, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := mustSimulator(t, tt.model, WithWorkers(4))
			require.NotPanics(t, func() {
				_, err := sim.Simulate(good, tt.horizon, tt.trials, NewSource(1))
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidParameter), "got %v", err)
			})
		})
	}
}

func TestSimulate_AcceptsRunAtStepLimit(t *testing.T) {
	assert.NoError(t, checkSize("simulate", MaxSimulatedSteps/1000, 1000, MaxSimulatedSteps))
	assert.Error(t, checkSize("simulate", MaxSimulatedSteps/1000+1, 1000, MaxSimulatedSteps))
	// A lower cap is honoured; out-of-range caps fall back to the package limit
	assert.Error(t, checkSize("simulate", 11, 10, 100))
	assert.NoError(t, checkSize("simulate", 10, 10, 100))
	assert.NoError(t, checkSize("simulate", 1000, 1000, 0))
}

func TestSimulate_SingleStepIgnoresHorizon(t *testing.T) {
	params := DistributionParameters{Location: 0, Scale: 0.01}

	a, err := mustSimulator(t, SingleStepNormal).Simulate(params, 0, 20, NewSource(8))
	require.NoError(t, err)
	b, err := mustSimulator(t, SingleStepNormal).Simulate(params, 30, 20, NewSource(8))
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{"single_step_normal", SingleStepNormal, false},
		{"Compounding_Normal", CompoundingNormal, false},
		{" log_normal ", LogNormal, false},
		{"gbm", LogNormal, false},
		{"student_t", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModel(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidParameter))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModel_Spaces(t *testing.T) {
	assert.Equal(t, ReturnSpace, SingleStepNormal.Space())
	assert.Equal(t, ValueSpace, CompoundingNormal.Space())
	assert.Equal(t, ValueSpace, LogNormal.Space())
	assert.Equal(t, Log, LogNormal.EstimationMode())
	assert.Equal(t, Arithmetic, CompoundingNormal.EstimationMode())
	assert.Equal(t, "model(9)", Model(9).String())

	_, err := NewSimulator(Model(9))
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}
