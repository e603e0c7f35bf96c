package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_Arithmetic(t *testing.T) {
	tests := []struct {
		name      string
		ppy       int
		wantLoc   float64
		wantScale float64
	}{
		{"per period", 1, 0.004, 0.016355427233796127},
		{"daily annualized", 252, 0.004 * 252, 0.016355427233796127 * math.Sqrt(252)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := Estimate(sampleReturns, Arithmetic, tt.ppy)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantLoc, params.Location, 1e-12)
			assert.InDelta(t, tt.wantScale, params.Scale, 1e-12)
		})
	}
}

func TestEstimate_Log(t *testing.T) {
	params, err := Estimate(sampleReturns, Log, 252)
	require.NoError(t, err)

	// periodsPerYear does not scale log-mode parameters
	assert.InDelta(t, 0.003885264300406944, params.Location, 1e-12)
	assert.InDelta(t, 0.016360183976487166, params.Scale, 1e-12)
	assert.InDelta(t, params.Scale*params.Scale, params.Variance(), 1e-18)
}

func TestEstimate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		mode   EstimationMode
		ppy    int
		want   error
	}{
		{"single observation", []float64{0.01}, Arithmetic, 1, ErrInsufficientData},
		{"no observations", nil, Log, 1, ErrInsufficientData},
		{"zero periods per year", sampleReturns, Arithmetic, 0, ErrInvalidParameter},
		{"total loss in log mode", []float64{0.01, -1.0}, Log, 1, ErrInvalidParameter},
		{"unknown mode", sampleReturns, EstimationMode(7), 1, ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Estimate(tt.values, tt.mode, tt.ppy)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEstimate_ConstantSeries(t *testing.T) {
	params, err := Estimate([]float64{0.01, 0.01, 0.01}, Arithmetic, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, params.Location, 1e-15)
	assert.InDelta(t, 0.0, params.Scale, 1e-15)
}
