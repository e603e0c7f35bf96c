package testing

import (
	"context"
	"sync"

	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
)

// MockCoefficients is a fixed coefficient map implementing risk.Coefficients
type MockCoefficients map[string]float64

// Coefficient returns the named coefficient
func (c MockCoefficients) Coefficient(name string) (float64, bool) {
	v, ok := c[name]
	return v, ok
}

// MockRegressor is a mock implementation of risk.Regressor for testing
type MockRegressor struct {
	mu     sync.RWMutex
	coefs  MockCoefficients
	err    error
	calls  int
	series []risk.ReturnSeries
}

// NewMockRegressor creates a new mock regressor with the given market beta
func NewMockRegressor(beta float64) *MockRegressor {
	return &MockRegressor{
		coefs: MockCoefficients{risk.MarketFactor: beta},
	}
}

// SetCoefficients replaces the coefficients returned by Regress
func (m *MockRegressor) SetCoefficients(coefs MockCoefficients) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coefs = coefs
}

// SetError sets an error to be returned by Regress
func (m *MockRegressor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Regress records the series and returns the configured coefficients
func (m *MockRegressor) Regress(ctx context.Context, series risk.ReturnSeries) (risk.Coefficients, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.series = append(m.series, series)
	if m.err != nil {
		return nil, m.err
	}
	return m.coefs, nil
}

// Calls returns how many times Regress was called
func (m *MockRegressor) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// LastSeries returns the series passed to the most recent Regress call
func (m *MockRegressor) LastSeries() (risk.ReturnSeries, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.series) == 0 {
		return risk.ReturnSeries{}, false
	}
	return m.series[len(m.series)-1], true
}
