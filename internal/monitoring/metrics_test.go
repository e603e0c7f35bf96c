package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsHandler(t *testing.T) {
	RecordCalculation("var", "log_normal", 3*time.Millisecond, nil)
	RecordCalculation("sharpe", "", time.Millisecond, errors.New("degenerate"))
	RecordTrials("log_normal", 2500)
	UpdateFactorRows(42)
	RecordError("INVALID_PARAMETER")

	body := scrape(t)
	assert.Contains(t, body, `quant_calculations_total{metric="var",outcome="success"}`)
	assert.Contains(t, body, `quant_calculations_total{metric="sharpe",outcome="error"}`)
	assert.Contains(t, body, `quant_calculation_duration_seconds_count{metric="var",model="log_normal"}`)
	assert.Contains(t, body, `quant_simulated_trials_total{model="log_normal"} 2500`)
	assert.Contains(t, body, "quant_factor_dataset_rows 42")
	assert.Contains(t, body, `quant_errors_total{kind="INVALID_PARAMETER"} 1`)
}
