package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/runs"
	testingpkg "github.com/tom-sims/quant-research-toolkit/internal/testing"
)

// mockRunStore keeps runs in memory
type mockRunStore struct {
	mu   sync.Mutex
	runs []runs.Run
	err  error
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{}
}

func (m *mockRunStore) Record(ctx context.Context, run runs.Run) (runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return runs.Run{}, m.err
	}
	run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	run.CreatedAt = time.Now().UTC()
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *mockRunStore) Recent(ctx context.Context, limit int) ([]runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []runs.Run
	for i := len(m.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *mockRunStore) Get(ctx context.Context, id string) (*runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

func newTestHandler(store *mockRunStore, regressor risk.Regressor) *Handler {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	return NewHandler(store, regressor, Settings{DefaultTrials: 2000}, logger)
}

func post(t *testing.T, handle http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handle(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", response)
	metadata, ok := response["metadata"].(map[string]interface{})
	require.True(t, ok, "response has no metadata object: %v", response)
	return data, metadata
}

func TestHandleVaR(t *testing.T) {
	store := newMockRunStore()
	handler := newTestHandler(store, nil)

	body := VaRRequest{
		InputPayload: testingpkg.NewSeriesPayloadFixture(),
		Model:        "compounding_normal",
		Confidence:   0.95,
		Horizon:      intPtr(5),
		Seed:         uint64Ptr(42),
	}
	w := post(t, handler.HandleVaR, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, metadata := decodeEnvelope(t, w)
	assert.Equal(t, "compounding_normal", data["model"])
	assert.Equal(t, float64(5), data["horizon_steps"])
	assert.Equal(t, float64(2000), data["trials"])
	assert.Equal(t, float64(42), data["seed"])
	assert.Contains(t, data, "params")
	assert.Equal(t, "run-1", metadata["run_id"])
	assert.NotEmpty(t, metadata["timestamp"])

	// The same seed reproduces the same number through the core API
	in, err := testingpkg.NewSeriesPayloadFixture().Input()
	require.NoError(t, err)
	want, err := risk.CompoundingNormalVaR(in, 0.95, 5, 2000, risk.Seed(42))
	require.NoError(t, err)
	assert.InDelta(t, want.Value, data["var"].(float64), 1e-12)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "var", store.runs[0].Metric)
	assert.Equal(t, "42", store.runs[0].Params["seed"])
	assert.Equal(t, want.Value, store.runs[0].Value)
}

func TestHandleVaR_Models(t *testing.T) {
	tests := []struct {
		model string
	}{
		{"single_step_normal"},
		{"compounding_normal"},
		{"log_normal"},
		{"GBM"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			handler := newTestHandler(newMockRunStore(), nil)
			body := VaRRequest{
				InputPayload: testingpkg.NewSeriesPayloadFixture(),
				Model:        tt.model,
				Confidence:   0.99,
				Seed:         uint64Ptr(7),
			}
			w := post(t, handler.HandleVaR, body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			data, _ := decodeEnvelope(t, w)
			assert.Greater(t, data["var"].(float64), 0.0)
		})
	}
}

func TestHandleVaR_Historical(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	body := VaRRequest{
		InputPayload: testingpkg.NewSeriesPayloadFixture(),
		Model:        "historical",
		Confidence:   0.9,
	}
	w := post(t, handler.HandleVaR, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ := decodeEnvelope(t, w)
	assert.Equal(t, "historical", data["model"])
	assert.InDelta(t, 0.011, data["var"].(float64), 1e-12)
}

func TestHandleVaR_Table(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	table := testingpkg.NewReturnTableFixture()
	payload := &risk.TablePayload{Assets: table.Assets}
	for _, col := range table.Columns {
		ptrs := make([]*float64, len(col))
		for i := range col {
			ptrs[i] = &col[i]
		}
		payload.Columns = append(payload.Columns, ptrs)
	}

	body := VaRRequest{
		InputPayload: risk.InputPayload{Table: payload, Weights: []float64{1, 1}},
		Model:        "historical",
		Confidence:   0.9,
	}
	w := post(t, handler.HandleVaR, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ := decodeEnvelope(t, w)
	assert.InDelta(t, 0.011, data["var"].(float64), 1e-12)
}

func TestHandleVaR_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind string
	}{
		{
			name: "unknown model",
			body: `{"series": {"values": [0.01, 0.02]}, "model": "student_t", "confidence": 0.95}`,
			kind: string(risk.KindInvalidParameter),
		},
		{
			name: "confidence out of range",
			body: `{"series": {"values": [0.01, 0.02]}, "model": "log_normal", "confidence": 1.5}`,
			kind: string(risk.KindInvalidParameter),
		},
		{
			name: "zero trials",
			body: `{"series": {"values": [0.01, 0.02]}, "model": "log_normal", "confidence": 0.95, "trials": 0}`,
			kind: string(risk.KindInvalidParameter),
		},
		{
			name: "no input",
			body: `{"model": "log_normal", "confidence": 0.95}`,
			kind: string(risk.KindTypeMismatch),
		},
		{
			name: "too few observations",
			body: `{"series": {"values": [0.01, null]}, "model": "compounding_normal", "confidence": 0.95}`,
			kind: string(risk.KindInsufficientData),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockRunStore()
			handler := newTestHandler(store, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/risk/var", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			handler.HandleVaR(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.kind, response["kind"])
			assert.NotEmpty(t, response["error"])
			assert.Empty(t, store.runs)
		})
	}
}

func TestHandleVaR_OverflowingPaths(t *testing.T) {
	store := newMockRunStore()
	handler := newTestHandler(store, nil)

	body := `{"series": {"values": [30, -0.99, 25, -0.95, 40]}, "model": "compounding_normal",
		"confidence": 0.95, "horizon": 400, "trials": 200, "seed": 1}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/var", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	handler.HandleVaR(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotZero(t, w.Body.Len())

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, string(risk.KindDegenerateInput), response["kind"])
	assert.Empty(t, store.runs)
}

func TestHandleVaR_SimulationSizeLimits(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		body     string
	}{
		{
			name: "trial count beyond package limit",
			body: `{"series": {"values": [0.01, -0.02, 0.015]}, "model": "single_step_normal",
				"confidence": 0.95, "trials": 1152921504606846976}`,
		},
		{
			name: "horizon overflow",
			body: `{"series": {"values": [0.01, -0.02, 0.015]}, "model": "compounding_normal",
				"confidence": 0.95, "trials": 4, "horizon": 4611686018427387904}`,
		},
		{
			name:     "configured cap",
			settings: Settings{DefaultTrials: 2000, MaxSimulatedSteps: 10_000},
			body: `{"series": {"values": [0.01, -0.02, 0.015]}, "model": "log_normal",
				"confidence": 0.95, "trials": 1000, "horizon": 11}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(newMockRunStore(), nil, tt.settings, zerolog.New(nil).Level(zerolog.Disabled))

			req := httptest.NewRequest(http.MethodPost, "/api/risk/var", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			require.NotPanics(t, func() { handler.HandleVaR(w, req) })

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, string(risk.KindInvalidParameter), response["kind"])
		})
	}
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	w := httptest.NewRecorder()
	handler.writeData(w, map[string]interface{}{"var": math.NaN()}, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.NotEmpty(t, response["error"])
}

func TestHandleVaR_MalformedBody(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/risk/var", bytes.NewBufferString(`{"series":`))
	w := httptest.NewRecorder()
	handler.HandleVaR(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleVaR_RecordFailureStillAnswers(t *testing.T) {
	store := newMockRunStore()
	store.err = errors.New("disk full")
	handler := newTestHandler(store, nil)

	body := VaRRequest{
		InputPayload: testingpkg.NewSeriesPayloadFixture(),
		Model:        "historical",
		Confidence:   0.95,
	}
	w := post(t, handler.HandleVaR, body)
	require.Equal(t, http.StatusOK, w.Code)

	_, metadata := decodeEnvelope(t, w)
	assert.NotContains(t, metadata, "run_id")
}

func TestHandleSharpe(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	body := RatioRequest{InputPayload: testingpkg.NewSeriesPayloadFixture()}
	w := post(t, handler.HandleSharpe, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ := decodeEnvelope(t, w)
	assert.InDelta(t, 0.2656844656620286, data["sharpe_ratio"].(float64), 1e-12)
	assert.Equal(t, float64(1), data["periods_per_year"])

	body = RatioRequest{
		InputPayload:   testingpkg.NewSeriesPayloadFixture(),
		RiskFreeRate:   0.02,
		PeriodsPerYear: intPtr(252),
	}
	w = post(t, handler.HandleSharpe, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ = decodeEnvelope(t, w)
	assert.InDelta(t, 4.133927399253271, data["sharpe_ratio"].(float64), 1e-9)
}

func TestHandleSharpe_ConstantReturns(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	w := post(t, handler.HandleSharpe, json.RawMessage(`{"series": {"values": [0.01, 0.01, 0.01]}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(risk.KindDegenerateInput))
}

func TestHandleTreynor(t *testing.T) {
	regressor := testingpkg.NewMockRegressor(1.2)
	handler := newTestHandler(newMockRunStore(), regressor)

	body := RatioRequest{
		InputPayload:   testingpkg.NewSeriesPayloadFixture(),
		RiskFreeRate:   0.02,
		PeriodsPerYear: intPtr(252),
	}
	w := post(t, handler.HandleTreynor, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ := decodeEnvelope(t, w)
	assert.InDelta(t, 0.8233333333333334, data["treynor_ratio"].(float64), 1e-9)
	assert.Equal(t, 1, regressor.Calls())

	series, ok := regressor.LastSeries()
	require.True(t, ok)
	assert.True(t, series.HasDates())
}

func TestHandleTreynor_Errors(t *testing.T) {
	body := RatioRequest{InputPayload: testingpkg.NewSeriesPayloadFixture()}

	t.Run("missing coefficient", func(t *testing.T) {
		regressor := testingpkg.NewMockRegressor(0)
		regressor.SetCoefficients(testingpkg.MockCoefficients{"SMB": 0.4})
		w := post(t, newTestHandler(newMockRunStore(), regressor).HandleTreynor, body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("zero beta", func(t *testing.T) {
		w := post(t, newTestHandler(newMockRunStore(), testingpkg.NewMockRegressor(0)).HandleTreynor, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("factor data unavailable", func(t *testing.T) {
		regressor := testingpkg.NewMockRegressor(1)
		regressor.SetError(errors.New("download failed"))
		w := post(t, newTestHandler(newMockRunStore(), regressor).HandleTreynor, body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("no factor model", func(t *testing.T) {
		w := post(t, newTestHandler(newMockRunStore(), nil).HandleTreynor, body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleVolatility(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	body := VolatilityRequest{
		InputPayload: testingpkg.NewSeriesPayloadFixture(),
		Window:       5,
	}
	w := post(t, handler.HandleVolatility, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, _ := decodeEnvelope(t, w)
	rolling, ok := data["rolling"].([]interface{})
	require.True(t, ok)
	assert.Len(t, rolling, 6)

	first := rolling[0].(map[string]interface{})
	assert.Equal(t, "2024-01-08", first["date"])
	assert.Greater(t, first["volatility"].(float64), 0.0)
	assert.InDelta(t, 0.01505545305418162, data["annualized_volatility"].(float64), 1e-12)
}

func TestHandleVolatility_WindowTooLong(t *testing.T) {
	handler := newTestHandler(newMockRunStore(), nil)

	body := VolatilityRequest{
		InputPayload: testingpkg.NewSeriesPayloadFixture(),
		Window:       30,
	}
	w := post(t, handler.HandleVolatility, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(risk.KindInsufficientData))
}

func TestHandleRuns(t *testing.T) {
	store := newMockRunStore()
	handler := newTestHandler(store, nil)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	for i := 0; i < 3; i++ {
		w := post(t, handler.HandleSharpe, RatioRequest{InputPayload: testingpkg.NewSeriesPayloadFixture()})
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/risk/runs?limit=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data []runs.Run `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "run-3", response.Data[0].ID)
	assert.Equal(t, "sharpe", response.Data[0].Metric)

	req = httptest.NewRequest(http.MethodGet, "/risk/runs/run-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/risk/runs/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/risk/runs?limit=abc", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&risk.Error{Kind: risk.KindEmptyInput}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &risk.Error{Kind: risk.KindDimensionMismatch}), http.StatusBadRequest},
		{&risk.Error{Kind: risk.KindMissingCoefficient}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func intPtr(v int) *int {
	return &v
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
