// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/runs"
	"github.com/tom-sims/quant-research-toolkit/internal/monitoring"
	"github.com/tom-sims/quant-research-toolkit/pkg/formulas"
)

// HistoricalModel selects empirical VaR in POST /var.
const HistoricalModel = "historical"

// DefaultVolatilityWindow is the rolling window used when none is given.
const DefaultVolatilityWindow = 21

// MaxBodyBytes bounds request bodies accepted by the risk and factor handlers.
const MaxBodyBytes = 16 << 20

// RunStore persists calculation runs
type RunStore interface {
	Record(ctx context.Context, run runs.Run) (runs.Run, error)
	Recent(ctx context.Context, limit int) ([]runs.Run, error)
	Get(ctx context.Context, id string) (*runs.Run, error)
}

// Settings holds service-wide simulation defaults.
type Settings struct {
	DefaultTrials int
	Workers       int
	// MaxSimulatedSteps caps trials x horizon per request; zero means
	// risk.MaxSimulatedSteps.
	MaxSimulatedSteps int
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	runStore  RunStore
	regressor risk.Regressor
	settings  Settings
	log       zerolog.Logger
}

// NewHandler creates a new risk metrics handler
// runStore is optional - if nil, runs are not recorded
func NewHandler(runStore RunStore, regressor risk.Regressor, settings Settings, log zerolog.Logger) *Handler {
	if settings.DefaultTrials < 1 {
		settings.DefaultTrials = risk.DefaultTrials
	}
	return &Handler{
		runStore:  runStore,
		regressor: regressor,
		settings:  settings,
		log:       log.With().Str("handler", "risk").Logger(),
	}
}

// VaRRequest is the body of POST /api/risk/var
type VaRRequest struct {
	risk.InputPayload
	Model          string  `json:"model"`
	Confidence     float64 `json:"confidence"`
	Horizon        *int    `json:"horizon,omitempty"`
	Trials         *int    `json:"trials,omitempty"`
	PeriodsPerYear *int    `json:"periods_per_year,omitempty"`
	Seed           *uint64 `json:"seed,omitempty"`
}

// RatioRequest is the body of POST /api/risk/sharpe and /treynor
type RatioRequest struct {
	risk.InputPayload
	RiskFreeRate   float64 `json:"risk_free_rate"`
	PeriodsPerYear *int    `json:"periods_per_year,omitempty"`
}

// VolatilityRequest is the body of POST /api/risk/volatility
type VolatilityRequest struct {
	risk.InputPayload
	Window         int  `json:"window"`
	PeriodsPerYear *int `json:"periods_per_year,omitempty"`
}

// HandleVaR handles POST /api/risk/var
func (h *Handler) HandleVaR(w http.ResponseWriter, r *http.Request) {
	var req VaRRequest
	if !h.decode(w, r, &req) {
		return
	}

	in, err := req.Input()
	if err != nil {
		h.writeError(w, "var", err)
		return
	}

	modelName := strings.ToLower(strings.TrimSpace(req.Model))
	start := time.Now()

	if modelName == HistoricalModel {
		value, err := risk.HistoricalVaR(in, req.Confidence)
		monitoring.RecordCalculation("var", HistoricalModel, time.Since(start), err)
		if err != nil {
			h.writeError(w, "var", err)
			return
		}

		params := map[string]interface{}{
			"model":      HistoricalModel,
			"confidence": req.Confidence,
		}
		runID := h.recordRun(r.Context(), "var", params, value)
		h.writeData(w, map[string]interface{}{
			"var":        value,
			"model":      HistoricalModel,
			"confidence": req.Confidence,
		}, runID)
		return
	}

	model, err := risk.ParseModel(modelName)
	if err != nil {
		h.writeError(w, "var", err)
		return
	}

	vr := risk.NewVaRRequest(model, req.Confidence)
	vr.Trials = h.settings.DefaultTrials
	vr.Workers = h.settings.Workers
	vr.MaxSimulatedSteps = h.settings.MaxSimulatedSteps
	vr.Seed = req.Seed
	if req.Trials != nil {
		vr.Trials = *req.Trials
	}
	if req.Horizon != nil {
		vr.HorizonSteps = *req.Horizon
	}
	if req.PeriodsPerYear != nil {
		vr.PeriodsPerYear = *req.PeriodsPerYear
	}

	result, err := risk.CalculateVaR(in, vr)
	monitoring.RecordCalculation("var", model.String(), time.Since(start), err)
	if err != nil {
		h.writeError(w, "var", err)
		return
	}
	monitoring.RecordTrials(model.String(), result.Trials)

	h.log.Debug().
		Str("model", model.String()).
		Float64("confidence", result.Confidence).
		Int("trials", result.Trials).
		Uint64("seed", result.Seed).
		Float64("var", result.Value).
		Msg("Calculated VaR")

	params := map[string]interface{}{
		"model":            model.String(),
		"confidence":       result.Confidence,
		"horizon":          result.HorizonSteps,
		"trials":           result.Trials,
		"periods_per_year": vr.PeriodsPerYear,
		// uint64 seeds do not survive a round trip through float64
		"seed": strconv.FormatUint(result.Seed, 10),
	}
	runID := h.recordRun(r.Context(), "var", params, result.Value)

	h.writeData(w, map[string]interface{}{
		"var":           result.Value,
		"model":         model.String(),
		"confidence":    result.Confidence,
		"horizon_steps": result.HorizonSteps,
		"trials":        result.Trials,
		"seed":          result.Seed,
		"params":        result.Params,
	}, runID)
}

// HandleSharpe handles POST /api/risk/sharpe
func (h *Handler) HandleSharpe(w http.ResponseWriter, r *http.Request) {
	var req RatioRequest
	if !h.decode(w, r, &req) {
		return
	}

	in, err := req.Input()
	if err != nil {
		h.writeError(w, "sharpe", err)
		return
	}
	ppy := intOr(req.PeriodsPerYear, risk.DefaultPeriodsPerYear)

	start := time.Now()
	value, err := risk.Sharpe(in, req.RiskFreeRate, ppy)
	monitoring.RecordCalculation("sharpe", "", time.Since(start), err)
	if err != nil {
		h.writeError(w, "sharpe", err)
		return
	}

	params := map[string]interface{}{
		"risk_free_rate":   req.RiskFreeRate,
		"periods_per_year": ppy,
	}
	runID := h.recordRun(r.Context(), "sharpe", params, value)
	h.writeData(w, map[string]interface{}{
		"sharpe_ratio":     value,
		"risk_free_rate":   req.RiskFreeRate,
		"periods_per_year": ppy,
	}, runID)
}

// HandleTreynor handles POST /api/risk/treynor
func (h *Handler) HandleTreynor(w http.ResponseWriter, r *http.Request) {
	if h.regressor == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "factor model is not configured"})
		return
	}

	var req RatioRequest
	if !h.decode(w, r, &req) {
		return
	}

	in, err := req.Input()
	if err != nil {
		h.writeError(w, "treynor", err)
		return
	}
	ppy := intOr(req.PeriodsPerYear, risk.DefaultPeriodsPerYear)

	start := time.Now()
	value, err := risk.Treynor(r.Context(), in, h.regressor, req.RiskFreeRate, ppy)
	monitoring.RecordCalculation("treynor", "", time.Since(start), err)
	if err != nil {
		h.writeError(w, "treynor", err)
		return
	}

	params := map[string]interface{}{
		"risk_free_rate":   req.RiskFreeRate,
		"periods_per_year": ppy,
	}
	runID := h.recordRun(r.Context(), "treynor", params, value)
	h.writeData(w, map[string]interface{}{
		"treynor_ratio":    value,
		"risk_free_rate":   req.RiskFreeRate,
		"periods_per_year": ppy,
	}, runID)
}

// HandleVolatility handles POST /api/risk/volatility
func (h *Handler) HandleVolatility(w http.ResponseWriter, r *http.Request) {
	var req VolatilityRequest
	if !h.decode(w, r, &req) {
		return
	}

	in, err := req.Input()
	if err != nil {
		h.writeError(w, "volatility", err)
		return
	}

	window := req.Window
	if window == 0 {
		window = DefaultVolatilityWindow
	}
	ppy := intOr(req.PeriodsPerYear, risk.DefaultPeriodsPerYear)
	if window < 2 || ppy < 1 {
		h.writeError(w, "volatility", &risk.Error{Kind: risk.KindInvalidParameter, Op: "volatility",
			Msg: fmt.Sprintf("window must be >= 2 and periods per year >= 1, got %d and %d", window, ppy)})
		return
	}

	start := time.Now()
	port, err := risk.Aggregate(in)
	if err == nil && port.Len() < window {
		err = &risk.Error{Kind: risk.KindInsufficientData, Op: "volatility",
			Msg: fmt.Sprintf("need at least %d observations for a %d-period window, got %d", window, window, port.Len())}
	}
	monitoring.RecordCalculation("volatility", "", time.Since(start), err)
	if err != nil {
		h.writeError(w, "volatility", err)
		return
	}

	rolling := formulas.RollingVolatility(port.Values, window, ppy)
	points := make([]map[string]interface{}, len(rolling))
	offset := window - 1
	for i, v := range rolling {
		point := map[string]interface{}{"volatility": v}
		if port.HasDates() {
			point["date"] = port.Dates[offset+i].Format(risk.DateLayout)
		}
		points[i] = point
	}

	latest := rolling[len(rolling)-1]
	params := map[string]interface{}{
		"window":           window,
		"periods_per_year": ppy,
	}
	runID := h.recordRun(r.Context(), "volatility", params, latest)

	h.writeData(w, map[string]interface{}{
		"annualized_volatility": formulas.AnnualizedVolatility(port.Values, ppy),
		"latest":                latest,
		"window":                window,
		"rolling":               points,
	}, runID)
}

// HandleListRuns handles GET /api/risk/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runStore == nil {
		h.writeData(w, []runs.Run{}, "")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	list, err := h.runStore.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []runs.Run{}
	}
	h.writeData(w, list, "")
}

// HandleGetRun handles GET /api/risk/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.runStore == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	run, err := h.runStore.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.writeData(w, run, run.ID)
}

// recordRun stores the run and returns its ID, or "" when nothing was stored.
func (h *Handler) recordRun(ctx context.Context, metric string, params map[string]interface{}, value float64) string {
	if h.runStore == nil {
		return ""
	}
	run, err := h.runStore.Record(ctx, runs.Run{Metric: metric, Params: params, Value: value})
	if err != nil {
		h.log.Warn().Err(err).Str("metric", metric).Msg("Failed to record run")
		return ""
	}
	return run.ID
}

// decode reads a JSON body into v, answering 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps a calculation error to an HTTP status.
func (h *Handler) writeError(w http.ResponseWriter, metric string, err error) {
	kind := risk.KindOf(err)
	status := StatusFor(err)
	if kind != "" {
		monitoring.RecordError(string(kind))
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("metric", metric).Msg("Calculation failed")
	} else {
		h.log.Debug().Err(err).Str("metric", metric).Msg("Rejected calculation request")
	}

	body := map[string]string{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	h.writeJSON(w, status, body)
}

// StatusFor returns the HTTP status for a calculation error: 400 for bad
// input, 422 when the fitted model lacks a needed coefficient, 500 otherwise.
func StatusFor(err error) int {
	var e *risk.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch {
	case e.Kind.IsInputError():
		return http.StatusBadRequest
	case e.Kind == risk.KindMissingCoefficient:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeData writes the standard {data, metadata} envelope.
func (h *Handler) writeData(w http.ResponseWriter, data interface{}, runID string) {
	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if runID != "" {
		metadata["run_id"] = runID
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     data,
		"metadata": metadata,
	})
}

// writeJSON writes a JSON response. The body is encoded before the status is
// sent so an unencodable value becomes a 500 instead of an empty 200.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
