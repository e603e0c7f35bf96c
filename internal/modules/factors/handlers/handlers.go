// Package handlers provides HTTP handlers for the five-factor model.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
	riskhandlers "github.com/tom-sims/quant-research-toolkit/internal/modules/risk/handlers"
	"github.com/tom-sims/quant-research-toolkit/internal/monitoring"
)

// Fitter fits portfolio returns to the factor model, typically a *factors.Model
type Fitter interface {
	Fit(ctx context.Context, in risk.Input) (*factors.Regression, error)
}

// Handler handles factor model HTTP requests
type Handler struct {
	fitter    Fitter
	refresher factors.Refresher
	log       zerolog.Logger
}

// NewHandler creates a new factor model handler
func NewHandler(fitter Fitter, refresher factors.Refresher, log zerolog.Logger) *Handler {
	return &Handler{
		fitter:    fitter,
		refresher: refresher,
		log:       log.With().Str("handler", "factors").Logger(),
	}
}

// RegisterRoutes registers the factor model routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/factors", func(r chi.Router) {
		r.Post("/ff5", h.HandleFF5)
		r.Post("/refresh", h.HandleRefresh)
	})
}

// FF5Response is the data of POST /api/factors/ff5. Statistics that are not
// finite (a perfect fit has infinite t-values) are reported as null.
type FF5Response struct {
	Params         map[string]*float64    `json:"params"`
	StdErrors      map[string]*float64    `json:"std_errors"`
	TValues        map[string]*float64    `json:"t_values"`
	PValues        map[string]*float64    `json:"p_values"`
	RSquared       *float64               `json:"r_squared"`
	AdjRSquared    *float64               `json:"adj_r_squared"`
	NObs           int                    `json:"n_obs"`
	Interpretation factors.Interpretation `json:"interpretation"`
}

// HandleFF5 handles POST /api/factors/ff5
func (h *Handler) HandleFF5(w http.ResponseWriter, r *http.Request) {
	var req risk.InputPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, riskhandlers.MaxBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	in, err := req.Input()
	if err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	reg, err := h.fitter.Fit(r.Context(), in)
	monitoring.RecordCalculation("ff5", "", time.Since(start), err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": FF5Response{
			Params:         finiteMap(reg.Params),
			StdErrors:      finiteMap(reg.StdErrors),
			TValues:        finiteMap(reg.TValues),
			PValues:        finiteMap(reg.PValues),
			RSquared:       finite(reg.RSquared),
			AdjRSquared:    finite(reg.AdjRSquared),
			NObs:           reg.NObs,
			Interpretation: factors.Interpret(reg),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRefresh handles POST /api/factors/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ds, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh factor dataset")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	monitoring.UpdateFactorRows(len(ds.Rows))

	first, last := ds.Span()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"name":       ds.Name,
			"rows":       len(ds.Rows),
			"from":       first.Format(risk.DateLayout),
			"to":         last.Format(risk.DateLayout),
			"fetched_at": ds.FetchedAt.Format(time.RFC3339),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := riskhandlers.StatusFor(err)
	if kind := risk.KindOf(err); kind != "" {
		monitoring.RecordError(string(kind))
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Factor regression failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response
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

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finiteMap(m map[string]float64) map[string]*float64 {
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		out[k] = finite(v)
	}
	return out
}
