// Package monitoring exposes Prometheus metrics for risk calculations.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Calculation metrics
	calculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_calculations_total",
			Help: "Total number of metric calculations by outcome",
		},
		[]string{"metric", "outcome"},
	)

	calculationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quant_calculation_duration_seconds",
			Help:    "Duration of metric calculations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"metric", "model"},
	)

	simulatedTrials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_simulated_trials_total",
			Help: "Total number of Monte Carlo trials simulated",
		},
		[]string{"model"},
	)

	// Dataset metrics
	factorRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quant_factor_dataset_rows",
			Help: "Number of rows in the loaded factor dataset",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_errors_total",
			Help: "Total number of errors by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(calculationsTotal)
	prometheus.MustRegister(calculationDuration)
	prometheus.MustRegister(simulatedTrials)
	prometheus.MustRegister(factorRows)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordCalculation records one calculation and how long it took.
// model is empty for metrics that have no simulation model.
func RecordCalculation(metric, model string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	calculationsTotal.WithLabelValues(metric, outcome).Inc()
	calculationDuration.WithLabelValues(metric, model).Observe(elapsed.Seconds())
}

// RecordTrials adds simulated trials for a model
func RecordTrials(model string, trials int) {
	simulatedTrials.WithLabelValues(model).Add(float64(trials))
}

// UpdateFactorRows sets the size of the loaded factor dataset
func UpdateFactorRows(rows int) {
	factorRows.Set(float64(rows))
}

// RecordError records an error metric
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}
