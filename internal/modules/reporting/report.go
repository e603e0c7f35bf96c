// Package reporting assembles risk reports and renders them to the console,
// to Excel workbooks and to S3-compatible object storage.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
)

// MetricRow is one line of the report summary.
type MetricRow struct {
	Name   string
	Value  float64
	Detail string
}

// Report is everything rendered by WriteConsole and WriteXLSX.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Metrics     []MetricRow
	// Loadings is nil when no factor regression was run.
	Loadings *factors.Regression
}

// Fitter fits the five-factor model, typically a *factors.Model.
type Fitter interface {
	Fit(ctx context.Context, in risk.Input) (*factors.Regression, error)
}

// Options configures Build.
type Options struct {
	Title          string
	Confidence     float64
	HorizonSteps   int
	Trials         int
	PeriodsPerYear int
	RiskFreeRate   float64
	Seed           *uint64
	Workers        int
	// Fitter is optional; without it Treynor and factor loadings are skipped.
	Fitter Fitter
}

// DefaultOptions returns daily-data defaults at 95% confidence.
func DefaultOptions() Options {
	return Options{
		Title:          "Risk report",
		Confidence:     0.95,
		HorizonSteps:   risk.DefaultHorizonSteps,
		Trials:         risk.DefaultTrials,
		PeriodsPerYear: factors.TradingDaysPerYear,
	}
}

// Builder computes reports.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a new report builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log.With().Str("component", "report_builder").Logger()}
}

// Build runs every VaR model, historical VaR, Sharpe and, when a fitter is
// configured, the five-factor regression and Treynor ratio.
func (b *Builder) Build(ctx context.Context, in risk.Input, opts Options) (*Report, error) {
	report := &Report{
		Title:       opts.Title,
		GeneratedAt: time.Now().UTC(),
	}
	conf := fmt.Sprintf("%g%% confidence", opts.Confidence*100)

	for _, model := range []risk.Model{risk.SingleStepNormal, risk.CompoundingNormal, risk.LogNormal} {
		req := risk.NewVaRRequest(model, opts.Confidence)
		req.HorizonSteps = opts.HorizonSteps
		req.Trials = opts.Trials
		req.PeriodsPerYear = opts.PeriodsPerYear
		req.Seed = opts.Seed
		req.Workers = opts.Workers

		result, err := risk.CalculateVaR(in, req)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate %s VaR: %w", model, err)
		}
		report.Metrics = append(report.Metrics, MetricRow{
			Name:  "VaR " + model.String(),
			Value: result.Value,
			Detail: fmt.Sprintf("%s, %d steps, %d trials, seed %d",
				conf, result.HorizonSteps, result.Trials, result.Seed),
		})
	}

	hist, err := risk.HistoricalVaR(in, opts.Confidence)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate historical VaR: %w", err)
	}
	report.Metrics = append(report.Metrics, MetricRow{Name: "VaR historical", Value: hist, Detail: conf})

	sharpe, err := risk.Sharpe(in, opts.RiskFreeRate, opts.PeriodsPerYear)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate Sharpe ratio: %w", err)
	}
	ratioDetail := fmt.Sprintf("risk-free %g, %d periods per year", opts.RiskFreeRate, opts.PeriodsPerYear)
	report.Metrics = append(report.Metrics, MetricRow{Name: "Sharpe ratio", Value: sharpe, Detail: ratioDetail})

	if opts.Fitter == nil {
		return report, nil
	}

	reg, err := opts.Fitter.Fit(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to fit factor model: %w", err)
	}
	report.Loadings = reg

	port, err := risk.Aggregate(in)
	if err != nil {
		return nil, err
	}
	treynor, err := risk.Treynor(ctx, risk.FromSeries(port), fitted{reg: reg}, opts.RiskFreeRate, opts.PeriodsPerYear)
	if err != nil {
		b.log.Warn().Err(err).Msg("Skipping Treynor ratio")
		return report, nil
	}
	report.Metrics = append(report.Metrics, MetricRow{Name: "Treynor ratio", Value: treynor, Detail: ratioDetail})

	return report, nil
}

// fitted serves an already fitted regression to risk.Treynor.
type fitted struct {
	reg *factors.Regression
}

func (f fitted) Regress(context.Context, risk.ReturnSeries) (risk.Coefficients, error) {
	return f.reg, nil
}
