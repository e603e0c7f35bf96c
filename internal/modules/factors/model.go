package factors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
)

// DatasetSource supplies the factor dataset, typically a *Client.
type DatasetSource interface {
	Dataset(ctx context.Context) (*Dataset, error)
}

// Model fits portfolio excess returns to the five research factors.
type Model struct {
	source DatasetSource
	log    zerolog.Logger
}

// NewModel creates a new five-factor model over source
func NewModel(source DatasetSource, log zerolog.Logger) *Model {
	return &Model{
		source: source,
		log:    log.With().Str("component", "ff5_model").Logger(),
	}
}

// Fit aggregates in (weights allowed) and regresses its excess returns on the
// five factors.
func (m *Model) Fit(ctx context.Context, in risk.Input) (*Regression, error) {
	port, err := risk.Aggregate(in)
	if err != nil {
		return nil, err
	}
	return m.FitSeries(ctx, port)
}

// FitSeries inner-joins series with the factor dataset on date, subtracts the
// risk-free rate and fits excess = const + b'factors.
func (m *Model) FitSeries(ctx context.Context, series risk.ReturnSeries) (*Regression, error) {
	const op = "ff5"

	if !series.HasDates() {
		return nil, &risk.Error{Kind: risk.KindInvalidParameter, Op: op,
			Msg: "returns need dates to align with factor data"}
	}

	ds, err := m.source.Dataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load factor dataset: %w", err)
	}

	y, x := align(series, ds)
	if len(y) == 0 {
		first, last := ds.Span()
		return nil, &risk.Error{Kind: risk.KindEmptyInput, Op: op,
			Msg: fmt.Sprintf("no overlapping dates between returns and factor data (%s to %s)",
				first.Format("2006-01-02"), last.Format("2006-01-02"))}
	}

	reg, err := OLS(y, x, FactorNames)
	if err != nil {
		return nil, err
	}

	m.log.Debug().
		Str("series", series.Name).
		Int("observations", reg.NObs).
		Float64("beta", reg.Params[MktRF]).
		Float64("adj_r_squared", reg.AdjRSquared).
		Msg("Fitted five-factor model")

	return reg, nil
}

// Regress implements risk.Regressor
func (m *Model) Regress(ctx context.Context, series risk.ReturnSeries) (risk.Coefficients, error) {
	reg, err := m.FitSeries(ctx, series)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// align returns excess returns and factor rows for dates present in both.
func align(series risk.ReturnSeries, ds *Dataset) ([]float64, [][]float64) {
	rows := ds.index()

	y := make([]float64, 0, len(series.Values))
	x := make([][]float64, 0, len(series.Values))
	for i, date := range series.Dates {
		row, ok := rows[dateKey(date)]
		if !ok {
			continue
		}
		y = append(y, series.Values[i]-row.RF)
		x = append(x, row.Factors())
	}
	return y, x
}
