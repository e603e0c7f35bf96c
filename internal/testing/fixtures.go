package testing

import (
	"time"

	"github.com/tom-sims/quant-research-toolkit/internal/modules/risk"
)

// fixtureReturns are ten daily returns with mean 0.004.
var fixtureReturns = []float64{0.01, -0.02, 0.015, 0.005, -0.01, 0.02, 0.0, 0.03, -0.005, -0.005}

// NewBusinessDays returns n weekdays starting at start (inclusive if a weekday)
func NewBusinessDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := start; len(days) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

// NewReturnSeriesFixture returns a dated ten-period series for use in tests
func NewReturnSeriesFixture() risk.ReturnSeries {
	values := make([]float64, len(fixtureReturns))
	copy(values, fixtureReturns)
	return risk.ReturnSeries{
		Name:   "fixture",
		Dates:  NewBusinessDays(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), len(values)),
		Values: values,
	}
}

// NewReturnTableFixture returns a two-asset table whose equal-weight
// portfolio equals NewReturnSeriesFixture
func NewReturnTableFixture() risk.ReturnTable {
	series := NewReturnSeriesFixture()
	a := make([]float64, len(series.Values))
	b := make([]float64, len(series.Values))
	for i, v := range series.Values {
		a[i] = v + 0.01
		b[i] = v - 0.01
	}
	return risk.ReturnTable{
		Assets:  []string{"AAA", "BBB"},
		Dates:   series.Dates,
		Columns: [][]float64{a, b},
	}
}

// NewSeriesPayloadFixture returns NewReturnSeriesFixture in its JSON form
func NewSeriesPayloadFixture() risk.InputPayload {
	series := NewReturnSeriesFixture()
	p := &risk.SeriesPayload{Name: series.Name}
	for i, v := range series.Values {
		v := v
		p.Dates = append(p.Dates, series.Dates[i].Format(risk.DateLayout))
		p.Values = append(p.Values, &v)
	}
	return risk.InputPayload{Series: p}
}
