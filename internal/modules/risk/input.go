// Package risk implements the portfolio risk engine: portfolio aggregation,
// distribution estimation, Monte Carlo path simulation, quantile-based VaR
// extraction, and the Sharpe and Treynor ratios.
//
// Everything in this package is a pure function of caller-owned data. There is
// no I/O and no shared mutable state; randomness is always an explicit
// rand.Source passed or constructed per call.
package risk

import (
	"math"
	"time"
)

// ReturnSeries is a chronological sequence of periodic fractional returns for
// one instrument or an already aggregated portfolio. NaN marks a missing
// observation. Dates is optional; when set it has one entry per value.
type ReturnSeries struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations including missing ones.
func (s ReturnSeries) Len() int {
	return len(s.Values)
}

// HasDates reports whether every observation carries a date.
func (s ReturnSeries) HasDates() bool {
	return len(s.Dates) > 0 && len(s.Dates) == len(s.Values)
}

// dropMissing returns a copy of the series without NaN observations.
func (s ReturnSeries) dropMissing() ReturnSeries {
	out := ReturnSeries{Name: s.Name, Values: make([]float64, 0, len(s.Values))}
	withDates := s.HasDates()
	if withDates {
		out.Dates = make([]time.Time, 0, len(s.Values))
	}
	for i, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		out.Values = append(out.Values, v)
		if withDates {
			out.Dates = append(out.Dates, s.Dates[i])
		}
	}
	return out
}

// ReturnTable holds the aligned return series of several assets. Columns[j]
// is the series of Assets[j]; every column has the same length, and Dates
// (optional) indexes the rows.
type ReturnTable struct {
	Assets  []string
	Dates   []time.Time
	Columns [][]float64
}

// Rows returns the number of periods in the table.
func (t ReturnTable) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Column returns the series of one asset by index.
func (t ReturnTable) Column(j int) ReturnSeries {
	s := ReturnSeries{Values: t.Columns[j]}
	if j < len(t.Assets) {
		s.Name = t.Assets[j]
	}
	if len(t.Dates) == len(t.Columns[j]) {
		s.Dates = t.Dates
	}
	return s
}

type inputKind int

const (
	inputUnknown inputKind = iota
	inputSeries
	inputTable
)

// Input is the tagged union accepted by every entry point:
// Series(ReturnSeries) | Table(ReturnTable, WeightVector?).
// Build it with FromSeries or FromTable; the zero Input is rejected with a
// TypeMismatch error.
type Input struct {
	kind    inputKind
	series  ReturnSeries
	table   ReturnTable
	weights []float64
}

// FromSeries wraps a single return series.
func FromSeries(s ReturnSeries) Input {
	return Input{kind: inputSeries, series: s}
}

// FromTable wraps a multi-asset table. weights may be nil for equal weighting;
// otherwise it needs one entry per asset column and is normalized to sum to 1.
func FromTable(t ReturnTable, weights []float64) Input {
	return Input{kind: inputTable, table: t, weights: weights}
}

// IsSeries reports whether the input is a single series.
func (in Input) IsSeries() bool { return in.kind == inputSeries }

// IsTable reports whether the input is a multi-asset table.
func (in Input) IsTable() bool { return in.kind == inputTable }
