package risk

import (
	"math"
	"time"
)

// SeriesPayload is the JSON form of a ReturnSeries. A null value is a
// missing observation.
type SeriesPayload struct {
	Name   string     `json:"name"`
	Dates  []string   `json:"dates,omitempty"`
	Values []*float64 `json:"values"`
}

// TablePayload is the JSON form of a ReturnTable, one column per asset.
type TablePayload struct {
	Assets  []string     `json:"assets"`
	Dates   []string     `json:"dates,omitempty"`
	Columns [][]*float64 `json:"columns"`
}

// InputPayload is the JSON form of Input: exactly one of Series or Table.
type InputPayload struct {
	Series  *SeriesPayload `json:"series,omitempty"`
	Table   *TablePayload  `json:"table,omitempty"`
	Weights []float64      `json:"weights,omitempty"`
}

// Input converts the payload into an Input, parsing DateLayout dates.
func (p InputPayload) Input() (Input, error) {
	const op = "decode input"

	switch {
	case p.Series != nil && p.Table != nil:
		return Input{}, newError(KindTypeMismatch, op, "input must contain either series or table, not both")

	case p.Series != nil:
		if len(p.Weights) > 0 {
			return Input{}, newError(KindTypeMismatch, op, "weights only apply to a table")
		}
		dates, err := parseDates(op, p.Series.Dates)
		if err != nil {
			return Input{}, err
		}
		if len(dates) > 0 && len(dates) != len(p.Series.Values) {
			return Input{}, newError(KindDimensionMismatch, op,
				"series has %d dates for %d values", len(dates), len(p.Series.Values))
		}
		return FromSeries(ReturnSeries{
			Name:   p.Series.Name,
			Dates:  dates,
			Values: unwrap(p.Series.Values),
		}), nil

	case p.Table != nil:
		dates, err := parseDates(op, p.Table.Dates)
		if err != nil {
			return Input{}, err
		}
		if len(p.Table.Assets) > 0 && len(p.Table.Assets) != len(p.Table.Columns) {
			return Input{}, newError(KindDimensionMismatch, op,
				"table has %d asset names for %d columns", len(p.Table.Assets), len(p.Table.Columns))
		}
		cols := make([][]float64, len(p.Table.Columns))
		for j, col := range p.Table.Columns {
			cols[j] = unwrap(col)
		}
		return FromTable(ReturnTable{Assets: p.Table.Assets, Dates: dates, Columns: cols}, p.Weights), nil

	default:
		return Input{}, newError(KindTypeMismatch, op, "input must contain a series or a table")
	}
}

func parseDates(op string, raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, len(raw))
	for i, s := range raw {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, newError(KindTypeMismatch, op, "date %d (%q) is not YYYY-MM-DD", i, s)
		}
		dates[i] = d
	}
	return dates, nil
}

func unwrap(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}
