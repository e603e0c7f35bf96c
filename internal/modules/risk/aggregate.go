package risk

import (
	"math"
	"time"
)

// PortfolioName is the name given to a series aggregated from a table.
const PortfolioName = "Portfolio"

// Aggregate reduces the input to a single return series with missing values
// removed.
//
// For a table, rows where every asset is missing are dropped, weights are
// normalized by their own sum (nil means 1/n each, negative weights are kept
// as short positions), and each period becomes the weighted sum across assets.
// A missing value in an otherwise populated row contributes nothing to that
// period; callers that care should align their data before calling.
func Aggregate(in Input) (ReturnSeries, error) {
	const op = "aggregate"

	switch in.kind {
	case inputSeries:
		port := in.series.dropMissing()
		if len(port.Values) == 0 {
			return ReturnSeries{}, newError(KindEmptyInput, op, "return series is empty after cleaning")
		}
		return port, nil

	case inputTable:
		return aggregateTable(in.table, in.weights)

	default:
		return ReturnSeries{}, newError(KindTypeMismatch, op, "returns must be a series or a table")
	}
}

func aggregateTable(t ReturnTable, weights []float64) (ReturnSeries, error) {
	const op = "aggregate"

	n := len(t.Columns)
	rows := t.Rows()
	for j, col := range t.Columns {
		if len(col) != rows {
			return ReturnSeries{}, newError(KindDimensionMismatch, op,
				"column %d has %d rows, expected %d", j, len(col), rows)
		}
	}
	if len(t.Dates) > 0 && len(t.Dates) != rows {
		return ReturnSeries{}, newError(KindDimensionMismatch, op,
			"table has %d dates for %d rows", len(t.Dates), rows)
	}

	kept := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < n; j++ {
			if !math.IsNaN(t.Columns[j][i]) {
				kept = append(kept, i)
				break
			}
		}
	}
	if len(kept) == 0 {
		return ReturnSeries{}, newError(KindEmptyInput, op, "return table contains no data")
	}

	w, err := NormalizeWeights(weights, n)
	if err != nil {
		return ReturnSeries{}, err
	}

	port := ReturnSeries{Name: PortfolioName, Values: make([]float64, 0, len(kept))}
	withDates := len(t.Dates) == rows
	if withDates {
		port.Dates = make([]time.Time, 0, len(kept))
	}

	for _, i := range kept {
		sum := 0.0
		for j := 0; j < n; j++ {
			v := t.Columns[j][i]
			if math.IsNaN(v) {
				continue
			}
			sum += v * w[j]
		}
		if math.IsNaN(sum) {
			continue
		}
		port.Values = append(port.Values, sum)
		if withDates {
			port.Dates = append(port.Dates, t.Dates[i])
		}
	}

	if len(port.Values) == 0 {
		return ReturnSeries{}, newError(KindEmptyInput, op, "portfolio return series is empty after cleaning")
	}
	return port, nil
}

// NormalizeWeights validates a weight vector against n assets and scales it
// to sum to 1. A nil vector yields equal weights.
func NormalizeWeights(weights []float64, n int) ([]float64, error) {
	const op = "aggregate"

	if weights == nil {
		w := make([]float64, n)
		for j := range w {
			w[j] = 1.0 / float64(n)
		}
		return w, nil
	}

	if len(weights) != n {
		return nil, newError(KindDimensionMismatch, op, "weights length %d != number of columns %d", len(weights), n)
	}

	total := 0.0
	for _, v := range weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, newError(KindInvalidParameter, op, "weights must be finite")
		}
		total += v
	}
	if total == 0 {
		return nil, newError(KindInvalidParameter, op, "weights sum to zero and cannot be normalized")
	}

	w := make([]float64, n)
	for j, v := range weights {
		w[j] = v / total
	}
	return w, nil
}
