package risk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format of return files.
const DateLayout = "2006-01-02"

// ReadTableCSV reads a returns file with a header row "date,<asset>,..." and
// one row per period. Empty cells and "NaN" are missing observations.
func ReadTableCSV(r io.Reader) (ReturnTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ReturnTable{}, newError(KindEmptyInput, "read csv", "file is empty")
	}
	if err != nil {
		return ReturnTable{}, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 {
		return ReturnTable{}, newError(KindTypeMismatch, "read csv", "header needs a date column and at least one asset")
	}

	table := ReturnTable{
		Assets:  make([]string, len(header)-1),
		Columns: make([][]float64, len(header)-1),
	}
	for j, name := range header[1:] {
		table.Assets[j] = strings.TrimSpace(name)
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ReturnTable{}, fmt.Errorf("failed to read row %d: %w", line+1, err)
		}
		line++

		date, err := time.Parse(DateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return ReturnTable{}, newError(KindTypeMismatch, "read csv", "row %d: invalid date %q", line, record[0])
		}
		table.Dates = append(table.Dates, date)

		for j := range table.Assets {
			v, err := parseCell(record[j+1])
			if err != nil {
				return ReturnTable{}, newError(KindTypeMismatch, "read csv", "row %d, column %s: %v", line, table.Assets[j], err)
			}
			table.Columns[j] = append(table.Columns[j], v)
		}
	}

	if len(table.Dates) == 0 {
		return ReturnTable{}, newError(KindEmptyInput, "read csv", "file has no data rows")
	}
	return table, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
