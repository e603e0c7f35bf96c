// Package factors implements the Fama-French five-factor model: acquisition of
// the daily research factors, an OLS fit of excess returns on those factors,
// and the market beta used by the Treynor ratio.
package factors

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
)

// Factor and column names as published in the research files.
const (
	MktRF = "Mkt-RF"
	SMB   = "SMB"
	HML   = "HML"
	RMW   = "RMW"
	CMA   = "CMA"
	RF    = "RF"
	// Const names the regression intercept (alpha).
	Const = "const"
)

// FactorNames are the regressors of the five-factor model, in column order.
var FactorNames = []string{MktRF, SMB, HML, RMW, CMA}

// columns are the values read from each data row.
var columns = []string{MktRF, SMB, HML, RMW, CMA, RF}

// dateLayout is the date format of the first column in the research files.
const dateLayout = "20060102"

// FactorRow holds one day of factor returns as fractions (published percent / 100).
type FactorRow struct {
	Date  time.Time `msgpack:"date" json:"date"`
	MktRF float64   `msgpack:"mkt_rf" json:"mkt_rf"`
	SMB   float64   `msgpack:"smb" json:"smb"`
	HML   float64   `msgpack:"hml" json:"hml"`
	RMW   float64   `msgpack:"rmw" json:"rmw"`
	CMA   float64   `msgpack:"cma" json:"cma"`
	RF    float64   `msgpack:"rf" json:"rf"`
}

// Factors returns the regressors in FactorNames order.
func (r FactorRow) Factors() []float64 {
	return []float64{r.MktRF, r.SMB, r.HML, r.RMW, r.CMA}
}

// Dataset is a parsed factor file.
type Dataset struct {
	Name      string      `msgpack:"name"`
	FetchedAt time.Time   `msgpack:"fetched_at"`
	Rows      []FactorRow `msgpack:"rows"`
}

// dateKey identifies a calendar day independent of time of day and zone.
func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// normalize puts decoded dates back in UTC, the zone they were parsed in.
func (d *Dataset) normalize() {
	for i := range d.Rows {
		d.Rows[i].Date = d.Rows[i].Date.UTC()
	}
}

// index maps calendar days to rows.
func (d *Dataset) index() map[string]FactorRow {
	m := make(map[string]FactorRow, len(d.Rows))
	for _, row := range d.Rows {
		m[dateKey(row.Date)] = row
	}
	return m
}

// Span returns the first and last dates of the dataset.
func (d *Dataset) Span() (time.Time, time.Time) {
	if len(d.Rows) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Rows[0].Date, d.Rows[len(d.Rows)-1].Date
}

// ParseCSV reads a daily five-factor research file. The description preamble
// is skipped up to the header row naming Mkt-RF; data rows are those whose
// first cell is a YYYYMMDD date, and the first non-date row after the data
// (the annual section or copyright notice) ends the table.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var cols map[string]int
	ds := &Dataset{}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read factor file: %w", err)
		}

		if cols == nil {
			cols = headerColumns(record)
			continue
		}

		date, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			if len(ds.Rows) > 0 {
				break
			}
			continue
		}

		row, err := parseRow(date, record, cols)
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, row)
	}

	if cols == nil {
		return nil, fmt.Errorf("factor file has no %s header", MktRF)
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("factor file has no data rows")
	}
	return ds, nil
}

// headerColumns returns the column index of every factor and RF if record is
// the header row, nil otherwise.
func headerColumns(record []string) map[string]int {
	cols := make(map[string]int, len(record))
	for i, cell := range record {
		cols[strings.TrimSpace(cell)] = i
	}
	for _, name := range columns {
		if _, ok := cols[name]; !ok {
			return nil
		}
	}
	return cols
}

func parseRow(date time.Time, record []string, cols map[string]int) (FactorRow, error) {
	values := make(map[string]float64, len(FactorNames)+1)
	for _, name := range columns {
		i := cols[name]
		if i >= len(record) {
			return FactorRow{}, fmt.Errorf("row %s: missing %s column", dateKey(date), name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return FactorRow{}, fmt.Errorf("row %s: invalid %s value %q: %w", dateKey(date), name, record[i], err)
		}
		values[name] = v / 100.0
	}

	return FactorRow{
		Date:  date,
		MktRF: values[MktRF],
		SMB:   values[SMB],
		HML:   values[HML],
		RMW:   values[RMW],
		CMA:   values[CMA],
		RF:    values[RF],
	}, nil
}

// ParseZip reads the first CSV file inside a zipped research file.
func ParseZip(data []byte) (*Dataset, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open factor archive: %w", err)
	}

	for _, f := range archive.File {
		ext := path.Ext(f.Name)
		if !strings.EqualFold(ext, ".csv") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		ds, err := ParseCSV(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		ds.Name = strings.TrimSuffix(path.Base(f.Name), ext)
		return ds, nil
	}

	return nil, fmt.Errorf("factor archive contains no CSV file")
}
