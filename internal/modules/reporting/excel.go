package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	loadingsSheet = "Factor Loadings"
)

type excelStyles struct {
	header int
	number int
	text   int
}

// WriteXLSX writes the report as a workbook with a Summary sheet and, when
// factor loadings are present, a Factor Loadings sheet.
func WriteXLSX(path string, report *Report) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	styles, err := newExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeSummarySheet(fx, report, styles); err != nil {
		return err
	}
	if report.Loadings != nil {
		if err := writeLoadingsSheet(fx, report, styles); err != nil {
			return err
		}
	}

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func newExcelStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, fmt.Errorf("failed to create header style: %w", err)
	}

	numFmt := "0.000000"
	styles.number, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return styles, fmt.Errorf("failed to create number style: %w", err)
	}

	styles.text, err = fx.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left"},
	})
	if err != nil {
		return styles, fmt.Errorf("failed to create text style: %w", err)
	}
	return styles, nil
}

func writeSummarySheet(fx *excelize.File, report *Report, styles excelStyles) error {
	sheet := summarySheet

	if err := fx.SetCellValue(sheet, "A1", report.Title); err != nil {
		return err
	}
	if err := fx.SetCellValue(sheet, "A2", "Generated"); err != nil {
		return err
	}
	if err := fx.SetCellValue(sheet, "B2", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")); err != nil {
		return err
	}

	if err := fx.SetSheetRow(sheet, "A4", &[]interface{}{"Metric", "Value", "Detail"}); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A4", "C4", styles.header); err != nil {
		return err
	}

	for i, m := range report.Metrics {
		row := 5 + i
		cells := []interface{}{m.Name, cellValue(m.Value), m.Detail}
		if err := fx.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), styles.number); err != nil {
			return err
		}
	}

	if err := fx.SetColWidth(sheet, "A", "A", 28); err != nil {
		return err
	}
	if err := fx.SetColWidth(sheet, "B", "B", 14); err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "C", "C", 60)
}

func writeLoadingsSheet(fx *excelize.File, report *Report, styles excelStyles) error {
	sheet := loadingsSheet
	if _, err := fx.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	reg := report.Loadings
	if err := fx.SetSheetRow(sheet, "A1", &[]interface{}{"Factor", "Coefficient", "Std error", "t", "p"}); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "E1", styles.header); err != nil {
		return err
	}

	names := loadingNames(reg)
	for i, name := range names {
		row := 2 + i
		cells := []interface{}{
			name,
			cellValue(reg.Params[name]),
			cellValue(reg.StdErrors[name]),
			cellValue(reg.TValues[name]),
			cellValue(reg.PValues[name]),
		}
		if err := fx.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("E%d", row), styles.number); err != nil {
			return err
		}
	}

	stats := 3 + len(names)
	rows := [][]interface{}{
		{"Observations", reg.NObs},
		{"R²", cellValue(reg.RSquared)},
		{"Adj. R²", cellValue(reg.AdjRSquared)},
	}
	for i, cells := range rows {
		if err := fx.SetSheetRow(sheet, fmt.Sprintf("A%d", stats+i), &cells); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, fmt.Sprintf("A%d", stats), fmt.Sprintf("A%d", stats+len(rows)-1), styles.text); err != nil {
		return err
	}

	return fx.SetColWidth(sheet, "A", "E", 14)
}

// cellValue keeps non-finite statistics readable; excelize cannot store them.
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatNumber(v)
	}
	return v
}
