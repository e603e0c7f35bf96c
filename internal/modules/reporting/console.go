package reporting

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
)

// WriteConsole renders the summary and, when present, the factor loadings as
// text tables.
func WriteConsole(w io.Writer, report *Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", report.Title, report.GeneratedAt.Format("2006-01-02 15:04 MST")))
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Metric", "Value", "Detail"})
	for _, m := range report.Metrics {
		t.AppendRow(table.Row{m.Name, formatNumber(m.Value), m.Detail})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignLeft},
	})
	t.Render()

	if report.Loadings == nil {
		return
	}
	fmt.Fprintln(w)

	reg := report.Loadings
	lt := table.NewWriter()
	lt.SetOutputMirror(w)
	lt.SetTitle(fmt.Sprintf("Factor loadings (n=%d, R² %.3f, adj. R² %.3f)", reg.NObs, reg.RSquared, reg.AdjRSquared))
	lt.SetStyle(table.StyleRounded)
	lt.AppendHeader(table.Row{"Factor", "Coef", "Std err", "t", "p"})
	for _, name := range loadingNames(reg) {
		lt.AppendRow(table.Row{
			name,
			formatNumber(reg.Params[name]),
			formatNumber(reg.StdErrors[name]),
			formatNumber(reg.TValues[name]),
			formatNumber(reg.PValues[name]),
		})
	}
	lt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	lt.Render()

	in := factors.Interpret(reg)
	fmt.Fprintf(w, "Fit: %s. Market exposure: %s. Alpha: %s (%s).\n", in.Fit, in.Market, in.Alpha, in.AlphaVerdict)
}

// loadingNames lists coefficients with the intercept first.
func loadingNames(reg *factors.Regression) []string {
	if len(reg.Names) > 0 {
		return reg.Names
	}
	return append([]string{factors.Const}, factors.FactorNames...)
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.6f", v)
}
