// Package reports renders sales data as a printable PDF and as a bar chart.
package reports

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-pdf/fpdf"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/utils"
)

var ErrNoData = errors.New("no data to render")

var methodLabels = map[string]string{
	"cash":   "Dinheiro",
	"credit": "Crédito",
	"debit":  "Débito",
	"pix":    "Pix",
}

// SalesPDF writes an A4 sales summary for the period.
func SalesPDF(w io.Writer, restaurant string, rep gateway.SalesReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Relatório de vendas"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(restaurant), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	period := fmt.Sprintf("Período: %s a %s", rep.Start.Format("02/01/2006"), rep.End.Format("02/01/2006"))
	pdf.CellFormat(0, 7, tr(period), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	header := func(cols ...string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		widths := []float64{70, 50, 50}
		for i, c := range cols {
			pdf.CellFormat(widths[i], 8, tr(c), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 11)
	}

	header("Dia", "Vendas", "Total")
	for _, d := range rep.ByDay {
		pdf.CellFormat(70, 7, d.Day, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, fmt.Sprint(d.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, tr(utils.FormatCurrencyBRL(d.Total)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	header("Forma de pagamento", "", "Total")
	methods := make([]string, 0, len(rep.ByMethod))
	for m := range rep.ByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	for _, m := range methods {
		label := methodLabels[m]
		if label == "" {
			label = m
		}
		pdf.CellFormat(70, 7, tr(label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, "", "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, tr(utils.FormatCurrencyBRL(rep.ByMethod[m])), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("Total: %s em %d vendas", utils.FormatCurrencyBRL(rep.Total), rep.Count)), "", 1, "R", false, 0, "")

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

// SalesChartPNG draws one bar per day.
func SalesChartPNG(w io.Writer, days []gateway.DayTotal) error {
	if len(days) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(days))
	top := 0.0
	for _, d := range days {
		label := d.Day
		if len(label) == len("2006-01-02") {
			label = label[8:10] + "/" + label[5:7]
		}
		bars = append(bars, chart.Value{Label: label, Value: d.Total})
		top = math.Max(top, d.Total)
	}
	if top == 0 {
		top = 1
	}

	graph := chart.BarChart{
		Title:      "Vendas por dia",
		Height:     400,
		Width:      int(math.Max(600, float64(len(days)*60))),
		BarWidth:   40,
		BarSpacing: 20,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string { return utils.FormatCurrencyBRL(v.(float64)) },
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}
