package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/gateway"
)

func sampleReport() gateway.SalesReport {
	now := time.Now()
	return gateway.SalesReport{
		Start: now.AddDate(0, 0, -1),
		End:   now,
		Total: 55,
		Count: 2,
		ByDay: []gateway.DayTotal{
			{Day: now.AddDate(0, 0, -1).Format("2006-01-02"), Total: 30, Count: 1},
			{Day: now.Format("2006-01-02"), Total: 25, Count: 1},
		},
		ByMethod: map[string]float64{"cash": 30, "pix": 25},
	}
}

func TestSalesPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SalesPDF(&buf, "Bar do Zé", sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSalesChartPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SalesChartPNG(&buf, sampleReport().ByDay))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	require.NoError(t, SalesChartPNG(&buf, []gateway.DayTotal{{Day: "2026-10-17"}}), "a day without sales still renders")

	assert.ErrorIs(t, SalesChartPNG(&buf, nil), ErrNoData)
}
