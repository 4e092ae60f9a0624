package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

func TestWriteCSV(t *testing.T) {
	rows := []analysis.EnrichedRow{
		{
			NormalizedRow: analysis.NormalizedRow{Name: "Widget, large", Category: "Tools", Stock: 12, MonthlySales: 30, UnitCost: 2.5},
			DaysOfSupply:  12,
			ABCClass:      analysis.ClassA,
			StockStatus:   analysis.StatusLow,
			PriorityScore: 71.25,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Header(), records[0])
	assert.Len(t, records[1], len(Header()))
	assert.Equal(t, "Widget, large", records[1][0])
	assert.Equal(t, "2.5", records[1][5])
	assert.Equal(t, "A", records[1][15])
	assert.Equal(t, "LOW", records[1][16])
	assert.Equal(t, "71.25", records[1][17])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "name,category,stock,monthly_sales,reorder_level,unit_cost,annual_sales,cogs,inventory_value,inventory_turnover,days_of_supply,eoq,revenue_impact,safety_stock,reorder_point,abc_class,stock_status,priority_score\n", buf.String())
}
