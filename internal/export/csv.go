// Package export writes enriched rows as flat CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

// Header lists the exported columns in order.
func Header() []string {
	return []string{
		"name", "category", "stock", "monthly_sales", "reorder_level", "unit_cost",
		"annual_sales", "cogs", "inventory_value", "inventory_turnover", "days_of_supply",
		"eoq", "revenue_impact", "safety_stock", "reorder_point",
		"abc_class", "stock_status", "priority_score",
	}
}

// Record renders one row in Header order.
func Record(r analysis.EnrichedRow) []string {
	return []string{
		r.Name,
		r.Category,
		formatFloat(r.Stock),
		formatFloat(r.MonthlySales),
		formatFloat(r.ReorderLevel),
		formatFloat(r.UnitCost),
		formatFloat(r.AnnualSales),
		formatFloat(r.COGS),
		formatFloat(r.InventoryValue),
		formatFloat(r.InventoryTurnover),
		formatFloat(r.DaysOfSupply),
		formatFloat(r.EOQ),
		formatFloat(r.RevenueImpact),
		formatFloat(r.SafetyStock),
		formatFloat(r.ReorderPoint),
		string(r.ABCClass),
		string(r.StockStatus),
		formatFloat(r.PriorityScore),
	}
}

// WriteCSV writes a header line followed by every row.
func WriteCSV(w io.Writer, rows []analysis.EnrichedRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(Record(r)); err != nil {
			return fmt.Errorf("write row %d: %w", r.SourceIndex, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
