package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(name string, stock, sales, reorder, cost float64) NormalizedRow {
	return NormalizedRow{Name: name, Category: "General", Stock: stock, MonthlySales: sales, ReorderLevel: reorder, UnitCost: cost}
}

func TestMetricsEngine_DerivedFields(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	rows := e.Enrich([]NormalizedRow{normalized("Widget", 100, 50, 10, 4)})
	require.Len(t, rows, 1)
	r := rows[0]

	assert.Equal(t, 600.0, r.AnnualSales)
	assert.Equal(t, 2400.0, r.COGS)
	assert.Equal(t, 400.0, r.InventoryValue)
	assert.Equal(t, 6.0, r.InventoryTurnover)
	assert.Equal(t, 60.0, r.DaysOfSupply)
	assert.InDelta(t, math.Sqrt(2*600*50/1.0), r.EOQ, 1e-9)
	assert.Equal(t, 2400.0, r.RevenueImpact)
	assert.Equal(t, 75.0, r.SafetyStock)
	assert.InDelta(t, 50.0/30*14+75, r.ReorderPoint, 1e-9)
	assert.Equal(t, StatusHealthy, r.StockStatus)
	// a lone row carries 100% of revenue, past the B threshold
	assert.Equal(t, ClassC, r.ABCClass)
	// (100-60)*0.4 + 100*0.3 + 0
	assert.InDelta(t, 46.0, r.PriorityScore, 1e-9)
}

func TestMetricsEngine_EOQUsesHoldingFloor(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	rows := e.Enrich([]NormalizedRow{
		normalized("cheap", 10, 10, 0, 2),
		normalized("pricey", 10, 10, 0, 40),
	})
	// 2 * 0.25 = 0.5 is floored to 1
	assert.InDelta(t, math.Sqrt(2*120*50/1.0), rows[0].EOQ, 1e-9)
	assert.InDelta(t, math.Sqrt(2*120*50/10.0), rows[1].EOQ, 1e-9)
}

func TestMetricsEngine_ZeroSalesAndValue(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	rows := e.Enrich([]NormalizedRow{normalized("idle", 40, 0, 0, 0)})
	r := rows[0]

	assert.Equal(t, 365.0, r.DaysOfSupply)
	assert.Equal(t, 0.0, r.InventoryTurnover)
	assert.Equal(t, 0.0, r.EOQ)
	assert.Equal(t, StatusExcess, r.StockStatus)
	assert.Equal(t, ClassC, r.ABCClass)
	assert.False(t, math.IsNaN(r.PriorityScore))
}

func TestMetricsEngine_StatusBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		stock   float64
		sales   float64
		reorder float64
		want    StockStatus
	}{
		{name: "7.5 days is low", stock: 5, sales: 20, reorder: 4, want: StatusLow},
		{name: "exactly 7 days is critical", stock: 14, sales: 60, reorder: 0, want: StatusCritical},
		{name: "below half reorder level is critical", stock: 40, sales: 10, reorder: 100, want: StatusCritical},
		{name: "below reorder level is low", stock: 40, sales: 10, reorder: 50, want: StatusLow},
		{name: "exactly 15 days is low", stock: 50, sales: 100, reorder: 0, want: StatusLow},
		{name: "45 days is normal", stock: 150, sales: 100, reorder: 0, want: StatusNormal},
		{name: "90 days is healthy", stock: 300, sales: 100, reorder: 0, want: StatusHealthy},
		{name: "over 90 days is excess", stock: 301, sales: 100, reorder: 0, want: StatusExcess},
	}

	e := NewMetricsEngine(DefaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := e.Enrich([]NormalizedRow{normalized("x", tt.stock, tt.sales, tt.reorder, 1)})
			assert.Equal(t, tt.want, rows[0].StockStatus)
		})
	}
}

func TestMetricsEngine_StatusIsTotal(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	var input []NormalizedRow
	for stock := 0.0; stock <= 400; stock += 13 {
		for sales := 0.0; sales <= 120; sales += 7 {
			input = append(input, normalized("x", stock, sales, sales*0.2, 3))
		}
	}
	valid := map[StockStatus]bool{}
	for _, s := range Statuses {
		valid[s] = true
	}
	for _, r := range e.Enrich(input) {
		assert.True(t, valid[r.StockStatus], "unexpected status %q", r.StockStatus)
		assert.GreaterOrEqual(t, r.DaysOfSupply, 0.0)
	}
}

func TestMetricsEngine_ABCClassification(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	// revenue impact 8400 / 2400 / 1200 is a 70/20/10 split
	rows := e.Enrich([]NormalizedRow{
		normalized("small", 10, 10, 0, 10),
		normalized("big", 10, 70, 0, 10),
		normalized("mid", 10, 20, 0, 10),
	})

	assert.Equal(t, ClassC, rows[0].ABCClass)
	assert.Equal(t, ClassA, rows[1].ABCClass)
	assert.Equal(t, ClassB, rows[2].ABCClass)
}

func TestMetricsEngine_ABCPartition(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	var input []NormalizedRow
	for i := 1; i <= 40; i++ {
		input = append(input, normalized("x", 10, float64(i*i%37+1), 0, float64(i%5+1)))
	}
	rows := e.Enrich(input)

	counts := map[ABCClass]int{}
	for _, r := range rows {
		counts[r.ABCClass]++
	}
	assert.Equal(t, len(rows), counts[ClassA]+counts[ClassB]+counts[ClassC])

	// classes never improve as revenue impact falls
	ranked := append([]EnrichedRow(nil), rows...)
	rank := map[ABCClass]int{ClassA: 0, ClassB: 1, ClassC: 2}
	for i := range ranked {
		for j := range ranked {
			if ranked[i].RevenueImpact > ranked[j].RevenueImpact {
				assert.LessOrEqual(t, rank[ranked[i].ABCClass], rank[ranked[j].ABCClass])
			}
		}
	}
}

func TestMetricsEngine_ABCFallsBackToSalesWithoutCost(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	rows := e.Enrich([]NormalizedRow{
		normalized("a", 10, 70, 0, 0),
		normalized("b", 10, 20, 0, 0),
		normalized("c", 10, 10, 0, 0),
	})
	assert.Equal(t, ClassA, rows[0].ABCClass)
	assert.Equal(t, ClassB, rows[1].ABCClass)
	assert.Equal(t, ClassC, rows[2].ABCClass)
}

func TestMetricsEngine_PriorityCriticalBoost(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	rows := e.Enrich([]NormalizedRow{
		normalized("critical", 2, 30, 0, 1),
		normalized("slow", 100, 10, 0, 1),
	})
	require.Equal(t, StatusCritical, rows[0].StockStatus)
	require.Equal(t, ClassB, rows[0].ABCClass)
	// (100-2)*0.4 + 100*0.3 + 0 + 30
	assert.InDelta(t, 99.2, rows[0].PriorityScore, 1e-9)
	assert.Greater(t, rows[0].PriorityScore, rows[1].PriorityScore)
}

func TestMetricsEngine_PriorityClassBonus(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	base := EnrichedRow{NormalizedRow: normalized("x", 50, 30, 0, 1), DaysOfSupply: 50}

	scores := make(map[ABCClass]float64)
	for _, class := range []ABCClass{ClassA, ClassB, ClassC} {
		r := base
		r.ABCClass = class
		scores[class] = e.priority(r, 30)
	}

	// (100-50)*0.4 + 100*0.3
	assert.InDelta(t, 50.0, scores[ClassC], 1e-9)
	assert.InDelta(t, scores[ClassC]+20, scores[ClassA], 1e-9)
	assert.InDelta(t, scores[ClassC], scores[ClassB], 1e-9, "only class A earns a bonus")
}

func TestMetricsEngine_EnrichEmpty(t *testing.T) {
	e := NewMetricsEngine(DefaultParams())
	assert.Empty(t, e.Enrich(nil))
}
