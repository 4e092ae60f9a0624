package analysis

import (
	"math"
	"sort"
)

// Params holds the business constants used by the metrics engine.
type Params struct {
	OrderingCost          float64 // cost per order placed
	HoldingRate           float64 // yearly holding cost as a fraction of unit cost
	MinHoldingCost        float64 // floor of the EOQ denominator
	NoSalesDaysOfSupply   float64 // days of supply reported when nothing sells
	DaysPerMonth          float64
	MonthsPerYear         float64
	LeadTimeDays          float64
	SafetyStockMultiplier float64 // months of sales kept as safety stock

	ClassAThreshold float64 // cumulative revenue share closing class A
	ClassBThreshold float64 // cumulative revenue share closing class B

	CriticalDays       float64
	LowDays            float64
	NormalDays         float64
	HealthyDays        float64
	CriticalStockRatio float64 // stock below this share of reorder level is critical

	DaysCap       float64
	UrgencyWeight float64
	SalesWeight   float64
	ClassABonus   float64
	ClassBBonus   float64
	ClassCBonus   float64
	CriticalBoost float64

	ObsoleteDays float64
}

// DefaultParams returns the standard constants.
func DefaultParams() Params {
	return Params{
		OrderingCost:          50,
		HoldingRate:           0.25,
		MinHoldingCost:        1,
		NoSalesDaysOfSupply:   365,
		DaysPerMonth:          30,
		MonthsPerYear:         12,
		LeadTimeDays:          14,
		SafetyStockMultiplier: 1.5,

		ClassAThreshold: 0.70,
		ClassBThreshold: 0.90,

		CriticalDays:       7,
		LowDays:            15,
		NormalDays:         45,
		HealthyDays:        90,
		CriticalStockRatio: 0.5,

		DaysCap:       100,
		UrgencyWeight: 0.4,
		SalesWeight:   0.3,
		ClassABonus:   20,
		ClassBBonus:   0,
		ClassCBonus:   0,
		CriticalBoost: 30,

		ObsoleteDays: 180,
	}
}

// cumulative shares are compared with this tolerance so 0.7 of a total lands in A
const abcEpsilon = 1e-9

// MetricsEngine derives every metric of a normalized table.
type MetricsEngine struct {
	params Params
}

// NewMetricsEngine creates an engine with the given constants.
func NewMetricsEngine(params Params) *MetricsEngine {
	return &MetricsEngine{params: params}
}

// Params returns the engine constants.
func (e *MetricsEngine) Params() Params {
	return e.params
}

// Enrich computes the derived columns for rows. The input is not modified and
// the output keeps the input order.
func (e *MetricsEngine) Enrich(rows []NormalizedRow) []EnrichedRow {
	p := e.params
	out := make([]EnrichedRow, len(rows))

	maxSales := 0.0
	for _, r := range rows {
		maxSales = math.Max(maxSales, r.MonthlySales)
	}

	for i, r := range rows {
		er := EnrichedRow{NormalizedRow: r}

		// 1. Annual sales
		er.AnnualSales = r.MonthlySales * p.MonthsPerYear

		// 2. Cost of goods sold and stock value
		er.COGS = er.AnnualSales * r.UnitCost
		er.InventoryValue = r.Stock * r.UnitCost

		// 3. Turnover
		if er.InventoryValue > 0 {
			er.InventoryTurnover = er.COGS / er.InventoryValue
		}

		// 4. Days of supply, with a sentinel when nothing sells
		if r.MonthlySales > 0 {
			er.DaysOfSupply = r.Stock / r.MonthlySales * p.DaysPerMonth
		} else {
			er.DaysOfSupply = p.NoSalesDaysOfSupply
		}

		// 5. Economic order quantity
		holding := math.Max(r.UnitCost*p.HoldingRate, p.MinHoldingCost)
		er.EOQ = math.Sqrt(2 * er.AnnualSales * p.OrderingCost / holding)

		// 6. Revenue impact for ABC ranking
		er.RevenueImpact = er.AnnualSales * r.UnitCost

		// 7. Safety stock and optimal reorder point
		er.SafetyStock = r.MonthlySales * p.SafetyStockMultiplier
		er.ReorderPoint = r.MonthlySales/p.DaysPerMonth*p.LeadTimeDays + er.SafetyStock

		// 8. Status
		er.StockStatus = e.status(er.DaysOfSupply, r.Stock, r.ReorderLevel)

		out[i] = er
	}

	// 9. ABC needs the whole batch
	e.classify(out)

	// 10. Priority depends on ABC and status
	for i := range out {
		out[i].PriorityScore = e.priority(out[i], maxSales)
	}

	return out
}

// status picks the first matching bucket from most to least urgent.
func (e *MetricsEngine) status(dos, stock, reorderLevel float64) StockStatus {
	p := e.params
	switch {
	case dos <= p.CriticalDays || stock < reorderLevel*p.CriticalStockRatio:
		return StatusCritical
	case dos <= p.LowDays || stock < reorderLevel:
		return StatusLow
	case dos <= p.NormalDays:
		return StatusNormal
	case dos <= p.HealthyDays:
		return StatusHealthy
	default:
		return StatusExcess
	}
}

// classify assigns ABC classes by cumulative share of revenue impact. When no
// row has revenue impact, annual sales is ranked instead; when nothing sells
// either, every row is class C.
func (e *MetricsEngine) classify(rows []EnrichedRow) {
	if len(rows) == 0 {
		return
	}

	value := func(r EnrichedRow) float64 { return r.RevenueImpact }
	total := 0.0
	for _, r := range rows {
		total += r.RevenueImpact
	}
	if total <= 0 {
		value = func(r EnrichedRow) float64 { return r.AnnualSales }
		total = 0
		for _, r := range rows {
			total += r.AnnualSales
		}
	}
	if total <= 0 {
		for i := range rows {
			rows[i].ABCClass = ClassC
		}
		return
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		if ra.RevenueImpact != rb.RevenueImpact {
			return ra.RevenueImpact > rb.RevenueImpact
		}
		if ra.AnnualSales != rb.AnnualSales {
			return ra.AnnualSales > rb.AnnualSales
		}
		return order[a] < order[b]
	})

	cumulative := 0.0
	for _, idx := range order {
		cumulative += value(rows[idx])
		share := cumulative / total
		switch {
		case share <= e.params.ClassAThreshold+abcEpsilon:
			rows[idx].ABCClass = ClassA
		case share <= e.params.ClassBThreshold+abcEpsilon:
			rows[idx].ABCClass = ClassB
		default:
			rows[idx].ABCClass = ClassC
		}
	}
}

func (e *MetricsEngine) priority(r EnrichedRow, maxSales float64) float64 {
	p := e.params

	normalizedSales := 0.0
	if maxSales > 0 {
		normalizedSales = r.MonthlySales / maxSales * 100
	}

	score := (p.DaysCap-math.Min(r.DaysOfSupply, p.DaysCap))*p.UrgencyWeight +
		normalizedSales*p.SalesWeight

	switch r.ABCClass {
	case ClassA:
		score += p.ClassABonus
	case ClassB:
		score += p.ClassBBonus
	default:
		score += p.ClassCBonus
	}
	if r.StockStatus == StatusCritical {
		score += p.CriticalBoost
	}
	return score
}
