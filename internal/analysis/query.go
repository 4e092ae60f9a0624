package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	defaultMoversLimit  = 10
	reorderWindowDays   = 30
	excessValueAlert    = 10000
	slowTurnoverCeiling = 1
	minSalesCoverMonths = 2
)

// ABCSummary aggregates the rows of one ABC class.
type ABCSummary struct {
	Count          int     `json:"count"`
	InventoryValue float64 `json:"inventoryValue"`
}

// KPIs are the headline aggregates of an enriched table.
type KPIs struct {
	TotalProducts   int     `json:"totalProducts"`
	CriticalAlerts  int     `json:"criticalAlerts"`
	AverageTurnover float64 `json:"averageTurnover"`
	InventoryHealth float64 `json:"inventoryHealth"`
	LowStockItems   int     `json:"lowStockItems"`
	HealthyItems    int     `json:"healthyItems"`

	NormalItems         int     `json:"normalItems"`
	ExcessItems         int     `json:"excessItems"`
	TotalInventoryValue float64 `json:"totalInventoryValue"`
	TotalAnnualSales    float64 `json:"totalAnnualSales"`
	InventoryROI        float64 `json:"inventoryROI"`
	WeightedTurnover    float64 `json:"weightedTurnover"`
	AvgDaysSupply       float64 `json:"avgDaysSupply"`
	ServiceLevel        float64 `json:"serviceLevel"`
	ObsoleteItems       int     `json:"obsoleteItems"`
	ObsoleteValue       float64 `json:"obsoleteValue"`
	StockoutRisk        float64 `json:"stockoutRisk"`

	ABCBreakdown map[ABCClass]ABCSummary `json:"abcBreakdown"`
}

// KPIs aggregates rows. An empty table yields zeros.
func (e *MetricsEngine) KPIs(rows []EnrichedRow) KPIs {
	k := KPIs{
		TotalProducts: len(rows),
		ABCBreakdown:  make(map[ABCClass]ABCSummary, len(ABCClasses)),
	}
	for _, c := range ABCClasses {
		k.ABCBreakdown[c] = ABCSummary{}
	}
	if len(rows) == 0 {
		return k
	}

	var turnoverSum, weighted float64
	days := make([]float64, 0, len(rows))
	for _, r := range rows {
		switch r.StockStatus {
		case StatusCritical:
			k.CriticalAlerts++
		case StatusLow:
			k.LowStockItems++
		case StatusNormal:
			k.NormalItems++
		case StatusHealthy:
			k.HealthyItems++
		case StatusExcess:
			k.ExcessItems++
		}
		turnoverSum += r.InventoryTurnover
		weighted += r.InventoryTurnover * r.InventoryValue
		k.TotalInventoryValue += r.InventoryValue
		k.TotalAnnualSales += r.AnnualSales
		days = append(days, r.DaysOfSupply)
		if r.DaysOfSupply > e.params.ObsoleteDays {
			k.ObsoleteItems++
			k.ObsoleteValue += r.InventoryValue
		}
		s := k.ABCBreakdown[r.ABCClass]
		s.Count++
		s.InventoryValue += r.InventoryValue
		k.ABCBreakdown[r.ABCClass] = s
	}

	n := float64(len(rows))
	k.AverageTurnover = roundFloat(turnoverSum/n, 2)
	k.InventoryHealth = roundFloat(float64(k.NormalItems+k.HealthyItems)/n*100, 1)
	k.InventoryROI = roundFloat(safeDiv(k.TotalAnnualSales, k.TotalInventoryValue)*100, 1)
	k.WeightedTurnover = roundFloat(safeDiv(weighted, k.TotalInventoryValue), 2)
	k.AvgDaysSupply = roundFloat(median(days), 1)
	k.ServiceLevel = roundFloat(float64(len(rows)-k.CriticalAlerts)/n*100, 1)
	k.StockoutRisk = roundFloat(float64(k.CriticalAlerts)/n*100, 1)
	k.TotalInventoryValue = roundFloat(k.TotalInventoryValue, 2)
	k.TotalAnnualSales = roundFloat(k.TotalAnnualSales, 2)
	k.ObsoleteValue = roundFloat(k.ObsoleteValue, 2)
	for c, s := range k.ABCBreakdown {
		s.InventoryValue = roundFloat(s.InventoryValue, 2)
		k.ABCBreakdown[c] = s
	}
	return k
}

// rankByPriority returns a copy of rows ordered by priority score descending,
// then days of supply ascending, then source order.
func rankByPriority(rows []EnrichedRow) []EnrichedRow {
	ranked := append([]EnrichedRow(nil), rows...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PriorityScore != ranked[j].PriorityScore {
			return ranked[i].PriorityScore > ranked[j].PriorityScore
		}
		return ranked[i].DaysOfSupply < ranked[j].DaysOfSupply
	})
	return ranked
}

func limitRows(rows []EnrichedRow, limit int) []EnrichedRow {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// PriorityReorders returns up to limit rows ranked by priority. A non-positive
// limit returns every row.
func (e *MetricsEngine) PriorityReorders(rows []EnrichedRow, limit int) []EnrichedRow {
	return limitRows(rankByPriority(rows), limit)
}

// Urgency grades how soon a reorder must be placed.
type Urgency string

const (
	UrgencyCritical Urgency = "CRITICAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyLow      Urgency = "LOW"
)

// ReorderRecommendation is one line of a reorder plan.
type ReorderRecommendation struct {
	Product        string      `json:"product"`
	Category       string      `json:"category"`
	CurrentStock   float64     `json:"currentStock"`
	ReorderPoint   float64     `json:"reorderPoint"`
	SuggestedOrder int         `json:"suggestedOrder"`
	DaysOfSupply   float64     `json:"daysOfSupply"`
	Urgency        Urgency     `json:"urgency"`
	PriorityScore  float64     `json:"priorityScore"`
	MonthlySales   float64     `json:"monthlySales"`
	TurnoverRate   float64     `json:"turnoverRate"`
	ABCClass       ABCClass    `json:"abcClass"`
	EstimatedCost  float64     `json:"estimatedCost"`
	Status         StockStatus `json:"status"`
}

// ReorderPlan lists the rows that need restocking with a suggested quantity.
// Candidates are CRITICAL or LOW rows and rows with at most 30 days of supply.
func (e *MetricsEngine) ReorderPlan(rows []EnrichedRow, limit int) []ReorderRecommendation {
	candidates := make([]EnrichedRow, 0, len(rows))
	for _, r := range rows {
		if r.StockStatus == StatusCritical || r.StockStatus == StatusLow || r.DaysOfSupply <= reorderWindowDays {
			candidates = append(candidates, r)
		}
	}

	ranked := limitRows(rankByPriority(candidates), limit)
	plan := make([]ReorderRecommendation, 0, len(ranked))
	for _, r := range ranked {
		qty := int(math.Max(
			math.Floor(r.EOQ),
			math.Max(math.Floor(r.ReorderPoint-r.Stock), math.Floor(r.MonthlySales*minSalesCoverMonths)),
		))
		if qty < 0 {
			qty = 0
		}
		plan = append(plan, ReorderRecommendation{
			Product:        r.Name,
			Category:       r.Category,
			CurrentStock:   r.Stock,
			ReorderPoint:   roundFloat(r.ReorderPoint, 1),
			SuggestedOrder: qty,
			DaysOfSupply:   roundFloat(r.DaysOfSupply, 1),
			Urgency:        e.urgency(r.DaysOfSupply),
			PriorityScore:  roundFloat(r.PriorityScore, 1),
			MonthlySales:   r.MonthlySales,
			TurnoverRate:   roundFloat(r.InventoryTurnover, 2),
			ABCClass:       r.ABCClass,
			EstimatedCost:  roundFloat(float64(qty)*r.UnitCost, 2),
			Status:         r.StockStatus,
		})
	}
	return plan
}

func (e *MetricsEngine) urgency(dos float64) Urgency {
	switch {
	case dos <= e.params.CriticalDays:
		return UrgencyCritical
	case dos <= e.params.LowDays:
		return UrgencyHigh
	case dos <= reorderWindowDays:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// CategoryStats aggregates the rows of one category.
type CategoryStats struct {
	Category       string  `json:"category"`
	TotalSales     float64 `json:"totalSales"`
	AvgSales       float64 `json:"avgSales"`
	ProductCount   int     `json:"productCount"`
	AvgTurnover    float64 `json:"avgTurnover"`
	InventoryValue float64 `json:"inventoryValue"`
	AvgDaysSupply  float64 `json:"avgDaysSupply"`
	TotalStock     float64 `json:"totalStock"`
	CriticalItems  int     `json:"criticalItems"`
}

// CategoryPerformance groups rows by category.
func (e *MetricsEngine) CategoryPerformance(rows []EnrichedRow) map[string]CategoryStats {
	type acc struct {
		stats    CategoryStats
		turnover float64
		days     []float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		g, ok := groups[r.Category]
		if !ok {
			g = &acc{stats: CategoryStats{Category: r.Category}}
			groups[r.Category] = g
		}
		g.stats.ProductCount++
		g.stats.TotalSales += r.MonthlySales
		g.stats.InventoryValue += r.InventoryValue
		g.stats.TotalStock += r.Stock
		g.turnover += r.InventoryTurnover
		g.days = append(g.days, r.DaysOfSupply)
		if r.StockStatus == StatusCritical {
			g.stats.CriticalItems++
		}
	}

	out := make(map[string]CategoryStats, len(groups))
	for name, g := range groups {
		n := float64(g.stats.ProductCount)
		s := g.stats
		s.AvgSales = roundFloat(s.TotalSales/n, 2)
		s.AvgTurnover = roundFloat(g.turnover/n, 2)
		s.AvgDaysSupply = roundFloat(median(g.days), 2)
		s.TotalSales = roundFloat(s.TotalSales, 2)
		s.InventoryValue = roundFloat(s.InventoryValue, 2)
		s.TotalStock = roundFloat(s.TotalStock, 2)
		out[name] = s
	}
	return out
}

// RankCategories returns category stats ordered by total sales descending, then name.
func (e *MetricsEngine) RankCategories(rows []EnrichedRow) []CategoryStats {
	perf := e.CategoryPerformance(rows)
	ranked := make([]CategoryStats, 0, len(perf))
	for _, s := range perf {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalSales != ranked[j].TotalSales {
			return ranked[i].TotalSales > ranked[j].TotalSales
		}
		return ranked[i].Category < ranked[j].Category
	})
	return ranked
}

// Movers holds the fastest and slowest selling rows.
type Movers struct {
	Fast []EnrichedRow `json:"fastMovers"`
	Slow []EnrichedRow `json:"slowMovers"`
}

// FastSlowMovers returns the top n rows by monthly sales descending and
// ascending. Ties keep source order. A non-positive n uses 10.
func (e *MetricsEngine) FastSlowMovers(rows []EnrichedRow, n int) Movers {
	if n <= 0 {
		n = defaultMoversLimit
	}
	fast := append([]EnrichedRow(nil), rows...)
	sort.SliceStable(fast, func(i, j int) bool { return fast[i].MonthlySales > fast[j].MonthlySales })
	slow := append([]EnrichedRow(nil), rows...)
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].MonthlySales < slow[j].MonthlySales })
	return Movers{Fast: limitRows(fast, n), Slow: limitRows(slow, n)}
}

// FilterOptions lists the distinct values a filter can select in a table.
type FilterOptions struct {
	Categories []string      `json:"categories"`
	Statuses   []StockStatus `json:"statuses"`
	ABCClasses []ABCClass    `json:"abcClasses"`
}

// FilterOptions returns sorted categories plus the statuses and classes present.
func (e *MetricsEngine) FilterOptions(rows []EnrichedRow) FilterOptions {
	cats := make(map[string]struct{})
	statuses := make(map[StockStatus]struct{})
	classes := make(map[ABCClass]struct{})
	for _, r := range rows {
		cats[r.Category] = struct{}{}
		statuses[r.StockStatus] = struct{}{}
		classes[r.ABCClass] = struct{}{}
	}

	opts := FilterOptions{Categories: []string{}, Statuses: []StockStatus{}, ABCClasses: []ABCClass{}}
	for c := range cats {
		opts.Categories = append(opts.Categories, c)
	}
	sort.Strings(opts.Categories)
	for _, s := range Statuses {
		if _, ok := statuses[s]; ok {
			opts.Statuses = append(opts.Statuses, s)
		}
	}
	for _, c := range ABCClasses {
		if _, ok := classes[c]; ok {
			opts.ABCClasses = append(opts.ABCClasses, c)
		}
	}
	return opts
}

// Insights are short findings about a table.
type Insights struct {
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
	Opportunities   []string `json:"opportunities"`
	Risks           []string `json:"risks"`
}

// Insights summarizes stock risks worth acting on.
func (e *MetricsEngine) Insights(rows []EnrichedRow) Insights {
	in := Insights{Alerts: []string{}, Recommendations: []string{}, Opportunities: []string{}, Risks: []string{}}

	var critical, slow, understockedA, obsolete int
	var excessValue, obsoleteValue float64
	for _, r := range rows {
		if r.StockStatus == StatusCritical {
			critical++
		}
		if r.StockStatus == StatusExcess {
			excessValue += r.InventoryValue
		}
		if r.InventoryTurnover < slowTurnoverCeiling {
			slow++
		}
		if r.ABCClass == ClassA && (r.StockStatus == StatusCritical || r.StockStatus == StatusLow) {
			understockedA++
		}
		if r.DaysOfSupply > e.params.ObsoleteDays {
			obsolete++
			obsoleteValue += r.InventoryValue
		}
	}

	if critical > 0 {
		in.Alerts = append(in.Alerts, fmt.Sprintf("%d items are critically low on stock", critical))
	}
	if excessValue > excessValueAlert {
		in.Alerts = append(in.Alerts, fmt.Sprintf("$%s tied up in excess inventory", formatThousands(excessValue)))
	}
	if slow > 0 {
		in.Recommendations = append(in.Recommendations,
			fmt.Sprintf("Review %d slow-moving items for promotion or discontinuation", slow))
	}
	if obsolete > 0 {
		in.Opportunities = append(in.Opportunities,
			fmt.Sprintf("%d items hold more than %.0f days of supply worth $%s that could be released",
				obsolete, e.params.ObsoleteDays, formatThousands(obsoleteValue)))
	}
	if understockedA > 0 {
		in.Risks = append(in.Risks, fmt.Sprintf("%d high-value A-class items are understocked", understockedA))
	}
	return in
}

// formatThousands renders v rounded to a whole number with comma separators.
func formatThousands(v float64) string {
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
