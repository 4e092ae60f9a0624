package analysis

import (
	"fmt"
	"sort"
)

const (
	outlierSigma      = 3.0
	maxIssueRate      = 0.20
	zeroHeavyRate     = 0.50
	maxCategoriesHint = 50
	percentMultiplier = 100.0
)

// QualityAuditor inspects a raw table against a mapping without changing it.
type QualityAuditor struct{}

// NewQualityAuditor creates an auditor.
func NewQualityAuditor() *QualityAuditor {
	return &QualityAuditor{}
}

// Audit reports empty, non-numeric, negative and outlying cells per resolved role.
func (a *QualityAuditor) Audit(table RawTable, mapping ColumnMapping) QualityReport {
	report := QualityReport{
		TotalRows:       table.Len(),
		TotalColumns:    len(table.Headers),
		Roles:           make(map[Role]RoleQuality, len(Roles)),
		OutlierRows:     []int{},
		Issues:          []string{},
		Recommendations: []string{},
		Passed:          true,
	}

	outlierSet := make(map[int]struct{})

	for _, role := range Roles {
		h, ok := mapping.Header(role)
		if !ok {
			continue
		}
		q := a.auditRole(table, role, h)
		for _, idx := range q.Outliers {
			outlierSet[idx] = struct{}{}
		}
		report.Roles[role] = q

		if q.IssueRate > maxIssueRate {
			report.Passed = false
		}
		missingRate := safeDiv(float64(q.Empty), float64(report.TotalRows))
		if missingRate > maxIssueRate {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Column '%s' has %.1f%% missing values - consider filling them in the source export", h, missingRate*percentMultiplier))
		}
		if q.NonNumeric > 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: %d non-numeric values", h, q.NonNumeric))
		}
		if q.Negative > 0 {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: %d negative values", h, q.Negative))
		}
		if role.IsNumeric() && report.TotalRows > 0 && float64(q.Zero)/float64(report.TotalRows) > zeroHeavyRate {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: more than half of the values are zero", h))
		}
	}

	if q, ok := report.Roles[RoleStock]; ok && q.Zero > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d products have zero stock - review them for immediate reorder", q.Zero))
	}
	if q, ok := report.Roles[RoleSales]; ok && q.Zero > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d products have zero sales - consider them for clearance", q.Zero))
	}
	if h, ok := mapping.Header(RoleCategory); ok {
		if n := distinctValues(table, h); n > maxCategoriesHint {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%d distinct categories found - consider consolidating them", n))
		}
	}
	if !mapping.Resolved(RoleReorderLevel) {
		report.Recommendations = append(report.Recommendations,
			"No reorder level column detected - reorder levels default to 20% of monthly sales")
	}
	if !mapping.Resolved(RoleUnitCost) {
		report.Recommendations = append(report.Recommendations,
			"No unit cost column detected - inventory value and ABC classes will be based on sales volume only")
	}

	for idx := range outlierSet {
		report.OutlierRows = append(report.OutlierRows, idx)
	}
	sort.Ints(report.OutlierRows)

	return report
}

func (a *QualityAuditor) auditRole(table RawTable, role Role, h string) RoleQuality {
	q := RoleQuality{Header: h, Outliers: []int{}}

	if !role.IsNumeric() {
		for _, row := range table.Rows {
			if cellString(row[h]) == "" {
				q.Empty++
			}
		}
		q.IssueRate = safeDiv(float64(q.Empty), float64(table.Len()))
		return q
	}

	checkNegative := role == RoleStock || role == RoleSales
	values := make([]float64, 0, table.Len())
	indices := make([]int, 0, table.Len())
	outliers := make(map[int]struct{})

	for i, row := range table.Rows {
		v, kind := parseNumber(row[h])
		switch kind {
		case cellEmpty:
			q.Empty++
			continue
		case cellInvalid:
			q.NonNumeric++
			continue
		}
		if v == 0 {
			q.Zero++
		}
		if checkNegative && v < 0 {
			q.Negative++
			outliers[i] = struct{}{}
		}
		values = append(values, v)
		indices = append(indices, i)
	}

	q.Mean, q.StdDev = meanStdDev(values)
	if q.StdDev > 0 {
		limit := outlierSigma * q.StdDev
		for k, v := range values {
			if v-q.Mean > limit || q.Mean-v > limit {
				outliers[indices[k]] = struct{}{}
			}
		}
	}
	for idx := range outliers {
		q.Outliers = append(q.Outliers, idx)
	}
	sort.Ints(q.Outliers)

	q.IssueRate = safeDiv(float64(q.Empty+q.NonNumeric+q.Negative), float64(table.Len()))
	return q
}

func distinctValues(table RawTable, h string) int {
	seen := make(map[string]struct{})
	for _, row := range table.Rows {
		if s := cellString(row[h]); s != "" {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}
