package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityAuditor_Counts(t *testing.T) {
	table := RawTable{
		Headers: []string{"Item", "Cat", "Qty", "Sold", "Min", "Cost"},
		Rows: []RawRow{
			{"Item": "a", "Cat": "x", "Qty": "10", "Sold": "5", "Min": "1", "Cost": "1"},
			{"Item": "", "Cat": "x", "Qty": "-2", "Sold": "abc", "Min": "1", "Cost": "1"},
			{"Item": "c", "Cat": "", "Qty": "", "Sold": "0", "Min": "1", "Cost": "1"},
			{"Item": "d", "Cat": "y", "Qty": "3", "Sold": "-1", "Min": "1", "Cost": "1"},
		},
	}

	report := NewQualityAuditor().Audit(table, fullMapping())

	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 6, report.TotalColumns)

	name := report.Roles[RoleName]
	assert.Equal(t, 1, name.Empty)

	stock := report.Roles[RoleStock]
	assert.Equal(t, "Qty", stock.Header)
	assert.Equal(t, 1, stock.Empty)
	assert.Equal(t, 1, stock.Negative)
	assert.Equal(t, []int{1}, stock.Outliers)

	sales := report.Roles[RoleSales]
	assert.Equal(t, 1, sales.NonNumeric)
	assert.Equal(t, 1, sales.Negative)
	assert.Equal(t, 1, sales.Zero)
	assert.Equal(t, []int{3}, sales.Outliers)

	assert.Equal(t, []int{1, 3}, report.OutlierRows)
	// stock: (1 empty + 1 negative) / 4 = 50%
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.Issues)
}

func TestQualityAuditor_SigmaOutlier(t *testing.T) {
	table := RawTable{Headers: []string{"Item", "Cat", "Qty", "Sold"}}
	for i := 0; i < 20; i++ {
		table.Rows = append(table.Rows, RawRow{"Item": fmt.Sprintf("p%d", i), "Cat": "c", "Qty": "10", "Sold": "10"})
	}
	table.Rows = append(table.Rows, RawRow{"Item": "spike", "Cat": "c", "Qty": "10000", "Sold": "10"})

	mapping := NewColumnMapping(map[Role]string{RoleName: "Item", RoleCategory: "Cat", RoleStock: "Qty", RoleSales: "Sold"})
	report := NewQualityAuditor().Audit(table, mapping)

	assert.Equal(t, []int{20}, report.Roles[RoleStock].Outliers)
	assert.Empty(t, report.Roles[RoleSales].Outliers)
	assert.True(t, report.Passed)
	assert.Contains(t, report.Recommendations, "No reorder level column detected - reorder levels default to 20% of monthly sales")
}

func TestQualityAuditor_DoesNotMutate(t *testing.T) {
	table := RawTable{
		Headers: []string{"Item", "Cat", "Qty", "Sold"},
		Rows:    []RawRow{{"Item": " a ", "Cat": nil, "Qty": "-5", "Sold": "x"}},
	}
	mapping := NewColumnMapping(map[Role]string{RoleName: "Item", RoleCategory: "Cat", RoleStock: "Qty", RoleSales: "Sold"})

	NewQualityAuditor().Audit(table, mapping)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, RawRow{"Item": " a ", "Cat": nil, "Qty": "-5", "Sold": "x"}, table.Rows[0])
}

func TestQualityAuditor_EmptyTable(t *testing.T) {
	report := NewQualityAuditor().Audit(RawTable{Headers: []string{"Item"}}, fullMapping())
	assert.True(t, report.Passed)
	assert.Equal(t, 0, report.TotalRows)
	assert.Empty(t, report.OutlierRows)
}
