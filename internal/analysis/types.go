package analysis

import (
	"encoding/json"
	"fmt"
)

// Role is a semantic column role the resolver maps raw headers onto.
type Role string

const (
	RoleName         Role = "name"
	RoleCategory     Role = "category"
	RoleStock        Role = "stock"
	RoleSales        Role = "sales"
	RoleReorderLevel Role = "reorder_level"
	RoleUnitCost     Role = "unit_cost"
)

// Roles lists every role in resolution order.
var Roles = []Role{RoleName, RoleCategory, RoleStock, RoleSales, RoleReorderLevel, RoleUnitCost}

// RequiredRoles must resolve for an upload to be processed.
var RequiredRoles = []Role{RoleName, RoleCategory, RoleStock, RoleSales}

// IsRequired reports whether the role must be present in every upload.
func (r Role) IsRequired() bool {
	for _, req := range RequiredRoles {
		if r == req {
			return true
		}
	}
	return false
}

// IsNumeric reports whether cells of this role are coerced to numbers.
func (r Role) IsNumeric() bool {
	switch r {
	case RoleStock, RoleSales, RoleReorderLevel, RoleUnitCost:
		return true
	}
	return false
}

// ParseRole converts a string into a known Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// RawRow maps a header to an untyped cell value (string, number or nil).
type RawRow map[string]any

// RawTable is an uploaded table before any interpretation.
type RawTable struct {
	Headers []string
	Rows    []RawRow
}

// Len returns the number of data rows.
func (t RawTable) Len() int {
	return len(t.Rows)
}

// ColumnMapping associates each role with the raw header that carries it.
// A mapping is immutable once built.
type ColumnMapping struct {
	headers map[Role]string
}

// NewColumnMapping builds a mapping from role to header. Empty headers are ignored.
func NewColumnMapping(m map[Role]string) ColumnMapping {
	headers := make(map[Role]string, len(m))
	for role, header := range m {
		if header != "" {
			headers[role] = header
		}
	}
	return ColumnMapping{headers: headers}
}

// Header returns the raw header resolved for role.
func (m ColumnMapping) Header(role Role) (string, bool) {
	h, ok := m.headers[role]
	return h, ok
}

// Resolved reports whether role has a header.
func (m ColumnMapping) Resolved(role Role) bool {
	_, ok := m.headers[role]
	return ok
}

// Missing returns the unresolved roles among roles, in the given order.
func (m ColumnMapping) Missing(roles []Role) []Role {
	var missing []Role
	for _, r := range roles {
		if !m.Resolved(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// AsMap returns a copy of the mapping keyed by role name.
func (m ColumnMapping) AsMap() map[string]string {
	out := make(map[string]string, len(m.headers))
	for role, h := range m.headers {
		out[string(role)] = h
	}
	return out
}

func (m ColumnMapping) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, len(Roles))
	for _, r := range Roles {
		if h, ok := m.headers[r]; ok {
			h := h
			out[string(r)] = &h
		} else {
			out[string(r)] = nil
		}
	}
	return json.Marshal(out)
}

func (m *ColumnMapping) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	headers := make(map[Role]string, len(raw))
	for k, v := range raw {
		role, ok := ParseRole(k)
		if !ok {
			return fmt.Errorf("unknown column role %q", k)
		}
		if v != nil && *v != "" {
			headers[role] = *v
		}
	}
	m.headers = headers
	return nil
}

// RoleQuality holds the audit counters for one resolved role.
type RoleQuality struct {
	Header     string  `json:"header"`
	Empty      int     `json:"empty"`
	NonNumeric int     `json:"non_numeric"`
	Negative   int     `json:"negative"`
	Zero       int     `json:"zero"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Outliers   []int   `json:"outliers"`
	IssueRate  float64 `json:"issue_rate"`
}

// QualityReport summarizes data problems found in a raw table. It is advisory only.
type QualityReport struct {
	TotalRows       int                  `json:"total_rows"`
	TotalColumns    int                  `json:"total_columns"`
	Roles           map[Role]RoleQuality `json:"roles"`
	OutlierRows     []int                `json:"outlier_rows"`
	Issues          []string             `json:"issues"`
	Recommendations []string             `json:"recommendations"`
	Passed          bool                 `json:"passed"`
}

// CleaningLog records what the normalizer changed.
type CleaningLog struct {
	InputRows          int    `json:"input_rows"`
	OutputRows         int    `json:"output_rows"`
	DroppedRows        []int  `json:"dropped_rows"`
	CoercedCells       int    `json:"coerced_cells"`
	ClampedNegatives   int    `json:"clamped_negatives"`
	DefaultedCategory  int    `json:"defaulted_category"`
	DefaultedReorder   int    `json:"defaulted_reorder_level"`
	DefaultedUnitCost  int    `json:"defaulted_unit_cost"`
	UnresolvedOptional []Role `json:"unresolved_optional"`
}

// NormalizedRow is a cleaned row with every field present and non-negative.
type NormalizedRow struct {
	SourceIndex  int     `json:"source_index"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Stock        float64 `json:"stock"`
	MonthlySales float64 `json:"monthly_sales"`
	ReorderLevel float64 `json:"reorder_level"`
	UnitCost     float64 `json:"unit_cost"`
}

// StockStatus is the stock health bucket of a row.
type StockStatus string

const (
	StatusCritical StockStatus = "CRITICAL"
	StatusLow      StockStatus = "LOW"
	StatusNormal   StockStatus = "NORMAL"
	StatusHealthy  StockStatus = "HEALTHY"
	StatusExcess   StockStatus = "EXCESS"
)

// Statuses lists every status from most to least urgent.
var Statuses = []StockStatus{StatusCritical, StatusLow, StatusNormal, StatusHealthy, StatusExcess}

// ABCClass is the Pareto class of a row by revenue impact.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// ABCClasses lists every class in order.
var ABCClasses = []ABCClass{ClassA, ClassB, ClassC}

// EnrichedRow is a normalized row with every derived metric.
type EnrichedRow struct {
	NormalizedRow

	AnnualSales       float64     `json:"annual_sales"`
	COGS              float64     `json:"cogs"`
	InventoryValue    float64     `json:"inventory_value"`
	InventoryTurnover float64     `json:"inventory_turnover"`
	DaysOfSupply      float64     `json:"days_of_supply"`
	EOQ               float64     `json:"eoq"`
	RevenueImpact     float64     `json:"revenue_impact"`
	SafetyStock       float64     `json:"safety_stock"`
	ReorderPoint      float64     `json:"reorder_point"`
	ABCClass          ABCClass    `json:"abc_class"`
	StockStatus       StockStatus `json:"stock_status"`
	PriorityScore     float64     `json:"priority_score"`
}
