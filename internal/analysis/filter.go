package analysis

import (
	"sort"
	"strings"
)

// Filter keys accepted by ParseFilterCriteria.
const (
	FilterKeyCategory = "category"
	FilterKeyStatus   = "status"
	FilterKeyABCClass = "abc_class"
	FilterKeySearch   = "search"
)

// legacy labels used by older dashboards
var legacyStatusLabels = map[string]StockStatus{
	"critical":  StatusCritical,
	"low stock": StatusLow,
	"healthy":   StatusHealthy,
	"excess":    StatusExcess,
}

// FilterCriteria is a conjunction of optional predicates over enriched rows.
// Zero-valued fields do not filter.
type FilterCriteria struct {
	Category string      `json:"category,omitempty"`
	Status   StockStatus `json:"status,omitempty"`
	ABCClass ABCClass    `json:"abc_class,omitempty"`
	Search   string      `json:"search,omitempty"`
}

// IsEmpty reports whether the criteria match every row.
func (c FilterCriteria) IsEmpty() bool {
	return c == FilterCriteria{}
}

// Parts returns key=value pairs of the active predicates, sorted by key.
func (c FilterCriteria) Parts() []string {
	var parts []string
	if c.ABCClass != "" {
		parts = append(parts, FilterKeyABCClass+"="+string(c.ABCClass))
	}
	if c.Category != "" {
		parts = append(parts, FilterKeyCategory+"="+c.Category)
	}
	if c.Search != "" {
		parts = append(parts, FilterKeySearch+"="+strings.ToLower(c.Search))
	}
	if c.Status != "" {
		parts = append(parts, FilterKeyStatus+"="+string(c.Status))
	}
	sort.Strings(parts)
	return parts
}

// ParseFilterCriteria validates raw key/value pairs. Unknown keys and unknown
// status or class values are rejected with *InvalidFilterError. Empty values
// and the "All" labels leave a predicate unset.
func ParseFilterCriteria(raw map[string]string) (FilterCriteria, error) {
	var c FilterCriteria

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(raw[key])
		switch strings.ToLower(strings.TrimSpace(key)) {
		case FilterKeyCategory:
			if !isAllLabel(value) {
				c.Category = value
			}
		case FilterKeyStatus:
			if isAllLabel(value) {
				continue
			}
			s, ok := parseStatus(value)
			if !ok {
				return FilterCriteria{}, &InvalidFilterError{Key: key, Value: value, Reason: "unknown stock status"}
			}
			c.Status = s
		case FilterKeyABCClass, "abcclass", "abc":
			if isAllLabel(value) {
				continue
			}
			cls, ok := parseABCClass(value)
			if !ok {
				return FilterCriteria{}, &InvalidFilterError{Key: key, Value: value, Reason: "ABC class must be A, B or C"}
			}
			c.ABCClass = cls
		case FilterKeySearch:
			c.Search = value
		default:
			return FilterCriteria{}, &InvalidFilterError{Key: key, Reason: "unknown filter key"}
		}
	}
	return c, nil
}

func isAllLabel(v string) bool {
	switch strings.ToLower(v) {
	case "", "all", "all categories":
		return true
	}
	return false
}

func parseStatus(v string) (StockStatus, bool) {
	upper := StockStatus(strings.ToUpper(v))
	for _, s := range Statuses {
		if s == upper {
			return s, true
		}
	}
	s, ok := legacyStatusLabels[strings.ToLower(v)]
	return s, ok
}

func parseABCClass(v string) (ABCClass, bool) {
	upper := ABCClass(strings.ToUpper(v))
	for _, c := range ABCClasses {
		if c == upper {
			return c, true
		}
	}
	return "", false
}

// Match reports whether r satisfies every set predicate.
func (c FilterCriteria) Match(r EnrichedRow) bool {
	if c.Category != "" && r.Category != c.Category {
		return false
	}
	if c.Status != "" && r.StockStatus != c.Status {
		return false
	}
	if c.ABCClass != "" && r.ABCClass != c.ABCClass {
		return false
	}
	if c.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(c.Search)) {
		return false
	}
	return true
}

// Filter returns the rows matching criteria in source order.
func (e *MetricsEngine) Filter(rows []EnrichedRow, criteria FilterCriteria) []EnrichedRow {
	out := make([]EnrichedRow, 0, len(rows))
	for _, r := range rows {
		if criteria.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
