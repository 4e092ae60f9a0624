package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellInvalid
	cellNumber
)

var numberCleaner = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "")

// parseNumber coerces an untyped cell into a float64.
func parseNumber(v any) (float64, cellKind) {
	switch n := v.(type) {
	case nil:
		return 0, cellEmpty
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), cellNumber
	case int8:
		return float64(n), cellNumber
	case int16:
		return float64(n), cellNumber
	case int32:
		return float64(n), cellNumber
	case int64:
		return float64(n), cellNumber
	case uint:
		return float64(n), cellNumber
	case uint8:
		return float64(n), cellNumber
	case uint16:
		return float64(n), cellNumber
	case uint32:
		return float64(n), cellNumber
	case uint64:
		return float64(n), cellNumber
	case bool:
		return 0, cellInvalid
	case string:
		return parseNumberString(n)
	case fmt.Stringer:
		return parseNumberString(n.String())
	default:
		return 0, cellInvalid
	}
}

func parseNumberString(s string) (float64, cellKind) {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return 0, cellEmpty
	}
	f, err := strconv.ParseFloat(numberCleaner.Replace(s), 64)
	if err != nil {
		return 0, cellInvalid
	}
	return finite(f)
}

func finite(f float64) (float64, cellKind) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, cellInvalid
	}
	return f, cellNumber
}

// isBlank treats spreadsheet placeholders for missing values as empty.
func isBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "n/a", "na", "-":
		return true
	}
	return false
}

// cellString renders a cell as trimmed text; nil and blank placeholders become "".
func cellString(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return ""
	}
	return s
}

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// safeDiv returns 0 when the denominator is zero.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// meanStdDev returns the mean and sample standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
