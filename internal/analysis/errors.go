package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingRequiredColumns = errors.New("missing required columns")
	ErrNoValidRows            = errors.New("no valid rows")
	ErrInvalidFilterCriteria  = errors.New("invalid filter criteria")
)

// MissingColumnsError lists the required roles no header could be matched to.
type MissingColumnsError struct {
	Missing []Role
	Headers []string
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = string(r)
	}
	return fmt.Sprintf("%s: %s", ErrMissingRequiredColumns, strings.Join(names, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingRequiredColumns }

// NoValidRowsError is returned when normalization discards every row.
type NoValidRowsError struct {
	TotalRows int
}

func (e *NoValidRowsError) Error() string {
	return fmt.Sprintf("%s: all %d rows were dropped during cleaning", ErrNoValidRows, e.TotalRows)
}

func (e *NoValidRowsError) Unwrap() error { return ErrNoValidRows }

// InvalidFilterError rejects a filter key or value before any data is touched.
type InvalidFilterError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidFilterCriteria, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s=%q: %s", ErrInvalidFilterCriteria, e.Key, e.Value, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilterCriteria }
