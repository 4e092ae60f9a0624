package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyTable        = errors.New("file contains no header row")
)

// Format identifies an upload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// DetectFormat infers the format from a file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Decode parses an uploaded file into a raw table.
func Decode(filename string, data []byte) (analysis.RawTable, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return analysis.RawTable{}, err
	}

	switch format {
	case FormatCSV:
		return ReadCSV(data)
	case FormatXLSX:
		return ReadXLSX(data)
	default:
		return ReadJSON(data)
	}
}

// buildTable turns header and record slices into a rectangular raw table.
// Blank headers become column_N, duplicates get a numeric suffix, fully blank
// records are skipped and short records are padded with nil cells.
func buildTable(header []string, records [][]string) (analysis.RawTable, error) {
	headers := uniqueHeaders(header)
	if len(headers) == 0 {
		return analysis.RawTable{}, ErrEmptyTable
	}

	table := analysis.RawTable{Headers: headers, Rows: make([]analysis.RawRow, 0, len(records))}
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		row := make(analysis.RawRow, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func uniqueHeaders(raw []string) []string {
	// trailing blank headers are export artifacts
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}

	used := make(map[string]bool, end)
	out := make([]string, 0, end)
	for i, h := range raw[:end] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		candidate := h
		for n := 2; used[candidate]; n++ {
			candidate = h + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		out = append(out, candidate)
	}
	return out
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
