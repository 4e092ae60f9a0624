package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidate delimiters in preference order for ties
var delimiters = []rune{',', ';', '\t', '|'}

// ReadCSV parses delimited text. Input that is not valid UTF-8 is decoded as
// Windows-1252, which also covers Latin-1 exports.
func ReadCSV(data []byte) (analysis.RawTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return analysis.RawTable{}, fmt.Errorf("failed to decode csv as windows-1252: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return analysis.RawTable{}, fmt.Errorf("failed to parse csv: %w", err)
	}

	// skip blank lines before the header
	for len(records) > 0 && isBlankRecord(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return analysis.RawTable{}, ErrEmptyTable
	}
	return buildTable(records[0], records[1:])
}

// sniffDelimiter counts candidate delimiters outside quotes on the first
// non-empty line and picks the most frequent.
func sniffDelimiter(data []byte) rune {
	line := data
	for len(line) > 0 {
		i := bytes.IndexByte(line, '\n')
		var cur []byte
		if i < 0 {
			cur, line = line, nil
		} else {
			cur, line = line[:i], line[i+1:]
		}
		if len(bytes.TrimSpace(cur)) > 0 {
			line = cur
			break
		}
	}

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
