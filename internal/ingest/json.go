package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

// ReadJSON parses an array of flat objects. Headers follow first-seen key order
// across all objects; nested values are kept as their JSON text.
func ReadJSON(data []byte) (analysis.RawTable, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return analysis.RawTable{}, err
	}

	table := analysis.RawTable{}
	known := make(map[string]bool)

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return analysis.RawTable{}, err
		}
		row := make(analysis.RawRow)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return analysis.RawTable{}, fmt.Errorf("failed to read json key: %w", err)
			}
			key, ok := tok.(string)
			if !ok {
				return analysis.RawTable{}, fmt.Errorf("unexpected json token %v", tok)
			}

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return analysis.RawTable{}, fmt.Errorf("failed to read json value for %q: %w", key, err)
			}
			if !known[key] {
				known[key] = true
				table.Headers = append(table.Headers, key)
			}
			row[key] = jsonCell(raw)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return analysis.RawTable{}, err
		}
		table.Rows = append(table.Rows, row)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return analysis.RawTable{}, err
	}

	if len(table.Headers) == 0 {
		return analysis.RawTable{}, ErrEmptyTable
	}
	for _, row := range table.Rows {
		for _, h := range table.Headers {
			if _, ok := row[h]; !ok {
				row[h] = nil
			}
		}
	}
	return table, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("unexpected end of json, want %q", want)
		}
		return fmt.Errorf("failed to read json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected json token %v, want %q", tok, want)
	}
	return nil
}

func jsonCell(raw json.RawMessage) any {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case bool:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return string(raw)
	}
}
