package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

// ReadXLSX parses the first sheet of a workbook. The first non-blank row is the header.
func ReadXLSX(data []byte) (analysis.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return analysis.RawTable{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return analysis.RawTable{}, fmt.Errorf("xlsx has no sheets: %w", ErrEmptyTable)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return analysis.RawTable{}, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var header []string
	var records [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return analysis.RawTable{}, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		if header == nil {
			if !isBlankRecord(record) {
				header = record
			}
			continue
		}
		records = append(records, record)
	}
	if err := rows.Error(); err != nil {
		return analysis.RawTable{}, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}

	if header == nil {
		return analysis.RawTable{}, ErrEmptyTable
	}
	return buildTable(header, records)
}
