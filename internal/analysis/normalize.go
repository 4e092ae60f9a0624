package analysis

const (
	defaultCategory     = "Uncategorized"
	defaultReorderRatio = 0.2
)

// DataNormalizer turns a raw table into typed rows with bounded values.
type DataNormalizer struct{}

// NewDataNormalizer creates a normalizer.
func NewDataNormalizer() *DataNormalizer {
	return &DataNormalizer{}
}

// Normalize cleans every row of table. Rows without a name are dropped and
// the remaining rows keep their source order.
func (n *DataNormalizer) Normalize(table RawTable, mapping ColumnMapping) ([]NormalizedRow, CleaningLog, error) {
	log := CleaningLog{
		InputRows:          table.Len(),
		DroppedRows:        []int{},
		UnresolvedOptional: mapping.Missing([]Role{RoleReorderLevel, RoleUnitCost}),
	}
	if missing := mapping.Missing(RequiredRoles); len(missing) > 0 {
		return nil, log, &MissingColumnsError{Missing: missing, Headers: append([]string(nil), table.Headers...)}
	}

	nameCol, _ := mapping.Header(RoleName)
	categoryCol, _ := mapping.Header(RoleCategory)
	stockCol, _ := mapping.Header(RoleStock)
	salesCol, _ := mapping.Header(RoleSales)
	reorderCol, hasReorder := mapping.Header(RoleReorderLevel)
	costCol, hasCost := mapping.Header(RoleUnitCost)

	// number coerces a cell, tallying unparseable and negative values.
	number := func(row RawRow, col string) (float64, cellKind) {
		v, kind := parseNumber(row[col])
		if kind == cellInvalid {
			log.CoercedCells++
			return 0, kind
		}
		if v < 0 {
			log.ClampedNegatives++
			v = 0
		}
		return v, kind
	}

	rows := make([]NormalizedRow, 0, table.Len())
	for i, raw := range table.Rows {
		name := cellString(raw[nameCol])
		if name == "" {
			log.DroppedRows = append(log.DroppedRows, i)
			continue
		}

		row := NormalizedRow{SourceIndex: i, Name: name}

		row.Category = cellString(raw[categoryCol])
		if row.Category == "" {
			row.Category = defaultCategory
			log.DefaultedCategory++
		}

		row.Stock, _ = number(raw, stockCol)
		row.MonthlySales, _ = number(raw, salesCol)

		if hasReorder {
			var kind cellKind
			row.ReorderLevel, kind = number(raw, reorderCol)
			if kind == cellEmpty {
				row.ReorderLevel = row.MonthlySales * defaultReorderRatio
				log.DefaultedReorder++
			}
		} else {
			row.ReorderLevel = row.MonthlySales * defaultReorderRatio
			log.DefaultedReorder++
		}

		if hasCost {
			var kind cellKind
			row.UnitCost, kind = number(raw, costCol)
			if kind == cellEmpty {
				log.DefaultedUnitCost++
			}
		} else {
			log.DefaultedUnitCost++
		}

		rows = append(rows, row)
	}

	log.OutputRows = len(rows)
	if len(rows) == 0 {
		return nil, log, &NoValidRowsError{TotalRows: table.Len()}
	}
	return rows, log, nil
}
