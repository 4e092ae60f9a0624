package analysis

import (
	"github.com/rs/zerolog/log"
)

// Result is the output of processing one raw table.
type Result struct {
	Mapping  ColumnMapping `json:"mapping"`
	Quality  QualityReport `json:"quality"`
	Cleaning CleaningLog   `json:"cleaning"`
	Rows     []EnrichedRow `json:"rows"`
}

// Analyzer runs the resolve, audit, normalize and enrich stages in order.
type Analyzer struct {
	resolver   *ColumnResolver
	auditor    *QualityAuditor
	normalizer *DataNormalizer
	engine     *MetricsEngine
}

// NewAnalyzer wires the stages. A nil keyword table uses DefaultKeywords.
func NewAnalyzer(params Params, keywords KeywordTable) *Analyzer {
	return &Analyzer{
		resolver:   NewColumnResolver(keywords),
		auditor:    NewQualityAuditor(),
		normalizer: NewDataNormalizer(),
		engine:     NewMetricsEngine(params),
	}
}

// Engine exposes the query operations over enriched rows.
func (a *Analyzer) Engine() *MetricsEngine {
	return a.engine
}

// ResolveAndValidate resolves headers, failing when a required role is missing.
func (a *Analyzer) ResolveAndValidate(headers []string) (ColumnMapping, error) {
	return a.resolver.Resolve(headers)
}

// Process turns a raw table into enriched rows plus the quality report.
func (a *Analyzer) Process(table RawTable) (*Result, error) {
	mapping, err := a.resolver.Resolve(table.Headers)
	if err != nil {
		return nil, err
	}
	log.Debug().Interface("mapping", mapping.AsMap()).Int("rows", table.Len()).Msg("columns resolved")

	quality := a.auditor.Audit(table, mapping)

	rows, cleaning, err := a.normalizer.Normalize(table, mapping)
	if err != nil {
		return nil, err
	}
	if len(cleaning.DroppedRows) > 0 {
		log.Debug().Int("dropped", len(cleaning.DroppedRows)).Msg("rows without a name dropped")
	}

	return &Result{
		Mapping:  mapping,
		Quality:  quality,
		Cleaning: cleaning,
		Rows:     a.engine.Enrich(rows),
	}, nil
}
