// Package restock runs the inventory analysis over exported files in batch.
package restock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
	"github.com/andresuchdata/inventory-analyzer/internal/pipeline"
)

// Name identifies the pipeline in run tracking and output paths.
const Name = "restock"

// Config controls how export files are read.
type Config struct {
	InputDateFormat    string // layout of the date prefix in filenames, YYYYMMDD by default
	IntermediateDir    string
	PersistDebugLayers bool // write a per-file quality report next to the outputs
	Params             analysis.Params
	Keywords           analysis.KeywordTable
}

// Pipeline analyzes one export per file.
type Pipeline struct {
	config   Config
	analyzer *analysis.Analyzer
}

var embeddedDate = regexp.MustCompile(`(\d{4})-?(\d{2})-?(\d{2})`)

// New creates a restock pipeline.
func New(cfg Config) *Pipeline {
	if cfg.InputDateFormat == "" {
		cfg.InputDateFormat = "20060102"
	}
	if cfg.IntermediateDir == "" {
		cfg.IntermediateDir = filepath.Join("data", "intermediate", Name)
	}
	if cfg.Params == (analysis.Params{}) {
		cfg.Params = analysis.DefaultParams()
	}
	return &Pipeline{
		config:   cfg,
		analyzer: analysis.NewAnalyzer(cfg.Params, cfg.Keywords),
	}
}

func (p *Pipeline) Name() string {
	return Name
}

// GetSnapshotDate reads the date prefix of the filename, falling back to
// the first YYYYMMDD or YYYY-MM-DD found anywhere in it.
func (p *Pipeline) GetSnapshotDate(filename string) (time.Time, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	layout := p.config.InputDateFormat
	if len(base) >= len(layout) {
		if date, err := time.Parse(layout, base[:len(layout)]); err == nil {
			return date, nil
		}
	}

	for _, m := range embeddedDate.FindAllStringSubmatch(base, -1) {
		if date, err := time.Parse("20060102", m[1]+m[2]+m[3]); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("filename %s does not contain a snapshot date", filename)
}

// Validate performs basic validation on the input file.
func (p *Pipeline) Validate(inputFile string) error {
	info, err := os.Stat(inputFile)
	if err != nil {
		return fmt.Errorf("cannot stat input file %s: %w", inputFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected file", inputFile)
	}
	if _, err := ingest.DetectFormat(inputFile); err != nil {
		return fmt.Errorf("%s: %w", inputFile, err)
	}
	return nil
}

// Transform decodes the file and returns its enriched rows.
func (p *Pipeline) Transform(ctx context.Context, inputFile string) ([]pipeline.TransformedRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inputFile, err)
	}

	table, err := ingest.Decode(inputFile, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", inputFile, err)
	}

	result, err := p.analyzer.Process(table)
	if err != nil {
		return nil, err
	}

	if len(result.Cleaning.DroppedRows) > 0 {
		log.Debug().
			Str("file", inputFile).
			Int("dropped", len(result.Cleaning.DroppedRows)).
			Msg("rows dropped during normalization")
	}

	if p.config.PersistDebugLayers {
		if err := p.writeReport(inputFile, result); err != nil {
			log.Warn().Err(err).Str("file", inputFile).Msg("failed to write quality report")
		}
	}

	rows := make([]pipeline.TransformedRow, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = pipeline.TransformedRow{SourceFile: inputFile, Row: row}
	}
	return rows, nil
}

type fileReport struct {
	File     string                 `json:"file"`
	Mapping  analysis.ColumnMapping `json:"mapping"`
	Quality  analysis.QualityReport `json:"quality"`
	Cleaning analysis.CleaningLog   `json:"cleaning"`
}

// writeReport stores mapping, quality and cleaning details as <name>.report.json.
func (p *Pipeline) writeReport(inputFile string, result *analysis.Result) error {
	if err := os.MkdirAll(p.config.IntermediateDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileReport{
		File:     filepath.Base(inputFile),
		Mapping:  result.Mapping,
		Quality:  result.Quality,
		Cleaning: result.Cleaning,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.ReportPath(inputFile), data, 0o644)
}

// ReportPath returns where the quality report for inputFile is written.
func (p *Pipeline) ReportPath(inputFile string) string {
	base := filepath.Base(inputFile)
	return filepath.Join(p.config.IntermediateDir, strings.TrimSuffix(base, filepath.Ext(base))+".report.json")
}

// CollectFiles lists the supported export files directly under dir, sorted by name.
func CollectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := ingest.DetectFormat(e.Name()); err != nil {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
