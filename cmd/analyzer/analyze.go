package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/config"
	"github.com/andresuchdata/inventory-analyzer/internal/export"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
)

type analyzeReport struct {
	File       string                   `json:"file"`
	Mapping    analysis.ColumnMapping   `json:"mapping"`
	Quality    analysis.QualityReport   `json:"quality"`
	Cleaning   analysis.CleaningLog     `json:"cleaning"`
	KPIs       analysis.KPIs            `json:"kpis"`
	Reorders   []analysis.EnrichedRow   `json:"priority_reorders"`
	Categories []analysis.CategoryStats `json:"categories"`
	Movers     analysis.Movers          `json:"movers"`
	Insights   analysis.Insights        `json:"insights"`
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run the full analysis on one export and print a JSON report",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of priority reorders and movers to include",
				Value: 10,
			},
			&cli.StringSliceFlag{
				Name:  "filter",
				Usage: "Filter criteria as key=value (category, status, abc_class, search)",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Also write the (filtered) enriched rows as CSV to this path",
			},
		},
		Action: runAnalyze,
	}
}

func columnsCommand() *cli.Command {
	return &cli.Command{
		Name:      "columns",
		Usage:     "Show how the export's headers map to inventory fields",
		ArgsUsage: "FILE",
		Action:    runColumns,
	}
}

func loadTable(c *cli.Context) (string, analysis.RawTable, error) {
	path := c.Args().First()
	if path == "" {
		return "", analysis.RawTable{}, cli.Exit("FILE argument is required", 2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", analysis.RawTable{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	table, err := ingest.Decode(path, data)
	if err != nil {
		return "", analysis.RawTable{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return path, table, nil
}

func newAnalyzer() *analysis.Analyzer {
	return analysis.NewAnalyzer(config.Load().Analysis, nil)
}

func parseFilterFlags(values []string) (analysis.FilterCriteria, error) {
	raw := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok {
			return analysis.FilterCriteria{}, fmt.Errorf("filter %q must be key=value", v)
		}
		raw[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return analysis.ParseFilterCriteria(raw)
}

func runAnalyze(c *cli.Context) error {
	path, table, err := loadTable(c)
	if err != nil {
		return err
	}

	criteria, err := parseFilterFlags(c.StringSlice("filter"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	analyzer := newAnalyzer()
	result, err := analyzer.Process(table)
	if err != nil {
		return err
	}

	engine := analyzer.Engine()
	rows := result.Rows
	if !criteria.IsEmpty() {
		rows = engine.Filter(rows, criteria)
	}

	limit := c.Int("limit")
	report := analyzeReport{
		File:       path,
		Mapping:    result.Mapping,
		Quality:    result.Quality,
		Cleaning:   result.Cleaning,
		KPIs:       engine.KPIs(rows),
		Reorders:   engine.PriorityReorders(rows, limit),
		Categories: engine.RankCategories(rows),
		Movers:     engine.FastSlowMovers(rows, limit),
		Insights:   engine.Insights(rows),
	}

	if out := c.String("export"); out != "" {
		if err := writeExport(out, rows); err != nil {
			return err
		}
	}

	return printJSON(c.App.Writer, report)
}

func writeExport(path string, rows []analysis.EnrichedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := export.WriteCSV(f, rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func runColumns(c *cli.Context) error {
	_, table, err := loadTable(c)
	if err != nil {
		return err
	}

	mapping, err := newAnalyzer().ResolveAndValidate(table.Headers)
	var missing *analysis.MissingColumnsError
	if errors.As(err, &missing) {
		_ = printJSON(c.App.Writer, map[string]any{
			"mapping": mapping,
			"missing": missing.Missing,
			"headers": missing.Headers,
		})
		return cli.Exit(err.Error(), 1)
	}
	if err != nil {
		return err
	}

	return printJSON(c.App.Writer, map[string]any{"mapping": mapping})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
