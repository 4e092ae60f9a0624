package restock

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/pipeline"
)

const export = `Product Name,Category,Current Stock,Monthly Sales,Reorder Level,Unit Cost
Widget,Tools,5,30,10,2
Bolt,Hardware,200,10,20,0.5
,Hardware,1,1,1,1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetSnapshotDate(t *testing.T) {
	p := New(Config{})

	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{"prefix", "20240315_store.csv", "2024-03-15", false},
		{"embedded compact", "stock-20240316.xlsx", "2024-03-16", false},
		{"embedded dashed", "export 2024-03-17 final.json", "2024-03-17", false},
		{"path", "/tmp/in/20240318.csv", "2024-03-18", false},
		{"missing", "inventory.csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSnapshotDate(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{})

	assert.NoError(t, p.Validate(writeFile(t, dir, "20240101.csv", export)))
	assert.Error(t, p.Validate(writeFile(t, dir, "20240101.pdf", "x")))
	assert.Error(t, p.Validate(dir))
	assert.Error(t, p.Validate(filepath.Join(dir, "missing.csv")))
}

func TestTransform(t *testing.T) {
	dir := t.TempDir()
	reports := t.TempDir()
	p := New(Config{IntermediateDir: reports, PersistDebugLayers: true})
	path := writeFile(t, dir, "20240101_main.csv", export)

	rows, err := p.Transform(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, path, rows[0].SourceFile)
	assert.Equal(t, "Widget", rows[0].Row.Name)
	assert.Equal(t, analysis.StatusCritical, rows[0].Row.StockStatus)

	data, err := os.ReadFile(p.ReportPath(path))
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "20240101_main.csv", report["file"])
	assert.Contains(t, report, "quality")
}

func TestTransform_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{})
	path := writeFile(t, dir, "20240101.csv", "Name,Stock\nA,1\n")

	_, err := p.Transform(context.Background(), path)
	assert.ErrorIs(t, err, analysis.ErrMissingRequiredColumns)
}

func TestCollectFilesAndRun(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "20240101_a.csv", export)
	writeFile(t, in, "20240101_b.csv", export)
	writeFile(t, in, "notes.pdf", "ignore me")
	writeFile(t, in, ".hidden.csv", export)
	require.NoError(t, os.Mkdir(filepath.Join(in, "nested"), 0o755))

	files, err := CollectFiles(in)
	require.NoError(t, err)
	require.Len(t, files, 2)

	cfg := pipeline.DefaultPipelineConfig(Name)
	cfg.OutputDir = t.TempDir()
	cfg.WorkerCount = 2

	runs, err := pipeline.NewOrchestrator(nil, cfg, nil, nil).Run(context.Background(), New(Config{}), files)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, pipeline.StatusCompleted, runs[0].Status)
	assert.Equal(t, 4, runs[0].TotalRows)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), runs[0].Date)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "20240101.csv"))
	assert.NoError(t, err)
}
