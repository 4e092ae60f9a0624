package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

// Pipeline turns input files into enriched rows for one snapshot date.
type Pipeline interface {
	Name() string

	// Transform reads one input file and returns its enriched rows
	Transform(ctx context.Context, inputFile string) ([]TransformedRow, error)

	// GetSnapshotDate extracts the snapshot date from a filename
	GetSnapshotDate(filename string) (time.Time, error)

	// Validate rejects files the pipeline cannot read before any work starts
	Validate(inputFile string) error
}

// TransformedRow is one enriched row tagged with the file it came from.
type TransformedRow struct {
	SourceFile string
	Row        analysis.EnrichedRow
}

// PipelineConfig holds configuration for a pipeline instance
type PipelineConfig struct {
	Name            string
	BatchSize       int           // Number of files to buffer before flushing
	BatchSizeBytes  int64         // Size in bytes to buffer before flushing
	FlushInterval   time.Duration // Max time to wait before flushing
	WorkerCount     int           // Number of concurrent workers
	OutputDir       string        // Directory for final aggregated CSVs
	IntermediateDir string        // Directory for per-file outputs
	RetryAttempts   int           // Number of retries on failure
}

// DefaultPipelineConfig flushes every 5 files, 10MB or 5 minutes with 4 workers.
func DefaultPipelineConfig(name string) PipelineConfig {
	return PipelineConfig{
		Name:            name,
		BatchSize:       5,
		BatchSizeBytes:  10 * 1024 * 1024, // 10MB
		FlushInterval:   5 * time.Minute,
		WorkerCount:     4,
		OutputDir:       "data/output/" + name,
		IntermediateDir: "data/intermediate/" + name,
		RetryAttempts:   3,
	}
}

// PipelineStatus represents the current state of a pipeline run
type PipelineStatus string

const (
	StatusPending    PipelineStatus = "pending"
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
)

// FileJobStatus represents the state of a single file processing job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// PipelineRun is one execution of a pipeline for a snapshot date.
type PipelineRun struct {
	ID             int64          `json:"id"`
	PipelineName   string         `json:"pipeline_name"`
	Date           time.Time      `json:"date"`
	Status         PipelineStatus `json:"status"`
	TotalFiles     int            `json:"total_files"`
	ProcessedFiles int            `json:"processed_files"`
	TotalRows      int            `json:"total_rows"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// Duration is the wall time of a finished run, zero while it is still going.
func (r *PipelineRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// FileJob is the processing state of one input file within a run.
type FileJob struct {
	ID            int64         `json:"id"`
	PipelineRunID int64         `json:"pipeline_run_id"`
	FilePath      string        `json:"file_path"`
	Status        FileJobStatus `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
	RetryCount    int           `json:"retry_count"`
}
