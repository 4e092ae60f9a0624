package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/export"
)

// FlushFunc is called with the output CSV path after every flush.
type FlushFunc func(ctx context.Context, csvPath string) error

// approximate in-memory footprint of one enriched row
const rowSizeEstimate = 256

// StreamingAggregator buffers transformed data and flushes to CSV in batches.
// The first flush truncates the day's file; later flushes append to it.
type StreamingAggregator struct {
	pipeline      Pipeline
	config        PipelineConfig
	date          time.Time
	buffer        [][]TransformedRow
	bufferSize    int64
	mu            sync.Mutex
	flushCallback FlushFunc
	lastFlush     time.Time
	written       bool
	rowsWritten   int
}

// NewStreamingAggregator creates a new streaming aggregator for a pipeline
func NewStreamingAggregator(
	pipeline Pipeline,
	config PipelineConfig,
	date time.Time,
	flushCallback FlushFunc,
) *StreamingAggregator {
	return &StreamingAggregator{
		pipeline:      pipeline,
		config:        config,
		date:          date,
		buffer:        make([][]TransformedRow, 0, max(config.BatchSize, 1)),
		flushCallback: flushCallback,
		lastFlush:     time.Now(),
	}
}

// OutputPath is the CSV the aggregator writes for its date.
func (sa *StreamingAggregator) OutputPath() string {
	return filepath.Join(sa.config.OutputDir, fmt.Sprintf("%s.csv", sa.date.Format("20060102")))
}

// Resume makes the first flush append when the day's file already exists.
func (sa *StreamingAggregator) Resume() {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if info, err := os.Stat(sa.OutputPath()); err == nil && info.Size() > 0 {
		sa.written = true
	}
}

// AddFileData adds transformed data from a single file to the buffer
func (sa *StreamingAggregator) AddFileData(ctx context.Context, rows []TransformedRow) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	sa.buffer = append(sa.buffer, rows)
	sa.bufferSize += int64(len(rows) * rowSizeEstimate)

	log.Debug().
		Str("pipeline", sa.pipeline.Name()).
		Int("files", len(sa.buffer)).
		Int64("bytes", sa.bufferSize).
		Msg("buffered file")

	if sa.shouldFlushLocked() {
		return sa.flushLocked(ctx)
	}

	return nil
}

func (sa *StreamingAggregator) shouldFlushLocked() bool {
	if sa.config.BatchSize > 0 && len(sa.buffer) >= sa.config.BatchSize {
		return true
	}
	if sa.config.BatchSizeBytes > 0 && sa.bufferSize >= sa.config.BatchSizeBytes {
		return true
	}
	return sa.config.FlushInterval > 0 && time.Since(sa.lastFlush) >= sa.config.FlushInterval
}

// Finalize flushes any remaining data
func (sa *StreamingAggregator) Finalize(ctx context.Context) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if len(sa.buffer) == 0 {
		log.Debug().Str("pipeline", sa.pipeline.Name()).Msg("no data to finalize")
		return nil
	}

	return sa.flushLocked(ctx)
}

// flushLocked writes the current buffer to CSV and triggers the callback.
// Must be called with sa.mu locked.
func (sa *StreamingAggregator) flushLocked(ctx context.Context) error {
	if len(sa.buffer) == 0 {
		return nil
	}

	var allRows []TransformedRow
	for _, fileRows := range sa.buffer {
		allRows = append(allRows, fileRows...)
	}

	if err := os.MkdirAll(sa.config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	csvPath := sa.OutputPath()
	if err := sa.writeCSV(csvPath, allRows, sa.written); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	sa.written = true
	sa.rowsWritten += len(allRows)

	log.Info().
		Str("pipeline", sa.pipeline.Name()).
		Int("files", len(sa.buffer)).
		Int("rows", len(allRows)).
		Str("path", csvPath).
		Msg("flushed batch")

	sa.buffer = sa.buffer[:0]
	sa.bufferSize = 0
	sa.lastFlush = time.Now()

	if sa.flushCallback != nil {
		if err := sa.flushCallback(ctx, csvPath); err != nil {
			return fmt.Errorf("flush callback failed: %w", err)
		}
	}

	return nil
}

// writeCSV writes rows with a source_file column ahead of the export columns.
func (sa *StreamingAggregator) writeCSV(path string, rows []TransformedRow, appendRows bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendRows {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if !appendRows {
		if err := writer.Write(append([]string{"source_file"}, export.Header()...)); err != nil {
			return err
		}
	}

	for _, row := range rows {
		record := append([]string{filepath.Base(row.SourceFile)}, export.Record(row.Row)...)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// GetBufferStats returns current buffer statistics
func (sa *StreamingAggregator) GetBufferStats() (fileCount int, byteSize int64) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return len(sa.buffer), sa.bufferSize
}

// RowsWritten is the number of rows flushed so far.
func (sa *StreamingAggregator) RowsWritten() int {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.rowsWritten
}
