package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
)

// Orchestrator coordinates running a Pipeline over a set of local files grouped by snapshot date.
type Orchestrator struct {
	tracker RunTracker
	cfg     PipelineConfig
	metrics *metrics.Recorder
	onFlush FlushFunc
	makeW   func(p Pipeline, cfg PipelineConfig, tracker RunTracker, recorder *metrics.Recorder, onFlush FlushFunc) *Worker
}

// NewOrchestrator creates a new Orchestrator. A nil tracker keeps run state in memory.
func NewOrchestrator(tracker RunTracker, cfg PipelineConfig, recorder *metrics.Recorder, onFlush FlushFunc) *Orchestrator {
	if tracker == nil {
		tracker = NewMemoryTracker()
	}
	return &Orchestrator{
		tracker: tracker,
		cfg:     cfg,
		metrics: recorder,
		onFlush: onFlush,
		makeW:   NewWorker,
	}
}

// Run groups the provided files by snapshot date (using p.GetSnapshotDate) and
// runs a Worker batch for each date, oldest first.
func (o *Orchestrator) Run(ctx context.Context, p Pipeline, files []string) ([]*PipelineRun, error) {
	if len(files) == 0 {
		return nil, nil
	}

	byDate := make(map[time.Time][]string)
	for _, f := range files {
		date, err := p.GetSnapshotDate(filepath.Base(f))
		if err != nil {
			return nil, fmt.Errorf("failed to get snapshot date for %s: %w", f, err)
		}

		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		byDate[date] = append(byDate[date], f)
	}

	dates := make([]time.Time, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	worker := o.makeW(p, o.cfg, o.tracker, o.metrics, o.onFlush)

	runs := make([]*PipelineRun, 0, len(dates))
	for _, date := range dates {
		run, err := worker.ProcessBatch(ctx, date, byDate[date])
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			return runs, fmt.Errorf("failed to process batch for %s: %w", date.Format("2006-01-02"), err)
		}
	}

	return runs, nil
}

// Retry reprocesses failed file jobs that still have attempts left.
func (o *Orchestrator) Retry(ctx context.Context, p Pipeline) error {
	return o.makeW(p, o.cfg, o.tracker, o.metrics, o.onFlush).RetryFailed(ctx)
}
