package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
)

// Worker processes files for a specific pipeline
type Worker struct {
	pipeline   Pipeline
	config     PipelineConfig
	tracker    RunTracker
	metrics    *metrics.Recorder
	onFlush    FlushFunc
	aggregator *StreamingAggregator
}

// NewWorker creates a new pipeline worker. recorder and onFlush may be nil.
func NewWorker(p Pipeline, config PipelineConfig, tracker RunTracker, recorder *metrics.Recorder, onFlush FlushFunc) *Worker {
	if tracker == nil {
		tracker = NewMemoryTracker()
	}
	return &Worker{
		pipeline: p,
		config:   config,
		tracker:  tracker,
		metrics:  recorder,
		onFlush:  onFlush,
	}
}

// ProcessBatch processes a batch of files for a specific date
func (w *Worker) ProcessBatch(ctx context.Context, date time.Time, files []string) (*PipelineRun, error) {
	logger := log.With().Str("pipeline", w.pipeline.Name()).Str("date", date.Format("2006-01-02")).Logger()
	logger.Info().Int("files", len(files)).Msg("starting batch")

	run, err := w.getOrCreatePipelineRun(ctx, date, len(files))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}

	w.aggregator = NewStreamingAggregator(w.pipeline, w.config, date, w.onFlush)

	fileJobs := make([]*FileJob, len(files))
	for i, file := range files {
		job := &FileJob{
			PipelineRunID: run.ID,
			FilePath:      file,
			Status:        FileStatusQueued,
		}
		if err := w.tracker.CreateFileJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create file job: %w", err)
		}
		fileJobs[i] = job
	}

	run.Status = StatusProcessing
	if err := w.tracker.UpdatePipelineRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update pipeline run: %w", err)
	}

	if err := w.processFilesParallel(ctx, run, fileJobs); err != nil {
		w.finishRun(ctx, run, StatusFailed, err.Error())
		return run, err
	}

	if err := w.aggregator.Finalize(ctx); err != nil {
		w.finishRun(ctx, run, StatusFailed, fmt.Sprintf("aggregation failed: %v", err))
		return run, fmt.Errorf("failed to finalize aggregation: %w", err)
	}

	if err := w.finishRun(ctx, run, StatusCompleted, ""); err != nil {
		return run, fmt.Errorf("failed to complete pipeline run: %w", err)
	}

	if stored, err := w.tracker.GetPipelineRun(ctx, run.ID); err == nil {
		run = stored
	}
	logger.Info().
		Int("processed_files", run.ProcessedFiles).
		Int("rows", run.TotalRows).
		Str("output", w.aggregator.OutputPath()).
		Msg("batch completed")

	return run, nil
}

func (w *Worker) finishRun(ctx context.Context, run *PipelineRun, status PipelineStatus, message string) error {
	now := time.Now()
	run.Status = status
	run.ErrorMessage = message
	run.CompletedAt = &now
	err := w.tracker.UpdatePipelineRun(ctx, run)
	if err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to update pipeline run")
	}
	return err
}

// processFilesParallel processes every job, at most WorkerCount at a time.
// A failing file does not stop the others; the first failure is returned.
func (w *Worker) processFilesParallel(ctx context.Context, run *PipelineRun, jobs []*FileJob) error {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	var g errgroup.Group
	g.SetLimit(workerCount)

	for _, job := range jobs {
		job := job
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			err := w.processFile(ctx, run, job)
			w.metrics.BatchFile(err == nil)
			if err != nil {
				log.Error().Err(err).
					Str("pipeline", w.pipeline.Name()).
					Str("file", job.FilePath).
					Msg("failed to process file")
			}
			return err
		})
	}

	return g.Wait()
}

// processFile processes a single file
func (w *Worker) processFile(ctx context.Context, run *PipelineRun, job *FileJob) error {
	startTime := time.Now()

	job.Status = FileStatusProcessing
	if err := w.tracker.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if err := w.pipeline.Validate(job.FilePath); err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("validation failed: %w", err))
	}

	rows, err := w.pipeline.Transform(ctx, job.FilePath)
	if err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("transformation failed: %w", err))
	}

	if err := w.aggregator.AddFileData(ctx, rows); err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("aggregation failed: %w", err))
	}

	job.Status = FileStatusCompleted
	job.ErrorMessage = ""
	now := time.Now()
	job.ProcessedAt = &now
	if err := w.tracker.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if err := w.tracker.IncrementProcessedFiles(ctx, run.ID); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to increment processed files")
	}
	if err := w.tracker.AddRowCount(ctx, run.ID, len(rows)); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("failed to add row count")
	}

	log.Info().
		Str("pipeline", w.pipeline.Name()).
		Str("file", job.FilePath).
		Int("rows", len(rows)).
		Dur("took", time.Since(startTime)).
		Msg("file processed")

	return nil
}

// markJobFailed records the failure and bumps the retry counter
func (w *Worker) markJobFailed(ctx context.Context, job *FileJob, cause error) error {
	job.Status = FileStatusFailed
	job.ErrorMessage = cause.Error()
	job.RetryCount++

	if err := w.tracker.UpdateFileJob(ctx, job); err != nil {
		log.Warn().Err(err).Int64("job_id", job.ID).Msg("failed to update job status")
	}

	if job.RetryCount < w.config.RetryAttempts {
		log.Info().
			Str("file", job.FilePath).
			Int("attempt", job.RetryCount).
			Int("max_attempts", w.config.RetryAttempts).
			Msg("file eligible for retry")
	}

	return cause
}

// getOrCreatePipelineRun gets or creates a pipeline run for the date
func (w *Worker) getOrCreatePipelineRun(ctx context.Context, date time.Time, totalFiles int) (*PipelineRun, error) {
	run, err := w.tracker.GetPipelineRunByDate(ctx, w.pipeline.Name(), date)
	if err != nil {
		return nil, err
	}

	if run != nil {
		if run.TotalFiles != totalFiles {
			run.TotalFiles = totalFiles
			if err := w.tracker.UpdatePipelineRun(ctx, run); err != nil {
				return nil, err
			}
		}
		return run, nil
	}

	run = &PipelineRun{
		PipelineName: w.pipeline.Name(),
		Date:         date,
		Status:       StatusPending,
		TotalFiles:   totalFiles,
		StartedAt:    time.Now(),
	}

	if err := w.tracker.CreatePipelineRun(ctx, run); err != nil {
		return nil, err
	}

	return run, nil
}

// RetryFailed retries all failed jobs for this pipeline, appending to each run's existing output
func (w *Worker) RetryFailed(ctx context.Context) error {
	jobs, err := w.tracker.GetFailedFileJobs(ctx, w.pipeline.Name(), w.config.RetryAttempts)
	if err != nil {
		return fmt.Errorf("failed to get failed jobs: %w", err)
	}

	if len(jobs) == 0 {
		log.Info().Str("pipeline", w.pipeline.Name()).Msg("no failed jobs to retry")
		return nil
	}

	log.Info().Str("pipeline", w.pipeline.Name()).Int("jobs", len(jobs)).Msg("retrying failed jobs")

	jobsByRun := make(map[int64][]*FileJob)
	var order []int64
	for _, job := range jobs {
		if _, seen := jobsByRun[job.PipelineRunID]; !seen {
			order = append(order, job.PipelineRunID)
		}
		jobsByRun[job.PipelineRunID] = append(jobsByRun[job.PipelineRunID], job)
	}

	for _, runID := range order {
		run, err := w.tracker.GetPipelineRun(ctx, runID)
		if err != nil {
			log.Warn().Err(err).Int64("run_id", runID).Msg("failed to load run")
			continue
		}

		w.aggregator = NewStreamingAggregator(w.pipeline, w.config, run.Date, w.onFlush)
		w.aggregator.Resume()

		retryErr := w.processFilesParallel(ctx, run, jobsByRun[runID])
		if err := w.aggregator.Finalize(ctx); err != nil {
			log.Warn().Err(err).Int64("run_id", runID).Msg("failed to finalize retried run")
			continue
		}
		if retryErr != nil {
			log.Warn().Err(retryErr).Int64("run_id", runID).Msg("retry left failed files")
			continue
		}

		w.finishRun(ctx, run, StatusCompleted, "")
	}

	return nil
}
