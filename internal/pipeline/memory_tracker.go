package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryTracker keeps run bookkeeping in process, for runs without a database.
type MemoryTracker struct {
	mu     sync.Mutex
	runs   map[int64]*PipelineRun
	jobs   map[int64]*FileJob
	nextID int64
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		runs: make(map[int64]*PipelineRun),
		jobs: make(map[int64]*FileJob),
	}
}

func (m *MemoryTracker) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryTracker) CreatePipelineRun(_ context.Context, run *PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = m.id()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryTracker) UpdatePipelineRun(_ context.Context, run *PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("pipeline run %d not found", run.ID)
	}
	stored.Status = run.Status
	stored.TotalFiles = run.TotalFiles
	stored.CompletedAt = run.CompletedAt
	stored.ErrorMessage = run.ErrorMessage
	return nil
}

func (m *MemoryTracker) GetPipelineRun(_ context.Context, id int64) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("pipeline run %d not found", id)
	}
	cp := *run
	return &cp, nil
}

func (m *MemoryTracker) GetPipelineRunByDate(_ context.Context, pipelineName string, date time.Time) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.PipelineName == pipelineName && run.Date.Equal(date) {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryTracker) CreateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.id()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryTracker) UpdateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("file job %d not found", job.ID)
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryTracker) GetFailedFileJobs(_ context.Context, pipelineName string, maxRetries int) ([]*FileJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []*FileJob
	for _, job := range m.jobs {
		run := m.runs[job.PipelineRunID]
		if run == nil || run.PipelineName != pipelineName {
			continue
		}
		if job.Status == FileStatusFailed && job.RetryCount < maxRetries {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (m *MemoryTracker) IncrementProcessedFiles(_ context.Context, runID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.ProcessedFiles++
	}
	return nil
}

func (m *MemoryTracker) AddRowCount(_ context.Context, runID int64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[runID]; ok {
		run.TotalRows += count
	}
	return nil
}

func (m *MemoryTracker) ListRuns(_ context.Context, since time.Time) ([]*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []*PipelineRun
	for _, run := range m.runs {
		if !run.StartedAt.Before(since) {
			cp := *run
			runs = append(runs, &cp)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

var _ RunTracker = (*MemoryTracker)(nil)
