package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/cache"
	"github.com/andresuchdata/inventory-analyzer/internal/domain"
	"github.com/andresuchdata/inventory-analyzer/internal/export"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
	"github.com/andresuchdata/inventory-analyzer/internal/repository"
	"github.com/andresuchdata/inventory-analyzer/internal/storage"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrUploadTooLarge  = errors.New("upload exceeds size limit")
	ErrEmptyUpload     = errors.New("uploaded file is empty")
)

const (
	defaultSessionTTL   = 24 * time.Hour
	defaultMaxUpload    = 25 << 20
	uploadTopReorders   = 10
	defaultReorderLimit = 20
)

// AnalysisOptions tunes session lifetime and upload limits.
type AnalysisOptions struct {
	SessionTTL     time.Duration
	MaxUploadBytes int64
}

// AnalysisService turns uploads into sessions and answers queries against them.
type AnalysisService struct {
	analyzer *analysis.Analyzer
	repo     repository.SessionRepository
	cache    cache.SessionCache
	archive  *storage.Archive
	metrics  *metrics.Recorder
	opts     AnalysisOptions

	now   func() time.Time
	newID func() string
}

func NewAnalysisService(
	analyzer *analysis.Analyzer,
	repo repository.SessionRepository,
	cacheImpl cache.SessionCache,
	archive *storage.Archive,
	recorder *metrics.Recorder,
	opts AnalysisOptions,
) *AnalysisService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopSessionCache()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &AnalysisService{
		analyzer: analyzer,
		repo:     repo,
		cache:    cacheImpl,
		archive:  archive,
		metrics:  recorder,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// MaxUploadBytes is the largest accepted upload.
func (s *AnalysisService) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

// Upload decodes and analyzes a file, then stores the result as a new session.
func (s *AnalysisService) Upload(ctx context.Context, file domain.UploadedFile) (*domain.UploadResult, error) {
	return s.createSession(ctx, file, domain.EventUpload)
}

// Import behaves like Upload but records the session as imported from an external source.
func (s *AnalysisService) Import(ctx context.Context, file domain.UploadedFile) (*domain.UploadResult, error) {
	return s.createSession(ctx, file, domain.EventImport)
}

func (s *AnalysisService) createSession(ctx context.Context, file domain.UploadedFile, event domain.EventType) (*domain.UploadResult, error) {
	start := s.now()

	if int64(len(file.Data)) > s.opts.MaxUploadBytes {
		s.metrics.UploadFailed("too_large")
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrUploadTooLarge, len(file.Data), s.opts.MaxUploadBytes)
	}
	if len(file.Data) == 0 {
		s.metrics.UploadFailed("empty")
		return nil, ErrEmptyUpload
	}

	table, err := ingest.Decode(file.Filename, file.Data)
	if err != nil {
		s.metrics.UploadFailed("decode")
		return nil, err
	}

	result, err := s.analyzer.Process(table)
	if err != nil {
		s.metrics.UploadFailed(failureReason(err))
		return nil, err
	}

	session := &domain.Session{
		ID:            s.newID(),
		Filename:      file.Filename,
		TotalProducts: len(result.Rows),
		CreatedAt:     start,
		ExpiresAt:     start.Add(s.opts.SessionTTL),
		Snapshot:      result,
	}

	if key, err := s.archive.Store(ctx, session.ID, file.Filename, file.Data); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("analysis: archive upload failed")
	} else {
		session.ArchiveKey = key
	}

	if err := s.repo.SaveSession(ctx, session); err != nil {
		s.metrics.UploadFailed("store")
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if err := s.cache.SetSnapshot(ctx, session.ID, result, s.opts.SessionTTL); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("analysis: cache set snapshot failed")
	}

	s.recordEvent(ctx, session.ID, event, map[string]string{
		"filename": file.Filename,
		"products": strconv.Itoa(len(result.Rows)),
	})

	took := s.now().Sub(start)
	s.metrics.UploadSucceeded(result.Cleaning.OutputRows, len(result.Cleaning.DroppedRows), took)
	log.Info().
		Str("session_id", session.ID).
		Str("filename", file.Filename).
		Int("rows", len(result.Rows)).
		Int("dropped", len(result.Cleaning.DroppedRows)).
		Dur("took", took).
		Msg("analysis: session created")

	engine := s.analyzer.Engine()
	return &domain.UploadResult{
		SessionID:   session.ID,
		Filename:    session.Filename,
		ExpiresAt:   session.ExpiresAt,
		KPIs:        engine.KPIs(result.Rows),
		Mapping:     result.Mapping,
		Quality:     result.Quality,
		Cleaning:    result.Cleaning,
		TopReorders: engine.ReorderPlan(result.Rows, uploadTopReorders),
	}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, analysis.ErrMissingRequiredColumns):
		return "missing_columns"
	case errors.Is(err, analysis.ErrNoValidRows):
		return "no_valid_rows"
	default:
		return "error"
	}
}

// ResolveColumns maps headers to roles without processing any data.
func (s *AnalysisService) ResolveColumns(headers []string) (analysis.ColumnMapping, error) {
	return s.analyzer.ResolveAndValidate(headers)
}

// snapshot loads a session's rows from the cache or the repository.
func (s *AnalysisService) snapshot(ctx context.Context, sessionID string) (*analysis.Result, error) {
	if result, ok, err := s.cache.GetSnapshot(ctx, sessionID); err == nil && ok {
		s.metrics.CacheLookup(true)
		return result, nil
	} else if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("analysis: cache get snapshot failed")
	}
	s.metrics.CacheLookup(false)

	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSnapshot(ctx, sessionID, session.Snapshot, session.ExpiresAt.Sub(s.now())); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("analysis: cache set snapshot failed")
	}
	return session.Snapshot, nil
}

func (s *AnalysisService) session(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.Snapshot == nil {
		return nil, fmt.Errorf("%w: %s has no data", ErrSessionNotFound, sessionID)
	}
	if session.Expired(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

func (s *AnalysisService) KPIs(ctx context.Context, sessionID string) (analysis.KPIs, error) {
	s.metrics.Query("kpis")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analysis.KPIs{}, err
	}
	return s.analyzer.Engine().KPIs(result.Rows), nil
}

func (s *AnalysisService) PriorityReorders(ctx context.Context, sessionID string, limit int) ([]analysis.EnrichedRow, error) {
	s.metrics.Query("reorders")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultReorderLimit
	}
	return s.analyzer.Engine().PriorityReorders(result.Rows, limit), nil
}

func (s *AnalysisService) ReorderPlan(ctx context.Context, sessionID string, limit int) ([]analysis.ReorderRecommendation, error) {
	s.metrics.Query("reorder_plan")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultReorderLimit
	}
	return s.analyzer.Engine().ReorderPlan(result.Rows, limit), nil
}

func (s *AnalysisService) Categories(ctx context.Context, sessionID string) ([]analysis.CategoryStats, error) {
	s.metrics.Query("categories")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Engine().RankCategories(result.Rows), nil
}

func (s *AnalysisService) Movers(ctx context.Context, sessionID string, n int) (analysis.Movers, error) {
	s.metrics.Query("movers")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analysis.Movers{}, err
	}
	return s.analyzer.Engine().FastSlowMovers(result.Rows, n), nil
}

// Filter returns the session rows matching criteria, caching the result per criteria
// for no longer than the session lives.
func (s *AnalysisService) Filter(ctx context.Context, sessionID string, criteria analysis.FilterCriteria) ([]analysis.EnrichedRow, error) {
	s.metrics.Query("filter")

	rows, err := s.filtered(ctx, sessionID, criteria)
	if err != nil {
		return nil, err
	}

	if !criteria.IsEmpty() {
		s.recordEvent(ctx, sessionID, domain.EventFilter, map[string]string{
			"criteria": strings.Join(criteria.Parts(), ";"),
			"matches":  strconv.Itoa(len(rows)),
		})
	}
	return rows, nil
}

func (s *AnalysisService) filtered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria) ([]analysis.EnrichedRow, error) {
	if rows, ok, err := s.cache.GetFiltered(ctx, sessionID, criteria); err == nil && ok {
		s.metrics.CacheLookup(true)
		return rows, nil
	} else if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("analysis: cache get filtered failed")
	}
	s.metrics.CacheLookup(false)

	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ttl := session.ExpiresAt.Sub(s.now())

	if err := s.cache.SetSnapshot(ctx, sessionID, session.Snapshot, ttl); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("analysis: cache set snapshot failed")
	}

	rows := s.analyzer.Engine().Filter(session.Snapshot.Rows, criteria)
	if rows == nil {
		rows = make([]analysis.EnrichedRow, 0)
	}

	if err := s.cache.SetFiltered(ctx, sessionID, criteria, rows, ttl); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("analysis: cache set filtered failed")
	}
	return rows, nil
}

func (s *AnalysisService) FilterOptions(ctx context.Context, sessionID string) (analysis.FilterOptions, error) {
	s.metrics.Query("filter_options")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analysis.FilterOptions{}, err
	}
	return s.analyzer.Engine().FilterOptions(result.Rows), nil
}

func (s *AnalysisService) Insights(ctx context.Context, sessionID string) (analysis.Insights, error) {
	s.metrics.Query("insights")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analysis.Insights{}, err
	}
	return s.analyzer.Engine().Insights(result.Rows), nil
}

// ColumnsInfo reports how the session's columns were interpreted and cleaned.
func (s *AnalysisService) ColumnsInfo(ctx context.Context, sessionID string) (*domain.ColumnsInfo, error) {
	s.metrics.Query("columns")
	session, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := session.Snapshot
	return &domain.ColumnsInfo{
		SessionID: session.ID,
		Filename:  session.Filename,
		Mapping:   result.Mapping,
		Quality:   result.Quality,
		Cleaning:  result.Cleaning,
		Summary: domain.ProcessingSummary{
			RawRows:       result.Cleaning.InputRows,
			ProcessedRows: result.Cleaning.OutputRows,
			DroppedRows:   len(result.Cleaning.DroppedRows),
			OutlierRows:   len(result.Quality.OutlierRows),
		},
	}, nil
}

// Export writes the session rows matching criteria as CSV.
func (s *AnalysisService) Export(ctx context.Context, sessionID string, criteria analysis.FilterCriteria, w io.Writer) (int, error) {
	s.metrics.Query("export")
	result, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	rows := s.analyzer.Engine().Filter(result.Rows, criteria)
	if err := export.WriteCSV(w, rows); err != nil {
		return 0, fmt.Errorf("failed to export session %s: %w", sessionID, err)
	}

	s.recordEvent(ctx, sessionID, domain.EventExport, map[string]string{"rows": strconv.Itoa(len(rows))})
	return len(rows), nil
}

func (s *AnalysisService) Stats(ctx context.Context) (domain.UsageStats, error) {
	stats, err := s.repo.GetStats(ctx, s.now())
	if err != nil {
		return stats, err
	}
	s.metrics.SetActiveSessions(stats.ActiveSessions)
	return stats, nil
}

// CleanupExpired removes sessions past their expiry, drops their cached data
// and returns how many were deleted.
func (s *AnalysisService) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.cache.InvalidateSession(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("analysis: cache invalidate failed")
		}
	}
	if len(ids) > 0 {
		log.Info().Int("deleted", len(ids)).Msg("analysis: expired sessions removed")
	}
	return len(ids), nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (s *AnalysisService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				log.Error().Err(err).Msg("analysis: session cleanup failed")
			}
		}
	}
}

func (s *AnalysisService) recordEvent(ctx context.Context, sessionID string, t domain.EventType, data map[string]string) {
	event := domain.AnalyticsEvent{
		SessionID: sessionID,
		Type:      t,
		Data:      data,
		CreatedAt: s.now(),
	}
	if err := s.repo.RecordEvent(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", string(t)).Msg("analysis: record event failed")
	}
}
