package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/domain"
)

type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	events   []domain.AnalyticsEvent
	nextID   int64
	now      func() time.Time
}

// NewMemorySessionRepository keeps sessions in process memory.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

func (r *memorySessionRepository) SaveSession(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *memorySessionRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.Expired(r.now()) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memorySessionRepository) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []string
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)

	kept := r.events[:0]
	for _, e := range r.events {
		if _, ok := r.sessions[e.SessionID]; ok || e.SessionID == "" {
			kept = append(kept, e)
		}
	}
	r.events = kept

	return deleted, nil
}

func (r *memorySessionRepository) RecordEvent(_ context.Context, event domain.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	event.ID = r.nextID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now()
	}
	r.events = append(r.events, event)
	return nil
}

func (r *memorySessionRepository) GetStats(_ context.Context, now time.Time) (domain.UsageStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.UsageStats{EventsByType: make(map[string]int)}
	for _, s := range r.sessions {
		if s.Expired(now) {
			continue
		}
		stats.ActiveSessions++
		stats.TotalProductsAnalyzed += s.TotalProducts
	}
	for _, e := range r.events {
		stats.EventsByType[string(e.Type)]++
	}
	return stats, nil
}
