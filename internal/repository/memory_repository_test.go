package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/domain"
)

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := NewMemorySessionRepository().(*memorySessionRepository)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.SaveSession(ctx, &domain.Session{ID: "live", TotalProducts: 10, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.SaveSession(ctx, &domain.Session{ID: "old", TotalProducts: 5, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.RecordEvent(ctx, domain.AnalyticsEvent{SessionID: "live", Type: domain.EventUpload}))
	require.NoError(t, repo.RecordEvent(ctx, domain.AnalyticsEvent{SessionID: "old", Type: domain.EventUpload}))
	require.NoError(t, repo.RecordEvent(ctx, domain.AnalyticsEvent{SessionID: "live", Type: domain.EventFilter}))

	got, err := repo.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, 10, got.TotalProducts)

	_, err = repo.GetSession(ctx, "old")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = repo.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	stats, err := repo.GetStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 10, stats.TotalProductsAnalyzed)
	assert.Equal(t, 2, stats.EventsByType["upload"])

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, deleted)

	stats, err = repo.GetStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventsByType["upload"])
	assert.Equal(t, 1, stats.EventsByType["filter"])
}

func TestMemorySessionRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	s := &domain.Session{ID: "a", Filename: "one.csv", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.SaveSession(ctx, s))
	s.Filename = "changed.csv"

	got, err := repo.GetSession(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one.csv", got.Filename)
}
