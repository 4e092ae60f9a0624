// internal/repository/session_repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/domain"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// SessionRepository stores processed uploads with their expiry.
type SessionRepository interface {
	SaveSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error
	GetStats(ctx context.Context, now time.Time) (domain.UsageStats, error)
}
