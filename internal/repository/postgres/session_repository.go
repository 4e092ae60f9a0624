// internal/repository/postgres/session_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/domain"
	"github.com/andresuchdata/inventory-analyzer/internal/repository"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analysis_sessions (
		session_id     TEXT PRIMARY KEY,
		filename       TEXT NOT NULL,
		total_products INTEGER NOT NULL DEFAULT 0,
		archive_key    TEXT NOT NULL DEFAULT '',
		data           JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_sessions_expires_at ON analysis_sessions (expires_at);
	CREATE TABLE IF NOT EXISTS analytics_events (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT REFERENCES analysis_sessions (session_id) ON DELETE CASCADE,
		event_type  TEXT NOT NULL,
		event_data  JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_analytics_events_type ON analytics_events (event_type);
`

type sessionRepository struct {
	db *DB
}

// NewSessionRepository stores sessions in Postgres.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// EnsureSchema creates the session tables when missing.
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

type sessionRow struct {
	domain.Session
	Data []byte `db:"data"`
}

func (r *sessionRepository) SaveSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO analysis_sessions (
				session_id, filename, total_products, archive_key, data, created_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (session_id)
			DO UPDATE SET
				filename = EXCLUDED.filename,
				total_products = EXCLUDED.total_products,
				archive_key = EXCLUDED.archive_key,
				data = EXCLUDED.data,
				expires_at = EXCLUDED.expires_at
		`
		_, err := tx.ExecContext(ctx, query,
			session.ID,
			session.Filename,
			session.TotalProducts,
			session.ArchiveKey,
			data,
			session.CreatedAt,
			session.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save session %s: %w", session.ID, err)
		}
		return nil
	})
}

func (r *sessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT session_id, filename, total_products, archive_key, data, created_at, expires_at
		FROM analysis_sessions
		WHERE session_id = $1 AND expires_at > NOW()
	`

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("error getting session %s: %w", id, err)
	}

	var snapshot analysis.Result
	if err := json.Unmarshal(row.Data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot %s: %w", id, err)
	}
	session := row.Session
	session.Snapshot = &snapshot
	return &session, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `DELETE FROM analysis_sessions WHERE expires_at <= $1 RETURNING session_id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return ids, nil
}

func (r *sessionRepository) RecordEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	var data []byte
	if len(event.Data) > 0 {
		var err error
		if data, err = json.Marshal(event.Data); err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
	}

	var sessionID sql.NullString
	if event.SessionID != "" {
		sessionID = sql.NullString{String: event.SessionID, Valid: true}
	}

	query := `
		INSERT INTO analytics_events (session_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID, string(event.Type), data); err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.Type, err)
	}
	return nil
}

func (r *sessionRepository) GetStats(ctx context.Context, now time.Time) (domain.UsageStats, error) {
	stats := domain.UsageStats{EventsByType: make(map[string]int)}

	query := `
		SELECT COUNT(*) AS active_sessions, COALESCE(SUM(total_products), 0) AS total_products_analyzed
		FROM analysis_sessions
		WHERE expires_at > $1
	`
	if err := r.db.GetContext(ctx, &stats, query, now); err != nil {
		return stats, fmt.Errorf("error getting session stats: %w", err)
	}

	var counts []struct {
		EventType string `db:"event_type"`
		Count     int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &counts, `SELECT event_type, COUNT(*) AS count FROM analytics_events GROUP BY event_type`); err != nil {
		return stats, fmt.Errorf("error getting event counts: %w", err)
	}
	for _, c := range counts {
		stats.EventsByType[c.EventType] = c.Count
	}
	return stats, nil
}
