// internal/domain/models.go
package domain

import (
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

// Session is one processed upload kept until it expires.
type Session struct {
	ID            string           `json:"id" db:"session_id"`
	Filename      string           `json:"filename" db:"filename"`
	TotalProducts int              `json:"total_products" db:"total_products"`
	ArchiveKey    string           `json:"archive_key,omitempty" db:"archive_key"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at" db:"expires_at"`
	Snapshot      *analysis.Result `json:"-" db:"-"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AnalyticsEvent records a user action against a session.
type AnalyticsEvent struct {
	ID        int64             `json:"id" db:"id"`
	SessionID string            `json:"session_id" db:"session_id"`
	Type      EventType         `json:"event_type" db:"event_type"`
	Data      map[string]string `json:"event_data,omitempty" db:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// UsageStats summarizes stored sessions and events.
type UsageStats struct {
	ActiveSessions        int            `json:"active_sessions" db:"active_sessions"`
	TotalProductsAnalyzed int            `json:"total_products_analyzed" db:"total_products_analyzed"`
	EventsByType          map[string]int `json:"events_by_type"`
}

// UploadResult is returned after an upload has been processed.
type UploadResult struct {
	SessionID   string                           `json:"session_id"`
	Filename    string                           `json:"filename"`
	ExpiresAt   time.Time                        `json:"expires_at"`
	KPIs        analysis.KPIs                    `json:"kpis"`
	Mapping     analysis.ColumnMapping           `json:"mapping"`
	Quality     analysis.QualityReport           `json:"quality"`
	Cleaning    analysis.CleaningLog             `json:"cleaning"`
	TopReorders []analysis.ReorderRecommendation `json:"top_reorders"`
}

// ColumnsInfo describes how a session's columns were interpreted.
type ColumnsInfo struct {
	SessionID string                 `json:"session_id"`
	Filename  string                 `json:"filename"`
	Mapping   analysis.ColumnMapping `json:"mapping"`
	Quality   analysis.QualityReport `json:"quality"`
	Cleaning  analysis.CleaningLog   `json:"cleaning"`
	Summary   ProcessingSummary      `json:"summary"`
}

// ProcessingSummary counts rows through the cleaning stages.
type ProcessingSummary struct {
	RawRows       int `json:"raw_rows"`
	ProcessedRows int `json:"processed_rows"`
	DroppedRows   int `json:"dropped_rows"`
	OutlierRows   int `json:"outlier_rows"`
}

// UploadedFile is a file received for processing.
type UploadedFile struct {
	Filename string
	Data     []byte
}
