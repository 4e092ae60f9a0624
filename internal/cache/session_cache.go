package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/config"
)

const (
	sessionKeyPrefix     = "session"
	sessionScanBatchSize = 100
)

// SessionCache keeps decoded session snapshots and filter results close to the API.
type SessionCache interface {
	GetSnapshot(ctx context.Context, sessionID string) (*analysis.Result, bool, error)
	SetSnapshot(ctx context.Context, sessionID string, result *analysis.Result, ttl time.Duration) error
	GetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria) ([]analysis.EnrichedRow, bool, error)
	SetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria, rows []analysis.EnrichedRow, ttl time.Duration) error
	InvalidateSession(ctx context.Context, sessionID string) error
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSessionCache struct{}

// NewSessionCache connects to redis when caching is enabled, else returns a noop cache.
func NewSessionCache(cfg config.CacheConfig) (SessionCache, error) {
	if !cfg.Enabled {
		return &noopSessionCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSessionCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopSessionCache() SessionCache {
	return &noopSessionCache{}
}

func (c *redisSessionCache) GetSnapshot(ctx context.Context, sessionID string) (*analysis.Result, bool, error) {
	var result analysis.Result
	ok, err := c.get(ctx, snapshotKey(sessionID), &result)
	if !ok || err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *redisSessionCache) SetSnapshot(ctx context.Context, sessionID string, result *analysis.Result, ttl time.Duration) error {
	return c.set(ctx, snapshotKey(sessionID), result, c.capTTL(ttl))
}

func (c *redisSessionCache) GetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria) ([]analysis.EnrichedRow, bool, error) {
	var rows []analysis.EnrichedRow
	ok, err := c.get(ctx, filterKey(sessionID, criteria), &rows)
	if !ok || err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

func (c *redisSessionCache) SetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria, rows []analysis.EnrichedRow, ttl time.Duration) error {
	return c.set(ctx, filterKey(sessionID, criteria), rows, c.capTTL(ttl))
}

// capTTL keeps entries from outliving the configured cache TTL.
func (c *redisSessionCache) capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.ttl {
		return c.ttl
	}
	return ttl
}

func (c *redisSessionCache) InvalidateSession(ctx context.Context, sessionID string) error {
	return deleteKeysWithPrefix(ctx, c.client, sessionPrefix(sessionID), sessionScanBatchSize)
}

func (c *redisSessionCache) get(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode session cache %s: %w", key, err)
	}
	return true, nil
}

func (c *redisSessionCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode session cache %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopSessionCache) GetSnapshot(ctx context.Context, sessionID string) (*analysis.Result, bool, error) {
	return nil, false, nil
}

func (n *noopSessionCache) SetSnapshot(ctx context.Context, sessionID string, result *analysis.Result, ttl time.Duration) error {
	return nil
}

func (n *noopSessionCache) GetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria) ([]analysis.EnrichedRow, bool, error) {
	return nil, false, nil
}

func (n *noopSessionCache) SetFiltered(ctx context.Context, sessionID string, criteria analysis.FilterCriteria, rows []analysis.EnrichedRow, ttl time.Duration) error {
	return nil
}

func (n *noopSessionCache) InvalidateSession(ctx context.Context, sessionID string) error {
	return nil
}

func sessionPrefix(sessionID string) string {
	return fmt.Sprintf("%s:%s:", sessionKeyPrefix, sessionID)
}

func snapshotKey(sessionID string) string {
	return sessionPrefix(sessionID) + "snapshot"
}

func filterKey(sessionID string, criteria analysis.FilterCriteria) string {
	return sessionPrefix(sessionID) + "filter:" + filterHash(criteria)
}

func filterHash(criteria analysis.FilterCriteria) string {
	parts := criteria.Parts()
	if len(parts) == 0 {
		return "default"
	}

	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
