package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/config"
)

func TestFilterKey(t *testing.T) {
	a := analysis.FilterCriteria{Category: "Tools", Search: "Widget"}
	b := analysis.FilterCriteria{Search: "widget", Category: "Tools"}

	assert.Equal(t, filterKey("s1", a), filterKey("s1", b))
	assert.NotEqual(t, filterKey("s1", a), filterKey("s2", a))
	assert.NotEqual(t, filterKey("s1", a), filterKey("s1", analysis.FilterCriteria{Category: "Tools"}))
	assert.Equal(t, "session:s1:filter:default", filterKey("s1", analysis.FilterCriteria{}))
	assert.True(t, strings.HasPrefix(snapshotKey("s1"), sessionPrefix("s1")))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisPassword: "pw", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache.internal:6380/1"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestNewSessionCache_Disabled(t *testing.T) {
	c, err := NewSessionCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	_, ok, err := c.GetSnapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.SetFiltered(context.Background(), "s1", analysis.FilterCriteria{}, nil, time.Minute))
}

func TestRedisSessionCache_CapTTL(t *testing.T) {
	c := &redisSessionCache{ttl: time.Hour}

	assert.Equal(t, 10*time.Minute, c.capTTL(10*time.Minute))
	assert.Equal(t, time.Hour, c.capTTL(3*time.Hour))
	assert.Equal(t, time.Hour, c.capTTL(0))
}
