package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg := LoadFrom(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 24, cfg.Session.TTLHours)
	assert.Equal(t, int64(25<<20), cfg.App.UploadMaxBytes)
	assert.Equal(t, "none", cfg.Storage.Driver)
	assert.Equal(t, 50.0, cfg.Analysis.OrderingCost)
	assert.Equal(t, 0.25, cfg.Analysis.HoldingRate)
	assert.Equal(t, 14.0, cfg.Analysis.LeadTimeDays)
	assert.Equal(t, 365.0, cfg.Analysis.NoSalesDaysOfSupply)
}

func TestLoadFrom_Env(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("SESSION_STORE", "Postgres")
	t.Setenv("ANALYSIS_ORDERING_COST", "75")
	t.Setenv("CACHE_ENABLED", "true")

	cfg := LoadFrom(viper.New())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Session.Store)
	assert.Equal(t, 75.0, cfg.Analysis.OrderingCost)
	assert.True(t, cfg.Cache.Enabled)
}
