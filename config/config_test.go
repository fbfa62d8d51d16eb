package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/config"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, config.ModeStorefront, cfg.App.Mode)
	assert.Equal(t, "http://localhost:4000/api", cfg.API.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.API.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ListStaleTime)
	assert.Equal(t, 2*time.Minute, cfg.Cache.SearchStaleTime)
	assert.Greater(t, cfg.Cache.GCTime, cfg.Cache.ListStaleTime)
	assert.Greater(t, cfg.Cache.GCTime, cfg.Cache.PagedStaleTime)
	assert.Equal(t, 1, cfg.Cache.Retry)
	assert.Equal(t, 5, cfg.Catalog.LowStockThreshold)
}

func TestFromViper_RejectsUnknownMode(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("APP_MODE", "kiosk")

	_, err := config.FromViper(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid APP_MODE")
}

func TestFromViper_RejectsUnknownStore(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("CACHE_STORE", "memcached")

	_, err := config.FromViper(v)
	assert.Error(t, err)
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "APP_MODE=backend\nAPI_BASE_URL=http://api.test/api\nCACHE_SEARCH_STALE_TIME=30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.ModeBackend, cfg.App.Mode)
	assert.Equal(t, "http://api.test/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Cache.SearchStaleTime)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.App.Port)
}

func TestFromViper_RejectsGCTimeNotAboveStaleTime(t *testing.T) {
	for _, gc := range []string{"5m", "1m"} {
		v := viper.New()
		config.SetDefaults(v)
		v.Set("CACHE_GC_TIME", gc)

		_, err := config.FromViper(v)
		require.Error(t, err, gc)
		assert.Contains(t, err.Error(), "CACHE_GC_TIME")
	}
}

func TestFromViper_ZeroGCTimeDisablesExpiry(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("CACHE_GC_TIME", "0s")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Zero(t, cfg.Cache.GCTime)
}
