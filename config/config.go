package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeStorefront = "storefront"
	ModeBackend    = "backend"
)

type Config struct {
	App      AppConfig
	API      APIConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Log      LogConfig
	Catalog  CatalogConfig
}

type AppConfig struct {
	Mode string
	Port string
	Env  string
}

// APIConfig points the storefront at the product backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration // zero means no timeout
}

type CacheConfig struct {
	Store           string // memory or redis
	MaxEntries      int
	GCTime          time.Duration
	ListStaleTime   time.Duration
	SearchStaleTime time.Duration
	PagedStaleTime  time.Duration
	Retry           int
	RetryDelay      time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Driver string // sqlite, postgres or memory
	DSN    string
}

type RabbitMQConfig struct {
	URL string // empty disables event publishing
}

type LogConfig struct {
	Level  string
	Format string
}

type CatalogConfig struct {
	LowStockThreshold int
	PlaceholderImage  string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_MODE", ModeStorefront)
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("API_BASE_URL", "http://localhost:4000/api")
	v.SetDefault("API_TIMEOUT", "0s")

	v.SetDefault("CACHE_STORE", "memory")
	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	// Must outlive every stale time so stale entries can still be served.
	v.SetDefault("CACHE_GC_TIME", "30m")
	v.SetDefault("CACHE_LIST_STALE_TIME", "5m")
	v.SetDefault("CACHE_SEARCH_STALE_TIME", "2m")
	v.SetDefault("CACHE_PAGED_STALE_TIME", "5m")
	v.SetDefault("CACHE_RETRY", 1)
	v.SetDefault("CACHE_RETRY_DELAY", "1s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file::memory:?cache=shared")

	v.SetDefault("RABBITMQ_URL", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("CATALOG_PLACEHOLDER_IMAGE", "/static/placeholder.png")
}

// LoadConfig reads configuration from the environment and, when present, from
// the file named by envFile (usually ".env").
func LoadConfig(envFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", envFile, err)
			}
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Mode: v.GetString("APP_MODE"),
			Port: v.GetString("APP_PORT"),
			Env:  v.GetString("APP_ENV"),
		},
		API: APIConfig{
			BaseURL: v.GetString("API_BASE_URL"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		Cache: CacheConfig{
			Store:           v.GetString("CACHE_STORE"),
			MaxEntries:      v.GetInt("CACHE_MAX_ENTRIES"),
			GCTime:          v.GetDuration("CACHE_GC_TIME"),
			ListStaleTime:   v.GetDuration("CACHE_LIST_STALE_TIME"),
			SearchStaleTime: v.GetDuration("CACHE_SEARCH_STALE_TIME"),
			PagedStaleTime:  v.GetDuration("CACHE_PAGED_STALE_TIME"),
			Retry:           v.GetInt("CACHE_RETRY"),
			RetryDelay:      v.GetDuration("CACHE_RETRY_DELAY"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("DATABASE_DRIVER"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		RabbitMQ: RabbitMQConfig{
			URL: v.GetString("RABBITMQ_URL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Catalog: CatalogConfig{
			LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
			PlaceholderImage:  v.GetString("CATALOG_PLACEHOLDER_IMAGE"),
		},
	}

	switch cfg.App.Mode {
	case ModeStorefront, ModeBackend:
	default:
		return nil, fmt.Errorf("invalid APP_MODE %q: must be %q or %q", cfg.App.Mode, ModeStorefront, ModeBackend)
	}
	switch cfg.Cache.Store {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("invalid CACHE_STORE %q: must be memory or redis", cfg.Cache.Store)
	}
	if gc := cfg.Cache.GCTime; gc != 0 {
		for name, stale := range map[string]time.Duration{
			"CACHE_LIST_STALE_TIME":   cfg.Cache.ListStaleTime,
			"CACHE_SEARCH_STALE_TIME": cfg.Cache.SearchStaleTime,
			"CACHE_PAGED_STALE_TIME":  cfg.Cache.PagedStaleTime,
		} {
			if gc <= stale {
				return nil, fmt.Errorf("CACHE_GC_TIME %s must be longer than %s %s (0 disables expiry)", gc, name, stale)
			}
		}
	}
	if cfg.Cache.Retry < 0 {
		cfg.Cache.Retry = 0
	}
	if cfg.Catalog.LowStockThreshold < 0 {
		return nil, fmt.Errorf("LOW_STOCK_THRESHOLD must be >= 0, got %d", cfg.Catalog.LowStockThreshold)
	}

	return cfg, nil
}
