package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted in STORAGE_DRIVER
const (
	StorageSQLite   = "sqlite3"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	APIBaseURL       string
	LogLevel         string
	Port             string
	StorageDriver    string
	StorageDSN       string
	RedisAddr        string
	RedisPassword    string
	StorageKey       string
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	HTTPTimeout      time.Duration
	RefreshInterval  time.Duration
}

// Load loads configuration from a .env file, an optional toyrent.yaml and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set some other way.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE_DRIVER", StorageSQLite)
	v.SetDefault("STORAGE_DSN", "toyrent.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("STORAGE_KEY", "toyrent-storage")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_DELAY", time.Second)
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("REFRESH_INTERVAL", time.Duration(0))

	v.SetConfigName("toyrent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		APIBaseURL:       strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Port:             v.GetString("PORT"),
		StorageDriver:    v.GetString("STORAGE_DRIVER"),
		StorageDSN:       v.GetString("STORAGE_DSN"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		StorageKey:       v.GetString("STORAGE_KEY"),
		RetryMaxAttempts: v.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryBaseDelay:   v.GetDuration("RETRY_BASE_DELAY"),
		HTTPTimeout:      v.GetDuration("HTTP_TIMEOUT"),
		RefreshInterval:  v.GetDuration("REFRESH_INTERVAL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL environment variable is required")
	}
	switch c.StorageDriver {
	case StorageSQLite, StoragePostgres, StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("STORAGE_KEY must not be empty")
	}
	return nil
}
