package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Loaded once at startup and passed by reference; no package reads the
// environment on its own.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// External APIs
	FRED  FREDConfig
	Yahoo YahooConfig

	// Cache
	Cache CacheConfig

	// Database (indicator snapshots)
	Database DatabaseConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Fetching
	FetchWorkers   int
	RequestTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// FREDConfig holds FRED API configuration.
type FREDConfig struct {
	APIKey    string
	BaseURL   string
	RateLimit int // requests per minute
}

// YahooConfig holds Yahoo Finance configuration.
type YahooConfig struct {
	BaseURL string
}

// CacheConfig holds two-tier cache configuration.
type CacheConfig struct {
	Enabled       bool
	MaxMemorySize int
	DiskDir       string
	DefaultTTL    time.Duration
	FREDTTL       time.Duration
	YahooTTL      time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SchedulerConfig holds cron schedules for background jobs.
type SchedulerConfig struct {
	Enabled         bool
	RefreshSchedule string // cron spec for indicator refresh
	CleanupSchedule string // cron spec for cache cleanup
}

// Load reads configuration from environment variables.
// This is the only function in the repository that calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		FRED: FREDConfig{
			APIKey:    getEnv("FRED_API_KEY", ""),
			BaseURL:   getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
			RateLimit: getEnvAsInt("FRED_RATE_LIMIT", 120),
		},

		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},

		Cache: CacheConfig{
			Enabled:       getEnvAsBool("CACHE_ENABLED", true),
			MaxMemorySize: getEnvAsInt("CACHE_MAX_MEMORY_SIZE", 512),
			DiskDir:       getEnv("CACHE_DISK_DIR", "data/cache"),
			DefaultTTL:    getEnvAsDuration("CACHE_DEFAULT_TTL", "1h"),
			FREDTTL:       getEnvAsDuration("CACHE_FRED_TTL", "24h"),
			YahooTTL:      getEnvAsDuration("CACHE_YAHOO_TTL", "1h"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DATABASE_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", true),
			RefreshSchedule: getEnv("SCHEDULER_REFRESH_CRON", "0 15 * * * *"),
			CleanupSchedule: getEnv("SCHEDULER_CLEANUP_CRON", "0 0 3 * * *"),
		},

		FetchWorkers:   getEnvAsInt("FETCH_WORKERS", 5),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "30s"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DATABASE_ENABLED=true")
	}

	if c.FetchWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be at least 1")
	}

	if c.Cache.MaxMemorySize < 1 {
		return fmt.Errorf("CACHE_MAX_MEMORY_SIZE must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
