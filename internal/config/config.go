package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/checkfox/go_reachout/internal/reachout"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	API      APIConfig
	Desk     DeskConfig
	Backend  BackendConfig
	Cache    CacheConfig
	Worker   WorkerConfig
	ReachOut ReachOutConfig
	Auth     AuthConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// APIConfig holds lead backend server settings
type APIConfig struct {
	Port string
	Host string
}

// DeskConfig holds the agent desk server settings
type DeskConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

// BackendConfig holds settings for the desk's client of the lead backend
type BackendConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	SyncBuffer int
}

// Cache types
const (
	CacheTypeSQLite = "sqlite"
	CacheTypeRedis  = "redis"
	CacheTypeMemory = "memory"
)

// CacheConfig holds local lead cache settings
type CacheConfig struct {
	Type          string // "sqlite", "redis" or "memory"
	SQLitePath    string
	RedisURL      string
	RedisPassword string
	RedisDB       int
	Key           string
}

// WorkerConfig holds worker settings
type WorkerConfig struct {
	PollInterval  time.Duration
	Concurrency   int
	SweepInterval time.Duration
	SweepRate     float64 // leads per second
}

// ReachOutConfig holds the reach-out cycle windows
type ReachOutConfig struct {
	CycleExpiry             time.Duration
	DefaultHighlight        time.Duration
	EmailConfirmedHighlight time.Duration
	EmailDeclinedHighlight  time.Duration
	HighValueMinutes        float64
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Enabled      bool
	SharedSecret string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5433"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "insurance_leads"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		API: APIConfig{
			Port: getEnv("API_PORT", "8080"),
			Host: getEnv("API_HOST", "0.0.0.0"),
		},
		Desk: DeskConfig{
			Port:           getEnv("DESK_PORT", "8090"),
			Host:           getEnv("DESK_HOST", "0.0.0.0"),
			AllowedOrigins: parseList(getEnv("DESK_ALLOWED_ORIGINS", "*")),
		},
		Backend: BackendConfig{
			URL:        getEnv("BACKEND_URL", "http://localhost:8080"),
			Token:      getEnv("BACKEND_TOKEN", ""),
			Timeout:    parseDuration(getEnv("BACKEND_TIMEOUT", "10s"), 10*time.Second),
			SyncBuffer: parseInt(getEnv("BACKEND_SYNC_BUFFER", "256"), 256),
		},
		Cache: CacheConfig{
			Type:          strings.ToLower(getEnv("CACHE_TYPE", CacheTypeSQLite)),
			SQLitePath:    getEnv("CACHE_SQLITE_PATH", "./data/desk_cache.db"),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			Key:           getEnv("CACHE_KEY", "insurance_leads"),
		},
		Worker: WorkerConfig{
			PollInterval:  parseDuration(getEnv("WORKER_POLL_INTERVAL", "5s"), 5*time.Second),
			Concurrency:   parseInt(getEnv("WORKER_CONCURRENCY", "5"), 5),
			SweepInterval: parseDuration(getEnv("WORKER_SWEEP_INTERVAL", "15m"), 15*time.Minute),
			SweepRate:     parseFloat(getEnv("WORKER_SWEEP_RATE", "20"), 20),
		},
		ReachOut: ReachOutConfig{
			CycleExpiry:             parseDuration(getEnv("REACHOUT_CYCLE_EXPIRY", "48h"), 48*time.Hour),
			DefaultHighlight:        parseDuration(getEnv("REACHOUT_DEFAULT_HIGHLIGHT", "24h"), 24*time.Hour),
			EmailConfirmedHighlight: parseDuration(getEnv("REACHOUT_EMAIL_CONFIRMED_HIGHLIGHT", "168h"), 168*time.Hour),
			EmailDeclinedHighlight:  parseDuration(getEnv("REACHOUT_EMAIL_DECLINED_HIGHLIGHT", "48h"), 48*time.Hour),
			HighValueMinutes:        parseFloat(getEnv("REACHOUT_HIGH_VALUE_MINUTES", "60"), 60),
		},
		Auth: AuthConfig{
			Enabled:      parseBool(getEnv("ENABLE_AUTH", "false")),
			SharedSecret: getEnv("SHARED_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.SharedSecret == "" {
		return fmt.Errorf("SHARED_SECRET is required when ENABLE_AUTH is true")
	}
	switch c.Cache.Type {
	case CacheTypeSQLite, CacheTypeRedis, CacheTypeMemory:
	default:
		return fmt.Errorf("CACHE_TYPE must be one of sqlite, redis, memory (got %q)", c.Cache.Type)
	}
	if c.Cache.Type == CacheTypeSQLite && c.Cache.SQLitePath == "" {
		return fmt.Errorf("CACHE_SQLITE_PATH is required when CACHE_TYPE is sqlite")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

// Policy converts the configured windows into a reach-out policy
func (r ReachOutConfig) Policy() reachout.Policy {
	return reachout.Policy{
		CycleExpiry:             r.CycleExpiry,
		DefaultHighlight:        r.DefaultHighlight,
		EmailConfirmedHighlight: r.EmailConfirmedHighlight,
		EmailDeclinedHighlight:  r.EmailDeclinedHighlight,
		HighValueMinutes:        r.HighValueMinutes,
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(value string, defaultValue int) int {
	var result int
	_, err := fmt.Sscanf(value, "%d", &result)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseFloat(value string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func parseBool(value string) bool {
	return value == "true" || value == "1" || value == "yes"
}

func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
