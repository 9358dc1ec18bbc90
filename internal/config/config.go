package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Provider      ProviderConfig
	Gate          GateConfig
	Limiter       LimiterConfig
	State         StateConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds per-client HTTP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ProviderConfig selects and configures the upstream identity provider.
// Mode "rest" talks to a hosted auth API; "local" runs the in-process
// provider and is only intended for development and tests.
type ProviderConfig struct {
	Mode    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// GateConfig holds admin gate behavior configuration
type GateConfig struct {
	SuperAdminEmail  string
	ProfileCacheSize int
	ProfileCacheTTL  time.Duration
}

// LimiterConfig holds login attempt limiter configuration
type LimiterConfig struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// StateConfig selects the backend for persisted limiter and identity state
type StateConfig struct {
	Backend       string
	FilePath      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "pressdesk"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "pressdesk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Provider: ProviderConfig{
			Mode:    getEnv("PROVIDER_MODE", "rest"),
			BaseURL: getEnv("PROVIDER_BASE_URL", ""),
			APIKey:  getEnv("PROVIDER_API_KEY", ""),
			Timeout: parseDuration("PROVIDER_TIMEOUT", "10s"),
		},
		Gate: GateConfig{
			SuperAdminEmail:  getEnv("GATE_SUPER_ADMIN_EMAIL", ""),
			ProfileCacheSize: parseInt("GATE_PROFILE_CACHE_SIZE", 256),
			ProfileCacheTTL:  parseDuration("GATE_PROFILE_CACHE_TTL", "5m"),
		},
		Limiter: LimiterConfig{
			MaxAttempts: parseInt("LIMITER_MAX_ATTEMPTS", 5),
			Window:      parseDuration("LIMITER_WINDOW", "15m"),
			Lockout:     parseDuration("LIMITER_LOCKOUT", "30m"),
		},
		State: StateConfig{
			Backend:       getEnv("STATE_BACKEND", "file"),
			FilePath:      getEnv("STATE_FILE_PATH", "pressdesk-state.json"),
			RedisAddr:     getEnv("STATE_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("STATE_REDIS_PASSWORD", ""),
			RedisDB:       parseInt("STATE_REDIS_DB", 0),
			RedisTTL:      parseDuration("STATE_REDIS_TTL", "24h"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "pressdesk-gate"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	switch c.Provider.Mode {
	case "rest":
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("PROVIDER_BASE_URL is required when PROVIDER_MODE=rest")
		}
	case "local":
	default:
		return fmt.Errorf("unknown PROVIDER_MODE %q", c.Provider.Mode)
	}
	switch c.State.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	if c.Limiter.MaxAttempts < 1 {
		return fmt.Errorf("LIMITER_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
