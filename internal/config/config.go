package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	APIBaseURL string
	APITimeout time.Duration

	PollInterval           time.Duration
	PollConcurrency        int
	ETAPollInterval        time.Duration
	NotificationInterval   time.Duration
	CatalogRefreshInterval time.Duration
	CorredorStaleAfter     time.Duration
	TileZoomLevel          int

	SessionDBPath string

	ShareEnabled     bool
	ShareMinDistance float64
	ShareMinInterval time.Duration
	ShareReplayFile  string
	ShareReplayEvery time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	ETACacheTTL   time.Duration

	NATSURL     string
	NATSSubject string

	CORSOrigins        []string
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	baseURL := strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL environment variable is required")
	}

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", "127.0.0.1:8787"),
		ReadTimeout:     getPositiveDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getPositiveDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getPositiveDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),

		APIBaseURL: baseURL,
		APITimeout: getPositiveDurationEnv("API_TIMEOUT", 15*time.Second),

		PollInterval:           getDurationEnv("POLL_INTERVAL", 5*time.Second),
		PollConcurrency:        getIntEnv("POLL_CONCURRENCY", 4),
		ETAPollInterval:        getPositiveDurationEnv("ETA_POLL_INTERVAL", 15*time.Second),
		NotificationInterval:   getPositiveDurationEnv("NOTIFICATION_POLL_INTERVAL", 30*time.Second),
		CatalogRefreshInterval: getPositiveDurationEnv("CATALOG_REFRESH_INTERVAL", 30*time.Minute),
		CorredorStaleAfter:     getPositiveDurationEnv("CORREDOR_STALE_AFTER", 2*time.Minute),
		TileZoomLevel:          getIntEnv("TILE_ZOOM_LEVEL", 14),

		SessionDBPath: getEnv("SESSION_DB_PATH", "inforojo.db"),

		ShareEnabled:     getBoolEnv("SHARE_ENABLED", false),
		ShareMinDistance: getFloatEnv("SHARE_MIN_DISTANCE", 10),
		ShareMinInterval: getDurationEnv("SHARE_MIN_INTERVAL", 5*time.Second),
		ShareReplayFile:  getEnv("SHARE_REPLAY_FILE", ""),
		ShareReplayEvery: getPositiveDurationEnv("SHARE_REPLAY_EVERY", time.Second),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheTTL:      getDurationEnv("CACHE_TTL", time.Hour),
		ETACacheTTL:   getPositiveDurationEnv("ETA_CACHE_TTL", 10*time.Second),

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT_PREFIX", "inforojo"),

		CORSOrigins:        getCSVEnv("CORS_ORIGINS"),
		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 600),
		RateLimitWindow:    getPositiveDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %s", cfg.PollInterval)
	}
	if cfg.PollConcurrency < 1 {
		cfg.PollConcurrency = 1
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if len(cfg.RateLimitWhitelist) == 0 {
		cfg.RateLimitWhitelist = []string{"127.0.0.1", "::1"}
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getPositiveDurationEnv is getDurationEnv for values that drive tickers or
// timeouts, where zero or a negative value falls back to the default.
func getPositiveDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if d := getDurationEnv(key, defaultVal); d > 0 {
		return d
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
