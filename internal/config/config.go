package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port string

	CRMAPIURL         string
	CRMAPIToken       string
	CRMAuthRefreshURL string

	// Optional backends; empty disables them.
	RedisURL    string
	DatabaseURL string
	RabbitMQURL string

	OrderScope      string
	RefreshInterval time.Duration
	CacheTTL        time.Duration

	LogLevel    string
	CORSOrigins []string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		CRMAPIURL:         os.Getenv("CRM_API_URL"),
		CRMAPIToken:       os.Getenv("CRM_API_TOKEN"),
		CRMAuthRefreshURL: os.Getenv("CRM_AUTH_REFRESH_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		OrderScope:        getEnv("BOARD_ORDER_SCOPE", "pipeline"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.RefreshInterval, err = getDuration("BOARD_REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.CRMAPIURL == "" {
		return nil, fmt.Errorf("CRM_API_URL is required")
	}
	return cfg, nil
}

// NewLogger builds a production zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// getDuration accepts Go durations ("30s") or bare seconds ("30").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err != nil || fmt.Sprint(secs) != raw {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
