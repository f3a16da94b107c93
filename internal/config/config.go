package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the server and the CLI.
type Config struct {
	// Server
	Port         int    `env:"PORT" envDefault:"8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`

	// Key storage
	DurableStore   string        `env:"DURABLE_STORE" envDefault:"sqlite"`   // "sqlite", "postgres" or "redis"
	EphemeralStore string        `env:"EPHEMERAL_STORE" envDefault:"memory"` // "memory" or "redis"
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"writedesk.db"`
	DBURL          string        `env:"DB_URL"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// Providers
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// Time bounds
	GenerateTimeout time.Duration `env:"GENERATE_TIMEOUT" envDefault:"30s"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"8s"`
	FetchMaxBytes   int64         `env:"FETCH_MAX_BYTES" envDefault:"2097152"` // 2MB
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
