package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"writedesk/internal/config"
	"writedesk/internal/desk"
	"writedesk/internal/fetch"
	"writedesk/internal/keystore"
	"writedesk/internal/kv"
	"writedesk/internal/llm"
	"writedesk/internal/logger"
)

// Deps bundles common runtime dependencies for the server and the CLI.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Durable  kv.Store
	Sessions kv.Sessions
	Desk     *desk.Service

	closers []io.Closer
}

// Options tweaks Build for a particular binary.
type Options struct {
	// LogOutput defaults to stdout.
	LogOutput io.Writer
	// SingleSession makes every session share one in-process store. The CLI
	// runs as one session.
	SingleSession bool
}

// Build loads env, config, and shared components.
func Build(opts Options) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	return BuildWith(cfg, logger.NewWithWriter(out, cfg.LogLevel), opts)
}

// BuildWith wires components from an explicit config and logger.
func BuildWith(cfg config.Config, log *slog.Logger, opts Options) (Deps, error) {
	deps := Deps{Config: cfg, Log: log}

	durable, err := buildDurable(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize durable store: %w", err)
	}
	deps.Durable = durable
	deps.closers = append(deps.closers, durable)

	sessions, closer, err := buildSessions(cfg, log, opts)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize session store: %w", err)
	}
	deps.Sessions = sessions
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	registry := buildRegistry(cfg, log)
	fetcher := fetch.NewHTTPFetcher(log, fetch.Options{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.FetchMaxBytes,
	})
	deps.Desk = desk.NewService(registry, fetcher, log)
	return deps, nil
}

// Keys returns the keystore for one session.
func (d Deps) Keys(sessionID string) *keystore.Keystore {
	return keystore.New(d.Durable, d.Sessions.Session(sessionID), d.Log)
}

// Close releases store connections.
func (d Deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDurable(cfg config.Config, log *slog.Logger) (kv.Store, error) {
	switch cfg.DurableStore {
	case "sqlite":
		s, err := kv.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		log.Info("using SQLite durable store", "path", cfg.SQLitePath)
		return s, nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when DURABLE_STORE=postgres")
		}
		s, err := kv.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres durable store")
		return s, nil
	case "redis":
		s, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis durable store", "addr", cfg.RedisAddr)
		return s, nil
	default:
		return nil, fmt.Errorf("invalid DURABLE_STORE: %s (valid options: sqlite, postgres, redis)", cfg.DurableStore)
	}
}

func buildSessions(cfg config.Config, log *slog.Logger, opts Options) (kv.Sessions, io.Closer, error) {
	if opts.SingleSession {
		return kv.SingleSession{Store: kv.NewMemory()}, nil, nil
	}
	switch cfg.EphemeralStore {
	case "memory":
		log.Info("using in-memory session store", "ttl", cfg.SessionTTL)
		return kv.NewMemorySessions(cfg.SessionTTL), nil, nil
	case "redis":
		base, err := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using Redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
		return kv.NewRedisSessions(base, cfg.SessionTTL), base, nil
	default:
		return nil, nil, fmt.Errorf("invalid EPHEMERAL_STORE: %s (valid options: memory, redis)", cfg.EphemeralStore)
	}
}

func buildRegistry(cfg config.Config, log *slog.Logger) *llm.Registry {
	openaiClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.GenerateTimeout,
	})
	geminiClient := llm.NewGeminiClient(llm.GeminiConfig{
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GenerateTimeout,
	})
	log.Info("provider clients ready", "openai", openaiClient.Name(), "gemini", geminiClient.Name())
	return llm.NewRegistry(log, map[llm.Provider]llm.Client{
		llm.ProviderOpenAI: openaiClient,
		llm.ProviderGemini: geminiClient,
	})
}
