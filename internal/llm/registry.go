package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"writedesk/internal/metrics"
)

// Registry dispatches Generate calls to the client registered for a
// provider. Exactly one client is invoked per call.
type Registry struct {
	log     *slog.Logger
	clients map[Provider]Client
}

// NewRegistry builds a registry over clients.
func NewRegistry(log *slog.Logger, clients map[Provider]Client) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log, clients: clients}
}

// Client returns the client for p.
func (r *Registry) Client(p Provider) (Client, error) {
	c, ok := r.clients[p]
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return c, nil
}

func (r *Registry) Generate(ctx context.Context, p Provider, apiKey, prompt string) (string, error) {
	c, err := r.Client(p)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := c.Generate(ctx, apiKey, prompt)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	metrics.ProviderCallDuration.WithLabelValues(string(p), outcome).Observe(elapsed.Seconds())

	log := r.log.With("provider", string(p), "client", c.Name(), "duration_ms", elapsed.Milliseconds())
	if err != nil {
		log.Warn("provider call failed", "outcome", outcome, "err", err)
		return "", err
	}
	log.Info("provider call succeeded", "prompt_chars", len(prompt), "text_chars", len(text))
	return text, nil
}

func outcomeOf(err error) string {
	var upErr *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &upErr):
		return "upstream_error"
	default:
		return "error"
	}
}
