package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is the cancellation cause when a call exceeds its bound.
	ErrTimeout = errors.New("request timed out")

	// ErrUpstream matches every *UpstreamError via errors.Is.
	ErrUpstream = errors.New("upstream error")

	// ErrMissingKey is returned when Generate is called without an API key.
	ErrMissingKey = errors.New("api key required")

	// ErrUnknownProvider is returned for providers with no registered client.
	ErrUnknownProvider = errors.New("unknown provider")
)

// UpstreamError is a failed provider response. StatusCode is zero when the
// failure was not an HTTP status (malformed body, transport error).
type UpstreamError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: request failed", e.Provider)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// arm derives the per-call context. Its cancel func is the only way the
// timer is released; tests replace arm to count releases.
var arm = func(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(ctx, d, ErrTimeout)
}

// bounded runs fn under a deadline of d. The deadline and a caller-side
// cancel share one context, and the timer is released on every path.
func bounded(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		d = DefaultTimeout
	}
	callCtx, cancel := arm(ctx, d)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(callCtx), ErrTimeout) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, d, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request cancelled: %w", ctxErr)
	}
	return err
}
