package desk

import (
	"context"
	"errors"
	"fmt"

	"writedesk/internal/llm"
)

// Error kinds. Every error returned by Service matches exactly one of these
// (or llm.ErrUpstream / llm.ErrTimeout / context.Canceled) via errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConfig     = errors.New("configuration error")
	ErrFetch      = errors.New("fetch error")
)

// Error carries a kind and the message shown to the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func validationErr(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }

func configErr(msg string) error { return &Error{Kind: ErrConfig, Message: msg} }

func fetchErr(msg string) error { return &Error{Kind: ErrFetch, Message: msg} }

// UserMessage converts err into one short sentence fit for direct display.
// Nothing structured crosses the UI boundary.
func UserMessage(err error) string {
	var deskErr *Error
	var upErr *llm.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &deskErr):
		return deskErr.Message
	case errors.Is(err, llm.ErrTimeout):
		return "The request timed out. Please try again."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.As(err, &upErr) && upErr.StatusCode != 0:
		return fmt.Sprintf("%s request failed (HTTP %d).", upErr.Provider.Label(), upErr.StatusCode)
	case errors.As(err, &upErr):
		return fmt.Sprintf("%s request failed. Please try again.", upErr.Provider.Label())
	default:
		return "Something went wrong. Please try again."
	}
}

// outcome labels err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConfig):
		return "config_error"
	case errors.Is(err, ErrFetch):
		return "fetch_error"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
