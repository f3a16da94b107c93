// Package desk validates user input, resolves the active provider and key,
// builds prompts and dispatches them. It is the only place that decides what
// the user sees when something fails.
package desk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"writedesk/internal/fetch"
	"writedesk/internal/llm"
	"writedesk/internal/metrics"
)

const (
	MaxTopicChars  = 120
	MaxSourceChars = 12000

	truncationWarning = "Text was truncated to 12000 characters."
)

// Keys is the part of the keystore the service reads.
type Keys interface {
	GetProvider(ctx context.Context) llm.Provider
	GetKey(ctx context.Context, p llm.Provider) (string, bool)
}

// GenerateRequest asks for an article on Topic.
type GenerateRequest struct {
	Topic  string `json:"topic"`
	Length string `json:"length"`
}

// SummarizeRequest asks for a summary of Text, or of URL's content when
// Text is empty.
type SummarizeRequest struct {
	Text string `json:"text"`
	URL  string `json:"url" validate:"max=2048"`
}

// Result is transient output; it is never persisted.
type Result struct {
	Text     string       `json:"text"`
	Provider llm.Provider `json:"provider"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Service runs generate and summarize operations.
type Service struct {
	llm     llm.Dispatcher
	fetcher fetch.Fetcher
	log     *slog.Logger
	busy    atomic.Int32
}

// NewService wires the dispatcher and fetcher.
func NewService(d llm.Dispatcher, f fetch.Fetcher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{llm: d, fetcher: f, log: log}
}

// Busy reports whether an operation is waiting on the network.
func (s *Service) Busy() bool {
	return s.busy.Load() > 0
}

func (s *Service) begin() func() {
	s.busy.Add(1)
	metrics.InFlight.Inc()
	return func() {
		metrics.InFlight.Dec()
		s.busy.Add(-1)
	}
}

// NormalizeTopic collapses whitespace runs and trims.
func NormalizeTopic(topic string) string {
	return strings.Join(strings.Fields(topic), " ")
}

// Generate writes an article about req.Topic with the active provider.
func (s *Service) Generate(ctx context.Context, keys Keys, req GenerateRequest) (res Result, err error) {
	defer func() { metrics.OperationsTotal.WithLabelValues("generate", outcome(err)).Inc() }()

	topic := NormalizeTopic(req.Topic)
	if topic == "" {
		return Result{}, validationErr("Please enter a topic.")
	}
	if utf8.RuneCountInString(topic) > MaxTopicChars {
		return Result{}, validationErr(fmt.Sprintf("Topic must be %d characters or fewer.", MaxTopicChars))
	}
	length, ok := ParseLength(req.Length)
	if !ok {
		return Result{}, validationErr("Choose a length: short, medium or long.")
	}

	provider, apiKey, err := s.resolveKey(ctx, keys)
	if err != nil {
		return Result{}, err
	}

	done := s.begin()
	defer done()

	text, err := s.llm.Generate(ctx, provider, apiKey, articlePrompt(topic, length.Words()))
	if err != nil {
		s.log.Warn("generate failed", "provider", string(provider), "err", err)
		return Result{}, fmt.Errorf("generate: %w", err)
	}
	return s.result(provider, text, nil), nil
}

// Summarize produces a bullet-point summary of req.Text, falling back to
// the content of req.URL when no text is given.
func (s *Service) Summarize(ctx context.Context, keys Keys, req SummarizeRequest) (res Result, err error) {
	defer func() { metrics.OperationsTotal.WithLabelValues("summarize", outcome(err)).Inc() }()

	provider, apiKey, err := s.resolveKey(ctx, keys)
	if err != nil {
		return Result{}, err
	}

	done := s.begin()
	defer done()

	text := strings.TrimSpace(req.Text)
	rawURL := strings.TrimSpace(req.URL)
	if text == "" && rawURL != "" {
		if !fetch.IsFetchableURL(rawURL) {
			return Result{}, validationErr("Please enter a valid http or https URL.")
		}
		fetched, ok := s.fetcher.Fetch(ctx, rawURL)
		if !ok {
			return Result{}, fetchErr("Could not read that page. Paste the text instead.")
		}
		text = fetched
	}
	if text == "" {
		return Result{}, validationErr("Paste some text or enter a URL to summarize.")
	}

	var warnings []string
	if truncated, cut := truncateRunes(text, MaxSourceChars); cut {
		s.log.Warn("source text truncated", "chars", utf8.RuneCountInString(text), "limit", MaxSourceChars)
		text = truncated
		warnings = append(warnings, truncationWarning)
	}

	summary, err := s.llm.Generate(ctx, provider, apiKey, summaryPrompt(text))
	if err != nil {
		s.log.Warn("summarize failed", "provider", string(provider), "err", err)
		return Result{}, fmt.Errorf("summarize: %w", err)
	}
	return s.result(provider, summary, warnings), nil
}

func (s *Service) resolveKey(ctx context.Context, keys Keys) (llm.Provider, string, error) {
	provider := keys.GetProvider(ctx)
	apiKey, ok := keys.GetKey(ctx, provider)
	if !ok || apiKey == "" {
		return provider, "", configErr(fmt.Sprintf("Add your %s API key in Settings first.", provider.Label()))
	}
	return provider, apiKey, nil
}

func (s *Service) result(p llm.Provider, text string, warnings []string) Result {
	if text == "" {
		warnings = append(warnings, "The provider returned an empty response.")
	}
	return Result{Text: text, Provider: p, Warnings: warnings}
}

// truncateRunes cuts s to its first n characters.
func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
