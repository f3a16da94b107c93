package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/"
	geminiDefaultModel   = "gemini-1.5-flash"
	geminiAPIVersion     = "v1beta"
)

// GeminiConfig configures GeminiClient. Zero values select defaults.
type GeminiConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiClient calls the Gemini generateContent endpoint. The key travels
// as the "key" query parameter; no auth header is sent.
type GeminiClient struct {
	baseURL   string
	model     string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewGeminiClient creates a client with defaults against the public API.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	c := &GeminiClient{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.baseURL == "" {
		c.baseURL = geminiDefaultBaseURL
	}
	if c.model == "" {
		c.model = geminiDefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		c.transport = cfg.HTTPClient.Transport
	} else {
		c.transport = http.DefaultTransport
	}
	return c
}

func (c *GeminiClient) Name() string {
	return fmt.Sprintf("Gemini (%s)", c.model)
}

func (c *GeminiClient) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("nil gemini client")
	}
	if apiKey == "" {
		return "", ErrMissingKey
	}

	var text string
	err := bounded(ctx, c.timeout, func(ctx context.Context) error {
		cli, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
			HTTPClient: &http.Client{
				Transport: &queryKeyTransport{key: apiKey, next: c.transport},
			},
			HTTPOptions: genai.HTTPOptions{
				BaseURL:    c.baseURL,
				APIVersion: geminiAPIVersion,
				Headers:    http.Header{"Cache-Control": []string{"no-store"}},
			},
		})
		if err != nil {
			return fmt.Errorf("gemini: create client: %w", err)
		}

		contents := []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		}}
		resp, err := cli.Models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			return geminiError(err)
		}
		text = firstCandidateText(resp)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// firstCandidateText returns candidates[0].content.parts[0].text, trimmed,
// or "" when any step of that path is missing.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 || cand.Content.Parts[0] == nil {
		return ""
	}
	return strings.TrimSpace(cand.Content.Parts[0].Text)
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: ProviderGemini, StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &UpstreamError{Provider: ProviderGemini, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &UpstreamError{Provider: ProviderGemini, Err: err}
}

// queryKeyTransport moves the API key from the SDK's header into the "key"
// query parameter.
type queryKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *queryKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Del("x-goog-api-key")
	r.Header.Del("Authorization")
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return t.next.RoundTrip(r)
}
