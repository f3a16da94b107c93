package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newGeminiTestClient(srv *httptest.Server, timeout time.Duration) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		BaseURL:    srv.URL,
		Model:      "gemini-test",
		Timeout:    timeout,
		HTTPClient: srv.Client(),
	})
}

func TestGeminiClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-test:generateContent"), "path %q", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		assert.Empty(t, r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "user", body.Contents[0].Role)
		require.Len(t, body.Contents[0].Parts, 1)
		assert.Equal(t, "Summarize this.", body.Contents[0].Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  - point one  "},{"text":"ignored"}]}}]}`))
	}))
	defer srv.Close()

	got, err := newGeminiTestClient(srv, time.Second).Generate(context.Background(), "g-key", "Summarize this.")
	require.NoError(t, err)
	assert.Equal(t, "- point one", got)
}

func TestGeminiClientGenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	got, err := newGeminiTestClient(srv, time.Second).Generate(context.Background(), "g-key", "hi")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestGeminiClientGenerateStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := newGeminiTestClient(srv, time.Second).Generate(context.Background(), "bad", "hi")
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr), "expected UpstreamError, got %T", err)
	assert.Equal(t, http.StatusForbidden, upErr.StatusCode)
	assert.Equal(t, ProviderGemini, upErr.Provider)
}

func TestGeminiClientGenerateTimeout(t *testing.T) {
	releases := countReleases(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices the client hanging up once the body is read.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))

	start := time.Now()
	_, err := newGeminiTestClient(srv, 50*time.Millisecond).Generate(context.Background(), "g-key", "hi")
	srv.Close()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), releases.Load())
	assert.Less(t, time.Since(start), time.Second, "cancellation must reach the server")
}

func TestFirstCandidateText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{"no parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}}, ""},
		{"first part only", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: " a "}, {Text: "b"}}},
		}}}, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstCandidateText(tt.resp))
		})
	}
}

func TestQueryKeyTransport(t *testing.T) {
	var seen *http.Request
	tr := &queryKeyTransport{key: "k1", next: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})}

	req, err := http.NewRequest(http.MethodPost, "https://example.com/v1beta/models/m:generateContent?alt=json", nil)
	require.NoError(t, err)
	req.Header.Set("x-goog-api-key", "k1")

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "k1", seen.URL.Query().Get("key"))
	assert.Equal(t, "json", seen.URL.Query().Get("alt"))
	assert.Empty(t, seen.Header.Get("x-goog-api-key"))
	assert.Equal(t, "k1", req.Header.Get("x-goog-api-key"), "original request must not be mutated")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
