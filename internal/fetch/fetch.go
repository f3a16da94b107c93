// Package fetch retrieves the readable text of a remote page. It is a
// best-effort path: every failure yields "no content" rather than an error.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"writedesk/internal/metrics"
)

const (
	DefaultTimeout  = 8 * time.Second
	DefaultMaxBytes = 2 << 20
)

// Fetcher is the content-retrieval contract the orchestrator depends on.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, bool)
}

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	log      *slog.Logger
}

// Options configures NewHTTPFetcher. Zero values select defaults.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
}

// NewHTTPFetcher builds a fetcher. The default client has no cookie jar, so
// no credentials are sent, and follows redirects.
func NewHTTPFetcher(log *slog.Logger, opts Options) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   opts.Client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		log:      log,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// IsFetchableURL reports whether raw is an absolute http or https URL.
func IsFetchableURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch returns the visible text of rawURL, or false when the URL is not
// http(s), the request fails, the status is not 2xx or no text remains.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsFetchableURL(rawURL) {
		metrics.FetchTotal.WithLabelValues("invalid_url").Inc()
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, outcome := f.fetch(ctx, rawURL)
	metrics.FetchTotal.WithLabelValues(outcome).Inc()
	if outcome != "ok" {
		f.log.Info("url fetch failed", "url", rawURL, "outcome", outcome)
		return "", false
	}
	return text, true
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "invalid_url"
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "text/html,text/plain,application/pdf;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", "timeout"
		}
		return "", "transport_error"
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "bad_status"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", "read_error"
	}

	var text string
	if isPDF(resp.Header.Get("Content-Type"), body) {
		text, err = pdfText(body)
		if err != nil {
			return "", "pdf_error"
		}
		text = collapseSpace(text)
	} else {
		text = ExtractText(string(body))
	}
	if text == "" {
		return "", "empty"
	}
	return text, "ok"
}

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// ExtractText is a lossy plaintext extraction: script and style blocks are
// dropped, remaining tags stripped and whitespace collapsed. Malformed HTML
// may leave stray fragments.
func ExtractText(html string) string {
	s := scriptRe.ReplaceAllString(html, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func isPDF(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

func pdfText(content []byte) (text string, err error) {
	// The pdf reader panics on some malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
