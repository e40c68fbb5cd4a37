package agent

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchRedirects  = 3
	defaultFetchMaxRunes   = 16_000
	defaultFetchUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultFetchMaxBodyCap = int64(1_500_000)
	defaultFetchTimeout    = 10 * time.Second
)

// FetchResult reports the outcome of one fetch attempt as data. Status is
// "ok" only when readable text was extracted; every other outcome (transport
// error, bad status, unsupported content, empty extraction) is a failure the
// collector records rather than propagates.
type FetchResult struct {
	URL         string
	FinalURL    string
	Title       string
	ContentType string
	Text        string
	Status      string
	FetchedAt   time.Time
	Truncated   bool
}

func (r FetchResult) OK() bool {
	return r.Status == "ok"
}

type FetcherConfig struct {
	RequestTimeout time.Duration
	MaxBytes       int64
	MaxRedirects   int
	MaxTextRunes   int
}

type HTTPFetcher struct {
	cfg        FetcherConfig
	httpClient *http.Client
}

func NewHTTPFetcher(cfg FetcherConfig, httpClient *http.Client) *HTTPFetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultFetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultFetchMaxBodyCap
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultFetchRedirects
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = defaultFetchMaxRunes
	}

	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = secureDialContext(&net.Dialer{Timeout: cfg.RequestTimeout})
		httpClient = &http.Client{Transport: transport}
	} else {
		// Shallow copy so the redirect policy below never leaks into a
		// client shared with other components.
		clone := *httpClient
		httpClient = &clone
	}

	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if _, err := validateFetchURL(req.URL.String()); err != nil {
			return err
		}
		return nil
	}

	return &HTTPFetcher{cfg: cfg, httpClient: httpClient}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if f == nil {
		return FetchResult{}, fmt.Errorf("fetcher is nil")
	}

	parsed, err := validateFetchURL(rawURL)
	if err != nil {
		return FetchResult{URL: rawURL, Status: "blocked"}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if f.cfg.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return FetchResult{URL: parsed.String(), Status: "request_failed"}, err
	}
	req.Header.Set("User-Agent", defaultFetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,text/markdown,application/json,text/csv,application/pdf;q=0.9,*/*;q=0.2")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return FetchResult{URL: parsed.String(), Status: "fetch_failed"}, err
	}
	defer resp.Body.Close()

	result := FetchResult{
		URL:       parsed.String(),
		FinalURL:  parsed.String(),
		Status:    fmt.Sprintf("http_%d", resp.StatusCode),
		FetchedAt: time.Now().UTC(),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if parsedType, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = parsedType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	result.ContentType = contentType

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	payload, truncated, err := readBoundedBody(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		result.Status = "read_failed"
		return result, err
	}
	result.Truncated = truncated

	title, text, err := extractContent(contentType, payload, result.FinalURL, f.cfg.MaxTextRunes)
	if err != nil {
		if err == errUnsupportedContentType {
			result.Status = "unsupported_content_type"
			return result, err
		}
		result.Status = "extract_failed"
		return result, err
	}
	result.Title = title
	result.Text = text
	if strings.TrimSpace(result.Text) == "" {
		result.Status = "empty_content"
		return result, fmt.Errorf("extracted content is empty")
	}
	result.Status = "ok"
	return result, nil
}

func readBoundedBody(r io.Reader, maxBytes int64) ([]byte, bool, error) {
	if maxBytes <= 0 {
		maxBytes = defaultFetchMaxBodyCap
	}
	limited := io.LimitReader(r, maxBytes+1)
	payload, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if int64(len(payload)) > maxBytes {
		return payload[:maxBytes], true, nil
	}
	return payload, false, nil
}
