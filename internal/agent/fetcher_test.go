package agent

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func fakeResponse(req *http.Request, status int, contentType, body string) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func newFakeFetcher(cfg FetcherConfig, rt roundTripFunc) *HTTPFetcher {
	return NewHTTPFetcher(cfg, &http.Client{Transport: rt})
}

func TestFetchBlocksDisallowedURLs(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("request should never be sent for %s", r.URL)
		return nil, nil
	})

	cases := []string{
		"ftp://example.com/file",
		"http://localhost/admin",
		"http://127.0.0.1/",
		"http://192.168.1.10/router",
		"http://metadata.internal/computeMetadata",
		"http://example.com:8080/",
		"not a url",
	}
	for _, rawURL := range cases {
		result, err := fetcher.Fetch(context.Background(), rawURL)
		if err == nil {
			t.Errorf("expected %q to be rejected", rawURL)
		}
		if result.OK() {
			t.Errorf("blocked URL reported ok: %q", rawURL)
		}
	}
}

func TestFetchExtractsPlainText(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Mozilla/5.0") {
			t.Fatalf("expected a browser user agent, got %q", ua)
		}
		return fakeResponse(r, http.StatusOK, "text/plain; charset=utf-8", "line one\n\nline two\n"), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/notes.txt")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.OK() {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if result.Text != "line one\nline two" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if result.FetchedAt.IsZero() {
		t.Fatal("FetchedAt not set")
	}
}

func TestFetchExtractsHTML(t *testing.T) {
	page := `<!doctype html><html><head><title>Tokyo Guide</title>` +
		`<script>ignore();</script></head><body>` +
		`<article><h1>Tokyo</h1><p>Tokyo is the capital of Japan and its largest city.</p>` +
		`<p>The metropolitan area is the most populous in the world.</p></article>` +
		`</body></html>`
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusOK, "text/html; charset=utf-8", page), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/tokyo")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.OK() {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if !strings.Contains(result.Text, "capital of Japan") {
		t.Fatalf("article text missing: %q", result.Text)
	}
	if strings.Contains(result.Text, "ignore()") {
		t.Fatalf("script text leaked into extraction: %q", result.Text)
	}
	if result.Title == "" {
		t.Fatal("expected a title")
	}
}

func TestFetchReportsHTTPErrorStatus(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusNotFound, "text/html", "not found"), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if result.Status != "http_404" {
		t.Fatalf("unexpected status %q", result.Status)
	}
}

func TestFetchRejectsUnsupportedContentType(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusOK, "image/png", "\x89PNG..."), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/logo.png")
	if err == nil {
		t.Fatal("expected error for image content")
	}
	if result.Status != "unsupported_content_type" {
		t.Fatalf("unexpected status %q", result.Status)
	}
}

func TestFetchTruncatesOversizedBodies(t *testing.T) {
	body := strings.Repeat("abcdefghij", 100)
	fetcher := newFakeFetcher(FetcherConfig{MaxBytes: 100}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusOK, "text/plain", body), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/big.txt")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !result.Truncated {
		t.Fatal("expected truncation")
	}
	if len(result.Text) > 100 {
		t.Fatalf("text longer than byte cap: %d", len(result.Text))
	}
}

func TestFetchRejectsEmptyExtraction(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusOK, "text/plain", "   \n\t  "), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/blank.txt")
	if err == nil {
		t.Fatal("expected error for empty content")
	}
	if result.Status != "empty_content" {
		t.Fatalf("unexpected status %q", result.Status)
	}
}

func TestNewHTTPFetcherLeavesCallerClientUntouched(t *testing.T) {
	shared := &http.Client{}
	NewHTTPFetcher(FetcherConfig{}, shared)
	if shared.CheckRedirect != nil {
		t.Fatal("caller's client gained a redirect policy")
	}
}

func TestFetchCapsTextRunes(t *testing.T) {
	fetcher := newFakeFetcher(FetcherConfig{MaxTextRunes: 10}, func(r *http.Request) (*http.Response, error) {
		return fakeResponse(r, http.StatusOK, "text/plain", "0123456789abcdef"), nil
	})

	result, err := fetcher.Fetch(context.Background(), "https://example.com/long.txt")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Text != "0123456789" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}
