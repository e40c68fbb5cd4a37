// Package search defines the web-search contract the agent depends on and a
// small provider registry over the supported backends.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"webresearch/internal/config"
	"webresearch/internal/search/brave"
	"webresearch/internal/search/serper"
)

// ErrNotConfigured reports that the selected provider has no API credential.
// The collector treats it as "search unavailable", not as a fatal error.
var ErrNotConfigured = errors.New("search provider is not configured")

type Result struct {
	Title   string
	URL     string
	Snippet string
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

func New(cfg config.Config, httpClient *http.Client) (Searcher, error) {
	switch cfg.SearchProvider {
	case "brave":
		return braveSearcher{client: brave.NewClient(cfg.BraveAPIKey, cfg.BraveBaseURL, httpClient)}, nil
	case "serper":
		return serperSearcher{client: serper.NewClient(cfg.SerperAPIKey, cfg.SerperBaseURL, httpClient)}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider %q", cfg.SearchProvider)
	}
}

type braveSearcher struct {
	client brave.Client
}

func (s braveSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := s.client.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, brave.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return nil, err
	}
	return convertBrave(results), nil
}

func convertBrave(results []brave.SearchResult) []Result {
	out := make([]Result, 0, len(results))
	for _, item := range results {
		out = append(out, Result{Title: item.Title, URL: item.URL, Snippet: item.Snippet})
	}
	return out
}

type serperSearcher struct {
	client serper.Client
}

func (s serperSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	results, err := s.client.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, serper.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		return nil, err
	}
	out := make([]Result, 0, len(results))
	for _, item := range results {
		out = append(out, Result{Title: item.Title, URL: item.URL, Snippet: item.Snippet})
	}
	return out, nil
}
