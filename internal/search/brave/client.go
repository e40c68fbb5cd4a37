// Package brave is a minimal client for the Brave web search REST API.
package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	errorBodyLimit = 8 * 1024
	queryWordLimit = 50
)

var ErrMissingAPIKey = errors.New("brave api key is not configured")

type APIError struct {
	StatusCode int
	Body       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("brave returned %d: %s", e.StatusCode, e.Body)
}

type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

func (c Client) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	query = clampQueryWords(query)
	if query == "" {
		return nil, nil
	}
	if count <= 0 {
		count = 5
	}

	req, err := c.buildRequest(ctx, query, count)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return parseResults(resp.Body, count)
}

func (c Client) buildRequest(ctx context.Context, query string, count int) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + "/web/search")
	if err != nil {
		return nil, fmt.Errorf("parse brave endpoint: %w", err)
	}
	params := url.Values{
		"q":                {query},
		"count":            {strconv.Itoa(count)},
		"spellcheck":       {"0"},
		"text_decorations": {"0"},
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)
	return req, nil
}

type webResponse struct {
	Web struct {
		Results []webResult `json:"results"`
	} `json:"web"`
	// Older API shapes put results at the top level.
	Results []webResult `json:"results"`
}

type webResult struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Snippet       string   `json:"snippet"`
	ExtraSnippets []string `json:"extra_snippets"`
}

func (r webResult) snippet() string {
	for _, candidate := range append([]string{r.Description, r.Snippet}, r.ExtraSnippets...) {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

func parseResults(body io.Reader, count int) ([]SearchResult, error) {
	var parsed webResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	raw := parsed.Web.Results
	if len(raw) == 0 {
		raw = parsed.Results
	}

	results := make([]SearchResult, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		link := strings.TrimSpace(item.URL)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = link
		}
		results = append(results, SearchResult{URL: link, Title: title, Snippet: item.snippet()})
		if len(results) == count {
			break
		}
	}
	return results, nil
}

func clampQueryWords(query string) string {
	words := strings.Fields(query)
	if len(words) > queryWordLimit {
		words = words[:queryWordLimit]
	}
	return strings.Join(words, " ")
}
