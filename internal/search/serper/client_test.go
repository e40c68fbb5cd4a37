package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchPostsQueryAndParsesOrganic(t *testing.T) {
	var receivedKey string
	var receivedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedKey = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "organic": [
		    {"title":"Japan population 2025","link":"https://example.com/japan","snippet":"about 124 million"},
		    {"title":"Dup","link":"https://example.com/japan","snippet":"duplicate"},
		    {"title":"","link":"https://example.com/stats","snippet":"statistics"}
		  ]
		}`))
	}))
	defer server.Close()

	client := NewClient("serper-key", server.URL, server.Client())

	results, err := client.Search(context.Background(), "current population of japan", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if receivedKey != "serper-key" {
		t.Fatalf("expected api key header, got %q", receivedKey)
	}
	if receivedBody["q"] != "current population of japan" {
		t.Fatalf("unexpected query in body: %v", receivedBody["q"])
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 deduped results, got %d", len(results))
	}
	if results[1].Title != "https://example.com/stats" {
		t.Fatalf("expected url fallback title, got %q", results[1].Title)
	}
}

func TestSearchReturnsErrMissingAPIKey(t *testing.T) {
	client := NewClient("", "https://google.serper.dev", nil)

	_, err := client.Search(context.Background(), "test", 3)
	if err != ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSearchReturnsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer server.Close()

	client := NewClient("bad-key", server.URL, server.Client())

	_, err := client.Search(context.Background(), "test", 2)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if !strings.Contains(err.Error(), "serper returned 403") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
