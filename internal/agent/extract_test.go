package agent

import (
	"strings"
	"testing"
)

func TestExtractContentJSON(t *testing.T) {
	_, text, err := extractContent("application/json", []byte(`{"name":"tokyo","population":14000000}`), "https://api.example.com/city", 16000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, `"population": 14000000`) {
		t.Fatalf("expected indented json, got %q", text)
	}
}

func TestExtractContentUnknownBinary(t *testing.T) {
	if _, _, err := extractContent("application/octet-stream", []byte{0x00, 0x01}, "https://example.com/blob", 16000); err != errUnsupportedContentType {
		t.Fatalf("expected errUnsupportedContentType, got %v", err)
	}
}

func TestExtractHTMLFallbackSkipsScripts(t *testing.T) {
	page := []byte(`<html><head><title>T</title><script>var x=1;</script></head>` +
		`<body><p>visible text</p><style>.a{}</style></body></html>`)
	title, text, err := extractHTMLText(page)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if title != "T" {
		t.Fatalf("unexpected title %q", title)
	}
	if !strings.Contains(text, "visible text") || strings.Contains(text, "var x") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestNormalizeExtractedText(t *testing.T) {
	in := "  first   line \r\n\r\n\r\n second\tline  \n"
	want := "first line\nsecond line"
	if got := normalizeExtractedText(in); got != want {
		t.Fatalf("normalizeExtractedText = %q, want %q", got, want)
	}
}

func TestDedupeQueries(t *testing.T) {
	got := dedupeQueries([]string{" Japan  population ", "japan population", "", "japan gdp"})
	if len(got) != 2 || got[0] != "Japan population" || got[1] != "japan gdp" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestExtractJSONBlock(t *testing.T) {
	if got := extractJSONBlock("prefix {\"a\":1} suffix"); got != `{"a":1}` {
		t.Fatalf("unexpected block %q", got)
	}
	if got := extractJSONBlock("no braces here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
