package agent

import (
	"net/url"
	"strings"
)

// EvidenceSet is the bounded, URL-deduplicated collection of sources gathered
// for one run. The seen set covers every attempted URL, successful or not, so
// a URL surfaced by a later search query is never fetched twice.
type EvidenceSet struct {
	cap     int
	sources []Source
	seen    map[string]struct{}
}

func NewEvidenceSet(cap int) *EvidenceSet {
	if cap < 1 {
		cap = 1
	}
	return &EvidenceSet{
		cap:  cap,
		seen: make(map[string]struct{}),
	}
}

func (e *EvidenceSet) Cap() int {
	return e.cap
}

func (e *EvidenceSet) Len() int {
	return len(e.sources)
}

func (e *EvidenceSet) Full() bool {
	return len(e.sources) >= e.cap
}

func (e *EvidenceSet) Remaining() int {
	remaining := e.cap - len(e.sources)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *EvidenceSet) Seen(rawURL string) bool {
	_, ok := e.seen[normalizeURL(rawURL)]
	return ok
}

func (e *EvidenceSet) MarkSeen(rawURL string) {
	key := normalizeURL(rawURL)
	if key == "" {
		return
	}
	e.seen[key] = struct{}{}
}

// Add appends an ok source, enforcing the cap and URL uniqueness. It reports
// whether the source was kept.
func (e *EvidenceSet) Add(source Source) bool {
	if source.Status != SourceStatusOK {
		return false
	}
	key := normalizeURL(source.URL)
	if key == "" {
		return false
	}
	if e.Full() {
		return false
	}
	for _, existing := range e.sources {
		if normalizeURL(existing.URL) == key {
			return false
		}
	}
	e.seen[key] = struct{}{}
	e.sources = append(e.sources, source)
	return true
}

func (e *EvidenceSet) Sources() []Source {
	if len(e.sources) == 0 {
		return nil
	}
	out := make([]Source, len(e.sources))
	copy(out, e.sources)
	return out
}

func normalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	return parsed.String()
}
