package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"webresearch/internal/search"
)

// Collector drives the searcher and fetcher over a plan's queries, filling an
// EvidenceSet up to the global cap. Per-item failures (a search backend error,
// a page that will not fetch) are recorded in the trace and absorbed; only
// context cancellation aborts collection.
type Collector struct {
	searcher Searcher
	fetcher  Fetcher
	cfg      Config
}

func NewCollector(searcher Searcher, fetcher Fetcher, cfg Config) *Collector {
	if cfg.ResultsPerQuery < 1 {
		cfg.ResultsPerQuery = 5
	}
	if cfg.EvidenceCap < 1 {
		cfg.EvidenceCap = 1
	}
	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 4
	}
	return &Collector{searcher: searcher, fetcher: fetcher, cfg: cfg}
}

func (c *Collector) Collect(ctx context.Context, plan Plan, trace *Trace) (*EvidenceSet, CollectionStats, error) {
	evidence := NewEvidenceSet(c.cfg.EvidenceCap)
	stats := CollectionStats{}

	if c.searcher == nil {
		trace.Add("search unavailable: no provider configured")
		stats.SearchFailures = len(plan.Queries)
		return evidence, stats, nil
	}

	var lastSearchAt time.Time
	for _, query := range plan.Queries {
		if evidence.Full() {
			break
		}
		if err := ctx.Err(); err != nil {
			return evidence, stats, err
		}

		if err := waitBeforeSearch(ctx, &lastSearchAt, c.cfg.MinSearchInterval); err != nil {
			return evidence, stats, err
		}

		stats.QueriesSearched++
		results, err := c.searcher.Search(ctx, query, c.cfg.ResultsPerQuery)
		lastSearchAt = time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return evidence, stats, ctx.Err()
			}
			stats.SearchFailures++
			if errors.Is(err, search.ErrNotConfigured) {
				trace.Add("search unavailable for %q: provider credential missing", query)
			} else {
				trace.Add("search failed for %q: %v", query, err)
			}
			continue
		}
		trace.Add("searched %q: %d results", query, len(results))

		candidates := make([]search.Result, 0, c.cfg.ResultsPerQuery)
		for _, result := range results {
			if len(candidates) >= c.cfg.ResultsPerQuery {
				break
			}
			key := normalizeURL(result.URL)
			if key == "" {
				continue
			}
			if !matchesKeyTopics(result, plan.KeyTopics) {
				trace.Add("skipped %s: matches none of the key topics", result.URL)
				continue
			}
			if evidence.Seen(key) {
				trace.Add("skipped %s: already attempted", result.URL)
				continue
			}
			evidence.MarkSeen(key)
			candidates = append(candidates, result)
		}

		if err := c.fetchCandidates(ctx, query, candidates, evidence, &stats, trace); err != nil {
			return evidence, stats, err
		}
	}

	return evidence, stats, nil
}

// matchesKeyTopics screens a search result against the plan's key topics: a
// candidate stays when its title, snippet, or URL mentions any topic, or any
// word of a multi-word topic. An empty topic list keeps everything.
func matchesKeyTopics(result search.Result, topics []string) bool {
	if len(topics) == 0 {
		return true
	}
	haystack := strings.ToLower(result.Title + " " + result.Snippet + " " + result.URL)
	for _, topic := range topics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" {
			continue
		}
		if strings.Contains(haystack, topic) {
			return true
		}
		for _, word := range strings.Fields(topic) {
			if len([]rune(word)) >= 3 && strings.Contains(haystack, word) {
				return true
			}
		}
	}
	return false
}

type fetchOutcome struct {
	candidate search.Result
	result    FetchResult
	err       error
}

// fetchCandidates walks the ranked candidates in chunks no larger than the
// worker pool or the remaining cap headroom, so fetches run concurrently but
// the evidence cap is never overshot and no fetch is issued once it is met.
// Results are appended in rank order by this single coordinating goroutine.
func (c *Collector) fetchCandidates(
	ctx context.Context,
	query string,
	candidates []search.Result,
	evidence *EvidenceSet,
	stats *CollectionStats,
	trace *Trace,
) error {
	idx := 0
	for idx < len(candidates) && !evidence.Full() {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunkSize := min(c.cfg.FetchWorkers, evidence.Remaining(), len(candidates)-idx)
		chunk := candidates[idx : idx+chunkSize]
		idx += chunkSize

		outcomes := make([]fetchOutcome, len(chunk))
		var group errgroup.Group
		for i, candidate := range chunk {
			group.Go(func() error {
				result, err := c.fetcher.Fetch(ctx, candidate.URL)
				outcomes[i] = fetchOutcome{candidate: candidate, result: result, err: err}
				return nil
			})
		}
		_ = group.Wait()

		for _, outcome := range outcomes {
			stats.FetchAttempts++
			if outcome.err != nil || !outcome.result.OK() {
				stats.FetchFailures++
				status := outcome.result.Status
				if status == "" {
					status = "failed"
				}
				if outcome.err != nil {
					trace.Add("fetch failed %s (%s): %v", outcome.candidate.URL, status, outcome.err)
				} else {
					trace.Add("fetch failed %s (%s)", outcome.candidate.URL, status)
				}
				continue
			}

			source := Source{
				URL:       outcome.result.FinalURL,
				Title:     outcome.result.Title,
				Text:      outcome.result.Text,
				Status:    SourceStatusOK,
				Query:     query,
				FetchedAt: outcome.result.FetchedAt,
			}
			if evidence.Add(source) {
				trace.Add("fetched %s (%d chars)", source.URL, len([]rune(source.Text)))
			} else {
				trace.Add("dropped %s: evidence cap reached or duplicate", source.URL)
			}
		}
	}
	return ctx.Err()
}

func waitBeforeSearch(ctx context.Context, lastAttempt *time.Time, interval time.Duration) error {
	if interval <= 0 || lastAttempt == nil || lastAttempt.IsZero() {
		return nil
	}
	elapsed := time.Since(*lastAttempt)
	if elapsed >= interval {
		return nil
	}
	timer := time.NewTimer(interval - elapsed)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
