// Package agent implements the research pipeline: a user query is analyzed
// into a search plan, web evidence is gathered within explicit budgets, and a
// final report is synthesized from whatever evidence survived.
package agent

import (
	"context"
	"errors"
	"time"

	"webresearch/internal/search"
)

var (
	// ErrRunFailed marks a run that could not produce a report at all, e.g.
	// when no LLM credential is configured.
	ErrRunFailed = errors.New("research run failed")

	// ErrPlanningFailed marks an unusable planning stage. Planning degrades to
	// the verbatim query before it escalates to ErrRunFailed.
	ErrPlanningFailed = errors.New("query planning failed")

	// ErrSynthesisFailed marks an LLM failure during synthesis. It is fatal
	// for the run; no report can be produced without it.
	ErrSynthesisFailed = errors.New("report synthesis failed")
)

type SourceStatus string

const (
	SourceStatusOK      SourceStatus = "ok"
	SourceStatusFailed  SourceStatus = "failed"
	SourceStatusSkipped SourceStatus = "skipped"
)

// Source is one fetched web page reduced to readable text. Only sources with
// StatusOK contribute to synthesis.
type Source struct {
	URL       string       `json:"url"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"-"`
	Status    SourceStatus `json:"status"`
	Query     string       `json:"query,omitempty"`
	FetchedAt time.Time    `json:"fetchedAt,omitempty"`
}

// Plan is the planner's interpretation of the user query. Fallback is set when
// the LLM output could not be used and the verbatim query stands in for a plan.
type Plan struct {
	Intent    string
	QueryType string
	KeyTopics []string
	Queries   []string
	Fallback  bool
	Reason    string
}

type Config struct {
	SearchQueriesPerRun int
	ResultsPerQuery     int
	EvidenceCap         int
	FetchWorkers        int
	ExcerptCharBudget   int
	RunTimeout          time.Duration
	MinSearchInterval   time.Duration
}

type CollectionStats struct {
	QueriesSearched int
	SearchFailures  int
	FetchAttempts   int
	FetchFailures   int
}

// Result is what one run hands back to the caller: the report, the sources it
// cites, and the full step trace for transparency.
type Result struct {
	ID            string
	Query         string
	Intent        string
	Report        string
	Sources       []Source
	Trace         []string
	DegradedPlan  bool
	Stats         CollectionStats
	StartedAt     time.Time
	Duration      time.Duration
	EvidenceEmpty bool
}

type Planner interface {
	Plan(ctx context.Context, query string) (Plan, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// Completer is the LLM contract: one prompt in, one text completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
