package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"webresearch/internal/llm"
)

// LLMPlanner asks the LLM to restate the query's intent and propose concrete
// search phrases. Any parse or transport failure degrades to a single-query
// plan built from the verbatim user query; only a completely unconfigured LLM
// is reported as an error, because synthesis would be impossible anyway.
type LLMPlanner struct {
	completer  Completer
	maxQueries int
}

func NewLLMPlanner(completer Completer, maxQueries int) LLMPlanner {
	if maxQueries < 1 {
		maxQueries = 1
	}
	return LLMPlanner{completer: completer, maxQueries: maxQueries}
}

func (p LLMPlanner) Plan(ctx context.Context, query string) (Plan, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Plan{}, errors.New("query is required")
	}
	if p.completer == nil {
		return verbatimPlan(trimmed, "no llm client"), fmt.Errorf("%w: no llm client", ErrPlanningFailed)
	}

	raw, err := p.completer.Complete(ctx, buildPlanPrompt(trimmed, p.maxQueries))
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return verbatimPlan(trimmed, "llm credential missing"), fmt.Errorf("%w: %v", ErrPlanningFailed, err)
		}
		if ctx.Err() != nil {
			return Plan{}, ctx.Err()
		}
		return verbatimPlan(trimmed, fmt.Sprintf("llm unreachable: %v", err)), nil
	}

	plan, err := parsePlan(raw, p.maxQueries)
	if err != nil {
		return verbatimPlan(trimmed, fmt.Sprintf("unparseable plan: %v", err)), nil
	}
	if len(plan.Queries) == 0 {
		return verbatimPlan(trimmed, "plan contained no search queries"), nil
	}
	if strings.EqualFold(plan.QueryType, "news") {
		plan.Queries = appendNewsQuery(plan.Queries, trimmed)
	}
	return plan, nil
}

// appendNewsQuery adds one news-slanted search phrase on top of the planned
// queries, so current-events questions also hit recent coverage. Skipped when
// a planned query already carries the news slant.
func appendNewsQuery(queries []string, userQuery string) []string {
	for _, query := range queries {
		if strings.Contains(strings.ToLower(query), "news") {
			return queries
		}
	}
	return dedupeQueries(append(queries, userQuery+" latest news"))
}

func verbatimPlan(query, reason string) Plan {
	return Plan{
		Intent:   "",
		Queries:  []string{query},
		Fallback: true,
		Reason:   strings.TrimSpace(reason),
	}
}

type planAPIResponse struct {
	Intent    string   `json:"intent"`
	QueryType string   `json:"queryType"`
	KeyTopics []string `json:"keyTopics"`
	Queries   []string `json:"queries"`
}

func parsePlan(raw string, maxQueries int) (Plan, error) {
	jsonRaw := extractJSONBlock(raw)
	if jsonRaw == "" {
		return Plan{}, errors.New("planner response did not include json")
	}

	var parsed planAPIResponse
	if err := json.Unmarshal([]byte(jsonRaw), &parsed); err != nil {
		return Plan{}, err
	}

	queries := dedupeQueries(parsed.Queries)
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}

	return Plan{
		Intent:    strings.TrimSpace(parsed.Intent),
		QueryType: strings.TrimSpace(parsed.QueryType),
		KeyTopics: dedupeStrings(parsed.KeyTopics),
		Queries:   queries,
	}, nil
}
