package agent

import (
	"fmt"
	"strings"
)

func buildPlanPrompt(query string, maxQueries int) string {
	var b strings.Builder
	b.WriteString("You are a web research planner. Respond with strict JSON only.\n")
	b.WriteString("Schema: {\"intent\":string,\"queryType\":string,\"keyTopics\":string[],\"queries\":string[]}\n")
	b.WriteString("Rules:\n")
	b.WriteString("- intent: one sentence restating what the user wants to learn.\n")
	b.WriteString("- queryType: one of factual, explanatory, news, comparative, opinion.\n")
	b.WriteString("- keyTopics: the main subjects or named entities in the query.\n")
	b.WriteString(fmt.Sprintf("- queries: 1 to %d concrete web search phrases that together cover the information need.\n", maxQueries))
	b.WriteString("- Keep queries concise and specific; no duplicates.\n")
	b.WriteString("\nUser query:\n")
	b.WriteString(strings.TrimSpace(query))
	return strings.TrimSpace(b.String())
}

func buildSynthesisPrompt(query string, sources []Source, excerptBudget int) string {
	var b strings.Builder
	b.WriteString("You are a web research assistant. Write a clear, well-organized report that answers the user's query using only the provided sources.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Ground every claim in the source excerpts; do not invent information.\n")
	b.WriteString("- Cite sources inline by their URL.\n")
	b.WriteString("- If sources contradict each other, say so briefly.\n")
	b.WriteString("- If the sources are insufficient to answer fully, state that clearly.\n")
	b.WriteString("\nUser query:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n")

	if len(sources) == 0 {
		b.WriteString("\nSources: none.\n")
		b.WriteString("No supporting web evidence could be gathered for this query. ")
		b.WriteString("State up front that the report is NOT supported by sources, then answer briefly from general knowledge, clearly flagged as unverified.\n")
		return strings.TrimSpace(b.String())
	}

	b.WriteString("\nSources:\n")
	for i, source := range sources {
		if source.Status != SourceStatusOK {
			continue
		}
		b.WriteString(fmt.Sprintf("--- Source %d (URL: %s)", i+1, source.URL))
		if title := strings.TrimSpace(source.Title); title != "" {
			b.WriteString(fmt.Sprintf(" | %s", title))
		}
		b.WriteString("\n")
		excerpt := trimToRunes(strings.TrimSpace(source.Text), excerptBudget)
		b.WriteString(excerpt)
		if len([]rune(strings.TrimSpace(source.Text))) > excerptBudget {
			b.WriteString("…")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWrite the research report now.")
	return strings.TrimSpace(b.String())
}
