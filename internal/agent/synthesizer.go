package agent

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer turns the original query plus the gathered evidence into the
// final report. An empty evidence set is not an error: the prompt demands an
// explicit unsupported-by-sources disclaimer instead.
type Synthesizer struct {
	completer     Completer
	excerptBudget int
}

func NewSynthesizer(completer Completer, excerptBudget int) Synthesizer {
	if excerptBudget < 1 {
		excerptBudget = 3000
	}
	return Synthesizer{completer: completer, excerptBudget: excerptBudget}
}

func (s Synthesizer) Synthesize(ctx context.Context, query string, sources []Source) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("%w: no llm client", ErrSynthesisFailed)
	}

	prompt := buildSynthesisPrompt(query, sources, s.excerptBudget)
	report, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	report = strings.TrimSpace(report)
	if report == "" {
		return "", fmt.Errorf("%w: empty completion", ErrSynthesisFailed)
	}
	return report, nil
}
