package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Agent sequences one research run: Planning -> Collecting -> Synthesizing ->
// Done. Collection cannot fail the run; planning fails it only when no LLM is
// usable at all, and synthesis failure is always fatal. Every transition is
// recorded in the run's trace.
type Agent struct {
	planner     Planner
	collector   *Collector
	synthesizer Synthesizer
	cfg         Config
	logger      *zap.Logger
}

func New(planner Planner, collector *Collector, synthesizer Synthesizer, cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		planner:     planner,
		collector:   collector,
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger,
	}
}

func (a *Agent) Run(ctx context.Context, query string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{}, errors.New("query is required")
	}

	runCtx := ctx
	cancel := func() {}
	if a.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
	}
	defer cancel()

	result := Result{
		ID:        uuid.NewString(),
		Query:     trimmed,
		StartedAt: time.Now().UTC(),
	}
	trace := &Trace{}
	logger := a.logger.With(zap.String("run_id", result.ID))
	logger.Info("research run started", zap.Int("query_chars", len([]rune(trimmed))))

	trace.Add("state: planning")
	plan, err := a.planner.Plan(runCtx, trimmed)
	if err != nil {
		if errors.Is(err, ErrPlanningFailed) {
			trace.Add("planning failed: %s", plan.Reason)
			trace.Add("state: failed")
			result.Trace = trace.Entries()
			result.Duration = time.Since(result.StartedAt)
			logger.Warn("research run failed in planning", zap.Error(err))
			return result, fmt.Errorf("%w: %v", ErrRunFailed, err)
		}
		trace.Add("state: failed")
		result.Trace = trace.Entries()
		result.Duration = time.Since(result.StartedAt)
		return result, err
	}

	result.Intent = plan.Intent
	result.DegradedPlan = plan.Fallback
	if plan.Fallback {
		trace.Add("planning degraded (%s); searching the verbatim query", plan.Reason)
	} else {
		trace.Add("planned %d search queries (intent: %s)", len(plan.Queries), plan.Intent)
	}

	trace.Add("state: collecting")
	evidence, stats, err := a.collector.Collect(runCtx, plan, trace)
	if err != nil {
		// Cancelled or timed out mid-collection: no partial report.
		trace.Add("state: failed")
		result.Trace = trace.Entries()
		result.Stats = stats
		result.Duration = time.Since(result.StartedAt)
		logger.Warn("research run aborted during collection", zap.Error(err))
		return result, err
	}
	result.Stats = stats
	result.EvidenceEmpty = evidence.Len() == 0
	trace.Add("collected %d of up to %d sources (%d fetch attempts, %d failures)",
		evidence.Len(), evidence.Cap(), stats.FetchAttempts, stats.FetchFailures)

	trace.Add("state: synthesizing")
	report, err := a.synthesizer.Synthesize(runCtx, trimmed, evidence.Sources())
	if err != nil {
		trace.Add("synthesis failed: %v", err)
		trace.Add("state: failed")
		result.Trace = trace.Entries()
		result.Duration = time.Since(result.StartedAt)
		logger.Warn("research run failed in synthesis", zap.Error(err))
		return result, err
	}

	result.Report = report
	result.Sources = evidence.Sources()
	trace.Add("state: done")
	result.Trace = trace.Entries()
	result.Duration = time.Since(result.StartedAt)
	logger.Info("research run finished",
		zap.Int("sources", len(result.Sources)),
		zap.Bool("degraded_plan", result.DegradedPlan),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
