package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"webresearch/internal/agent"
	"webresearch/internal/config"
	"webresearch/internal/store"
)

const maxRunListLimit = 100

type ResearchRunner interface {
	Run(ctx context.Context, query string) (agent.Result, error)
}

type RunArchive interface {
	SaveRun(ctx context.Context, run store.Run) error
	GetRun(ctx context.Context, id string) (store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Handler struct {
	cfg     config.Config
	runner  ResearchRunner
	archive RunArchive
	logger  *zap.Logger
}

func NewHandler(cfg config.Config, runner ResearchRunner, archive RunArchive, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handler{cfg: cfg, runner: runner, archive: archive, logger: logger}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type researchRequest struct {
	Query string `json:"query"`
}

type researchResponse struct {
	ID           string         `json:"id"`
	Query        string         `json:"query"`
	Intent       string         `json:"intent,omitempty"`
	Report       string         `json:"report"`
	Sources      []agent.Source `json:"sources"`
	Trace        []string       `json:"trace"`
	DegradedPlan bool           `json:"degradedPlan,omitempty"`
	Unsupported  bool           `json:"unsupported,omitempty"`
	DurationMS   int64          `json:"durationMs"`
}

func (h Handler) Research(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object with a query field")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	result, err := h.runner.Run(r.Context(), query)
	if err != nil {
		h.logger.Warn("research run failed", zap.String("run_id", result.ID), zap.Error(err))
		switch {
		case errors.Is(err, agent.ErrSynthesisFailed):
			writeFailedRun(w, http.StatusBadGateway, "synthesis_failed",
				"the language model was unavailable while writing the report", result.Trace)
		case errors.Is(err, agent.ErrRunFailed):
			writeFailedRun(w, http.StatusServiceUnavailable, "run_failed",
				"research is unavailable: no language model is configured", result.Trace)
		case errors.Is(err, context.Canceled):
			writeFailedRun(w, 499, "cancelled", "the run was cancelled", result.Trace)
		case errors.Is(err, context.DeadlineExceeded):
			writeFailedRun(w, http.StatusGatewayTimeout, "timeout", "the run exceeded its time budget", result.Trace)
		default:
			writeFailedRun(w, http.StatusInternalServerError, "internal", "the run could not be completed", result.Trace)
		}
		return
	}

	if h.archive != nil {
		record := store.Run{
			ID:          result.ID,
			Query:       result.Query,
			Intent:      result.Intent,
			Report:      result.Report,
			SourceCount: len(result.Sources),
			Degraded:    result.DegradedPlan || result.EvidenceEmpty,
			DurationMS:  result.Duration.Milliseconds(),
		}
		// The write must survive the client hanging up right after the run.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
		defer cancel()
		if err := h.archive.SaveRun(saveCtx, record); err != nil {
			h.logger.Warn("archive run", zap.String("run_id", result.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, researchResponse{
		ID:           result.ID,
		Query:        result.Query,
		Intent:       result.Intent,
		Report:       result.Report,
		Sources:      result.Sources,
		Trace:        result.Trace,
		DegradedPlan: result.DegradedPlan,
		Unsupported:  result.EvidenceEmpty,
		DurationMS:   result.Duration.Milliseconds(),
	})
}

func (h Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "not_found", "run archive is not configured")
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxRunListLimit {
		limit = maxRunListLimit
	}

	runs, err := h.archive.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "not_found", "run archive is not configured")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "run id is required")
		return
	}

	run, err := h.archive.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		h.logger.Error("get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "could not load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
