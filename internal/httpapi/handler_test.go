package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webresearch/internal/agent"
	"webresearch/internal/config"
	"webresearch/internal/store"
)

type runnerStub struct {
	result agent.Result
	err    error
	query  string
}

func (r *runnerStub) Run(_ context.Context, query string) (agent.Result, error) {
	r.query = query
	return r.result, r.err
}

type archiveStub struct {
	saved      []store.Run
	saveCtxErr error
	runs       map[string]store.Run
	listErr    error
}

func (a *archiveStub) SaveRun(ctx context.Context, run store.Run) error {
	a.saveCtxErr = ctx.Err()
	a.saved = append(a.saved, run)
	return nil
}

func (a *archiveStub) GetRun(_ context.Context, id string) (store.Run, error) {
	run, ok := a.runs[id]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

func (a *archiveStub) ListRuns(_ context.Context, limit int) ([]store.Run, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	out := make([]store.Run, 0, limit)
	for _, run := range a.runs {
		if len(out) == limit {
			break
		}
		out = append(out, run)
	}
	return out, nil
}

func testRouter(runner ResearchRunner, archive RunArchive) http.Handler {
	cfg := config.Config{AllowedOrigins: []string{"*"}}
	return NewRouter(cfg, runner, archive, nil)
}

func TestResearchSuccess(t *testing.T) {
	runner := &runnerStub{result: agent.Result{
		ID:     "run-1",
		Query:  "current population of Japan",
		Intent: "find the latest population figure",
		Report: "About 123.8 million.",
		Sources: []agent.Source{
			{URL: "https://stats.example.jp/population", Status: agent.SourceStatusOK},
		},
		Trace:    []string{"state: planning", "state: done"},
		Duration: 1500 * time.Millisecond,
	}}
	archive := &archiveStub{}
	router := testRouter(runner, archive)

	req := httptest.NewRequest(http.MethodPost, "/v1/research",
		strings.NewReader(`{"query":"current population of Japan"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp researchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "run-1" || resp.Report != "About 123.8 million." {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Sources) != 1 || len(resp.Trace) != 2 {
		t.Fatalf("unexpected sources/trace: %+v", resp)
	}
	if resp.DurationMS != 1500 {
		t.Fatalf("unexpected duration: %d", resp.DurationMS)
	}
	if len(archive.saved) != 1 || archive.saved[0].ID != "run-1" || archive.saved[0].SourceCount != 1 {
		t.Fatalf("run not archived: %+v", archive.saved)
	}
}

func TestResearchArchivesDespiteClientDisconnect(t *testing.T) {
	runner := &runnerStub{result: agent.Result{ID: "run-1", Query: "q", Report: "r"}}
	archive := &archiveStub{}
	router := testRouter(runner, archive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/research",
		strings.NewReader(`{"query":"q"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if len(archive.saved) != 1 {
		t.Fatal("finished run was not archived")
	}
	if archive.saveCtxErr != nil {
		t.Fatalf("archive write saw a dead context: %v", archive.saveCtxErr)
	}
}

func TestResearchRejectsBadRequests(t *testing.T) {
	router := testRouter(&runnerStub{}, &archiveStub{})

	for _, body := range []string{"", "not json", `{"query":"  "}`, `{"unknown":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestResearchErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"synthesis", fmt.Errorf("wrap: %w", agent.ErrSynthesisFailed), http.StatusBadGateway, "synthesis_failed"},
		{"no llm", fmt.Errorf("%w: planning", agent.ErrRunFailed), http.StatusServiceUnavailable, "run_failed"},
		{"cancelled", context.Canceled, 499, "cancelled"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &runnerStub{
				result: agent.Result{ID: "run-x", Trace: []string{"state: planning", "state: failed"}},
				err:    tc.err,
			}
			archive := &archiveStub{}
			router := testRouter(runner, archive)

			req := httptest.NewRequest(http.MethodPost, "/v1/research", strings.NewReader(`{"query":"q"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", resp.Error.Code, tc.wantCode)
			}
			if len(resp.Trace) == 0 {
				t.Fatal("failed run response must include the trace")
			}
			if len(archive.saved) != 0 {
				t.Fatal("failed run must not be archived")
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	archive := &archiveStub{runs: map[string]store.Run{
		"run-1": {ID: "run-1", Query: "q", Report: "r"},
	}}
	router := testRouter(&runnerStub{}, archive)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/run-2", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRunsLimit(t *testing.T) {
	archive := &archiveStub{runs: map[string]store.Run{}}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("run-%d", i)
		archive.runs[id] = store.Run{ID: id}
	}
	router := testRouter(&runnerStub{}, archive)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Runs []store.Run `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(resp.Runs))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for non-positive limit", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := testRouter(&runnerStub{}, &archiveStub{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
