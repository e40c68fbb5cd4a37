// Package store archives completed research runs. Only finished reports and
// their summary stats are written; traces and raw evidence stay in memory for
// the lifetime of a run and are never stored.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"webresearch/internal/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  query        TEXT NOT NULL,
  intent       TEXT NOT NULL DEFAULT '',
  report       TEXT NOT NULL,
  source_count INTEGER NOT NULL DEFAULT 0,
  degraded     INTEGER NOT NULL DEFAULT 0,
  duration_ms  INTEGER NOT NULL DEFAULT 0,
  created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
`

type Run struct {
	ID          string `json:"id"`
	Query       string `json:"query"`
	Intent      string `json:"intent,omitempty"`
	Report      string `json:"report"`
	SourceCount int    `json:"sourceCount"`
	Degraded    bool   `json:"degraded,omitempty"`
	DurationMS  int64  `json:"durationMs"`
	CreatedAt   string `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func Open(cfg config.Config) (*Store, error) {
	driver, dsn, err := buildDSN(cfg.DatabaseURL, cfg.DatabaseToken)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveRun(ctx context.Context, run Run) error {
	query := `
INSERT INTO runs (id, query, intent, report, source_count, degraded, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Query,
		run.Intent,
		run.Report,
		run.SourceCount,
		boolToInt(run.Degraded),
		run.DurationMS,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	query := `
SELECT id, query, intent, report, source_count, degraded, duration_ms, created_at
FROM runs WHERE id = ?;
`
	var out Run
	var degraded int
	err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(
		&out.ID,
		&out.Query,
		&out.Intent,
		&out.Report,
		&out.SourceCount,
		&degraded,
		&out.DurationMS,
		&out.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	out.Degraded = degraded != 0
	return out, nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT id, query, intent, report, source_count, degraded, duration_ms, created_at
FROM runs ORDER BY created_at DESC, id LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var degraded int
		if err := rows.Scan(
			&run.ID,
			&run.Query,
			&run.Intent,
			&run.Report,
			&run.SourceCount,
			&degraded,
			&run.DurationMS,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Degraded = degraded != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func buildDSN(rawURL, authToken string) (driver, dsn string, err error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty database url")
	}

	if strings.HasPrefix(trimmed, "file:") {
		return "sqlite", trimmed, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("parse database url: %w", err)
	}

	if strings.HasPrefix(trimmed, "libsql://") {
		query := parsed.Query()
		if query.Get("authToken") == "" && strings.TrimSpace(authToken) != "" {
			query.Set("authToken", strings.TrimSpace(authToken))
			parsed.RawQuery = query.Encode()
		}
		return "libsql", parsed.String(), nil
	}

	return "", "", fmt.Errorf("unsupported database url %q", trimmed)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
