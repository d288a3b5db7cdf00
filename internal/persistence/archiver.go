// Package persistence is the optional Postgres trace archive. The run
// trace is otherwise discarded when its Redis TTL lapses; ops teams
// wanting longer retention point a DSN at this sink.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ignitelab/ignite/internal/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS run_traces (
	run_id     TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	session    TEXT NOT NULL,
	status     TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	universe   INT NOT NULL,
	stages     JSONB NOT NULL
)`

const insertSQL = `
INSERT INTO run_traces (run_id, strategy, session, status, started_at, universe, stages)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id) DO NOTHING`

// Archiver appends one row per completed run.
type Archiver struct {
	db *sqlx.DB
}

func Open(ctx context.Context, dsn string) (*Archiver, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect trace archive: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("ensure trace schema: %w", err)
	}
	return &Archiver{db: db}, nil
}

func (a *Archiver) Archive(ctx context.Context, trace *domain.RunTrace, status domain.RunStatus, universe int) error {
	stages, err := json.Marshal(trace.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal trace stages: %w", err)
	}
	_, err = a.db.ExecContext(ctx, insertSQL,
		trace.RunID, trace.Strategy, trace.Session, string(status),
		trace.StartedAt, universe, stages)
	if err != nil {
		return fmt.Errorf("archive trace %s: %w", trace.RunID, err)
	}
	return nil
}

func (a *Archiver) Close() error { return a.db.Close() }
