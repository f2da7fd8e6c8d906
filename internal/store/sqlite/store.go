// Package sqlite persists agent session checkpoints using the pure-Go
// modernc.org/sqlite driver (no cgo, so the daemon stays a single static
// binary). Schema management is a hand-rolled, idempotent
// CREATE-TABLE-IF-NOT-EXISTS runner rather than a migration framework: see
// DESIGN.md for why golang-migrate was dropped.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opslane/agentd/internal/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	adapter_name  TEXT NOT NULL,
	task          TEXT,
	tags          TEXT,
	metadata      TEXT,
	system_prompt TEXT,
	messages      TEXT,
	metrics       TEXT,
	state         TEXT,
	pending_input TEXT,
	pending_tools TEXT,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id, created_at);

CREATE TABLE IF NOT EXISTS scheduler_runs (
	job_name    TEXT PRIMARY KEY,
	last_run_at INTEGER NOT NULL,
	last_result TEXT
);
`

// Store is a checkpoint store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers per file

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveCheckpoint inserts a new checkpoint row for cp.SessionId. Checkpoints
// are append-only: the most recent row for a session id is its latest
// state.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *agent.Checkpoint) error {
	tags, err := json.Marshal(cp.Tags)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(cp.Messages)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(cp.Metrics)
	if err != nil {
		return err
	}
	pendingInput, err := json.Marshal(cp.PendingInput)
	if err != nil {
		return err
	}
	pendingTools, err := json.Marshal(cp.PendingTools)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints
			(session_id, adapter_name, task, tags, metadata, system_prompt, messages, metrics, state, pending_input, pending_tools, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.SessionId, cp.AdapterName, cp.Task, string(tags), string(metadata), cp.SystemPrompt,
		string(messages), string(metrics), string(cp.State), string(pendingInput), string(pendingTools),
		time.Now().UnixMilli(),
	)
	return err
}

// LatestCheckpoint returns the most recently saved checkpoint for
// sessionId, or nil if none exists.
func (s *Store) LatestCheckpoint(ctx context.Context, sessionId string) (*agent.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT adapter_name, task, tags, metadata, system_prompt, messages, metrics, state, pending_input, pending_tools
		FROM checkpoints WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionId)
	cp, err := scanCheckpoint(row, sessionId)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// ListCheckpoints returns every checkpoint for sessionId, oldest first.
func (s *Store) ListCheckpoints(ctx context.Context, sessionId string) ([]*agent.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT adapter_name, task, tags, metadata, system_prompt, messages, metrics, state, pending_input, pending_tools
		FROM checkpoints WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agent.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows, sessionId)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(row scanner, sessionId string) (*agent.Checkpoint, error) {
	var (
		adapterName, task, systemPrompt, state                             string
		tags, metadata, messages, metrics, pendingInput, pendingTools string
	)
	if err := row.Scan(&adapterName, &task, &tags, &metadata, &systemPrompt, &messages, &metrics, &state, &pendingInput, &pendingTools); err != nil {
		return nil, err
	}

	cp := &agent.Checkpoint{
		SessionId:    sessionId,
		AdapterName:  adapterName,
		Task:         task,
		SystemPrompt: systemPrompt,
		State:        agent.State(state),
	}
	if err := json.Unmarshal([]byte(tags), &cp.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &cp.Metadata); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(messages), &cp.Messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &cp.Metrics); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pendingInput), &cp.PendingInput); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pendingTools), &cp.PendingTools); err != nil {
		return nil, err
	}
	return cp, nil
}

// RecordSchedulerRun upserts the last-run timestamp and result for a named
// scheduler job, so scheduler.list() survives a daemon restart.
func (s *Store) RecordSchedulerRun(ctx context.Context, jobName string, at time.Time, result string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_runs (job_name, last_run_at, last_result) VALUES (?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET last_run_at = excluded.last_run_at, last_result = excluded.last_result`,
		jobName, at.UnixMilli(), result)
	return err
}

// SchedulerRun is the persisted last-run state of one named job.
type SchedulerRun struct {
	JobName    string
	LastRunAt  time.Time
	LastResult string
}

// LoadSchedulerRuns returns every persisted job run record.
func (s *Store) LoadSchedulerRuns(ctx context.Context) ([]SchedulerRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_name, last_run_at, last_result FROM scheduler_runs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchedulerRun
	for rows.Next() {
		var jobName, lastResult string
		var lastRunMs int64
		if err := rows.Scan(&jobName, &lastRunMs, &lastResult); err != nil {
			return nil, err
		}
		out = append(out, SchedulerRun{JobName: jobName, LastRunAt: time.UnixMilli(lastRunMs), LastResult: lastResult})
	}
	return out, rows.Err()
}
