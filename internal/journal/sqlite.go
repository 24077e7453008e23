// Package journal records runs and their event streams in SQLite so a
// finished run can be replayed over the read API. The default DSN is an
// in-memory database; the journal is an in-process record, not durable
// conversation storage.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/agui/internal/domain"
)

// MemoryDSN keeps the journal in process memory. The shared cache lets
// every connection of the pool see the same database.
const MemoryDSN = "file:agui-journal?mode=memory&cache=shared"

// Journal is the run/event recorder.
type Journal struct {
	db *sql.DB
}

// Open opens (and migrates) a journal at dsn.
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			agent_type TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_thread ON runs(thread_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// CreateRun records the start of a run.
func (j *Journal) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, thread_id, agent_type, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.ThreadID, run.AgentType, run.Status, run.StartedAt)
	return err
}

// FinishRun marks the run's terminal status and end time.
func (j *Journal) FinishRun(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ?`,
		status, time.Now(), runID)
	return err
}

// GetRun retrieves a run by id. Returns (nil, nil) when not found.
func (j *Journal) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var endedAt sql.NullTime
	err := j.db.QueryRowContext(ctx,
		`SELECT run_id, thread_id, agent_type, status, started_at, ended_at FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.ThreadID, &run.AgentType, &run.Status, &run.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// AppendEvent journals one emitted event under the run.
func (j *Journal) AppendEvent(ctx context.Context, runID string, seq int, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, seq, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		"evt_"+uuid.New().String()[:8], runID, seq, time.Now().UnixMilli(), event.EventType(), string(payload))
	return err
}

// GetEvents retrieves a run's journaled events in emission order.
func (j *Journal) GetEvents(ctx context.Context, runID string) ([]domain.EventRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT event_id, run_id, seq, ts, type, payload FROM events WHERE run_id = ? ORDER BY seq ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.EventRecord
	for rows.Next() {
		var event domain.EventRecord
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Seq, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
