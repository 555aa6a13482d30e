// Package runlog keeps a local journal of sync runs in an embedded SQLite
// database, so operators can audit what each invocation touched without
// querying the warehouse.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_contracts (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	contract_number TEXT NOT NULL,
	beds            INTEGER NOT NULL DEFAULT 0,
	shapes          INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	recorded_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_contracts_run_id ON run_contracts(run_id);
`

// Journal is the local run journal.
type Journal struct {
	db *sql.DB
}

// Run is one journaled invocation.
type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Summary    string
}

// ContractEntry is one per-contract outcome within a run.
type ContractEntry struct {
	ContractNumber string
	Beds           int
	Shapes         int
	Error          string
}

// Open opens or creates the journal at path and applies the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: open %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "runlog: apply schema")
	}
	return &Journal{db: db}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun journals a new invocation and returns its run id.
func (j *Journal) StartRun(ctx context.Context, command string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, started_at) VALUES (?, ?, ?)`,
		id, command, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// RecordContract journals the outcome of one contract within a run. A
// non-empty errMsg marks the contract as failed without failing the run.
func (j *Journal) RecordContract(ctx context.Context, runID, contractNumber string, beds, shapes int, errMsg string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_contracts (run_id, contract_number, beds, shapes, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, contractNumber, beds, shapes, errMsg, time.Now().UTC(),
	)
	return eris.Wrapf(err, "runlog: record contract %s", contractNumber)
}

// FinishRun closes out a run with its final status and summary line.
func (j *Journal) FinishRun(ctx context.Context, runID, status, summary string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, summary = ? WHERE id = ?`,
		time.Now().UTC(), status, summary, runID,
	)
	return eris.Wrap(err, "runlog: finish run")
}

// RecentRuns returns the newest runs first, at most n.
func (j *Journal) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, command, started_at, finished_at, status, summary
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Command, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunContracts returns the per-contract entries for one run in journal order.
func (j *Journal) RunContracts(ctx context.Context, runID string) ([]ContractEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT contract_number, beds, shapes, error
		 FROM run_contracts WHERE run_id = ? ORDER BY recorded_at`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: list contracts for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var entries []ContractEntry
	for rows.Next() {
		var e ContractEntry
		if err := rows.Scan(&e.ContractNumber, &e.Beds, &e.Shapes, &e.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan contract entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
