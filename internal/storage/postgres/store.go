// Package postgres keeps the run history and reference database snapshots
// in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/followup/internal/core"
)

// DefaultListLimit caps ListRuns when no positive limit is given.
const DefaultListLimit = 50

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id           UUID PRIMARY KEY,
	step         INTEGER NOT NULL,
	phase        TEXT NOT NULL,
	request      JSONB NOT NULL,
	outputs      TEXT[] NOT NULL DEFAULT '{}',
	stats        JSONB NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	code         TEXT NOT NULL DEFAULT '',
	requester_ip TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);

CREATE TABLE IF NOT EXISTS reference_snapshots (
	run_id      UUID NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	part_number TEXT NOT NULL,
	csn         TEXT NOT NULL,
	fig         TEXT NOT NULL,
	type        TEXT NOT NULL,
	bom_parts   TEXT NOT NULL,
	title       TEXT NOT NULL,
	ipc         TEXT NOT NULL,
	srm_a321    TEXT NOT NULL,
	srm_a320    TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

var snapshotColumns = []string{
	"run_id", "position", "part_number", "csn", "fig", "type", "bom_parts", "title",
	"ipc", "srm_a321", "srm_a320",
}

// Store implements core.RunStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.RunStore = (*Store)(nil)

// New creates a Store. Call EnsureSchema before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordRun inserts a finished run. Recording the same run twice updates it.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("record run: invalid id %q: %w", rec.ID, err)
	}
	outputs := rec.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (id, step, phase, request, outputs, stats, error, code,
			requester_ip, user_agent, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			outputs = EXCLUDED.outputs,
			stats = EXCLUDED.stats,
			error = EXCLUDED.error,
			code = EXCLUDED.code,
			duration_ms = EXCLUDED.duration_ms`,
		id, int(rec.Step), string(rec.Phase), rec.Request, outputs, rec.Stats,
		rec.Error, rec.Code, rec.Requester.IP, rec.Requester.UserAgent,
		rec.Started, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// SaveReference replaces the reference snapshot of a run. Entries keep
// their order.
func (s *Store) SaveReference(ctx context.Context, runID string, db core.ReferenceDB) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("save reference: invalid run id %q: %w", runID, err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM reference_snapshots WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"reference_snapshots"}, snapshotColumns,
		pgx.CopyFromSlice(len(db.Entries), func(i int) ([]any, error) {
			e := db.Entries[i]
			return []any{
				id, i, e.PartNumber, e.CSN, e.Fig, e.Type, e.BOMParts, e.Title,
				e.IPC.String(), e.SRMA321.String(), e.SRMA320.String(),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, step, phase, request, outputs, stats, error, code,
			requester_ip, user_agent, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.RunRecord
	for rows.Next() {
		var (
			rec        core.RunRecord
			step       int
			phase      string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &step, &phase, &rec.Request, &rec.Outputs, &rec.Stats,
			&rec.Error, &rec.Code, &rec.Requester.IP, &rec.Requester.UserAgent,
			&rec.Started, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Step = core.Step(step)
		rec.Phase = core.RunPhase(phase)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// PendingReference returns the TBD entries of the newest reference snapshot.
func (s *Store) PendingReference(ctx context.Context) ([]core.RefEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT part_number, csn, fig, type, bom_parts, title, ipc, srm_a321, srm_a320
		FROM reference_snapshots
		WHERE run_id = (
			SELECT r.id FROM runs r
			WHERE EXISTS (SELECT 1 FROM reference_snapshots x WHERE x.run_id = r.id)
			ORDER BY r.started_at DESC
			LIMIT 1
		)
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("pending reference: %w", err)
	}
	defer rows.Close()

	var out []core.RefEntry
	for rows.Next() {
		var e core.RefEntry
		var ipc, a321, a320 string
		if err := rows.Scan(&e.PartNumber, &e.CSN, &e.Fig, &e.Type, &e.BOMParts, &e.Title,
			&ipc, &a321, &a320); err != nil {
			return nil, fmt.Errorf("scan reference entry: %w", err)
		}
		e.IPC, _ = core.ParseFlag(ipc)
		e.SRMA321, _ = core.ParseFlag(a321)
		e.SRMA320, _ = core.ParseFlag(a320)
		if e.Pending() {
			out = append(out, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending reference: %w", err)
	}
	return out, nil
}

// PruneRuns deletes runs started before the cutoff, with their snapshots.
func (s *Store) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM runs WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
