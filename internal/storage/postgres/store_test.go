package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/followup/internal/core"
)

// newTestStore connects to TEST_DATABASE_URL or skips the test.
func newTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := New(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return store, pool
}

func testRecord(started time.Time) core.RunRecord {
	return core.RunRecord{
		ID:        uuid.New().String(),
		Step:      core.StepCrossCheck,
		Phase:     core.PhaseComplete,
		Request:   core.RunRequest{Step: core.StepCrossCheck, FleetPath: "fleet.yaml", MDLDir: "mdl", ReferencePath: "ref.xlsx"},
		Outputs:   []string{"ref_for_CC.xlsx", "Follow-up_Initial.xlsx"},
		Stats:     core.RunStats{Units: 3, Records: 120, NewReferenceKey: 2},
		Requester: core.Requester{IP: "10.0.0.1", UserAgent: "test"},
		Started:   started,
		Duration:  1500 * time.Millisecond,
	}
}

func TestStore_RecordAndList(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	// Far in the future so it sorts first among existing rows.
	rec := testRecord(time.Now().Add(100 * 365 * 24 * time.Hour).UTC().Truncate(time.Millisecond))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM runs WHERE id::text = $1`, rec.ID) })

	require.NoError(t, store.RecordRun(ctx, rec))

	runs, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Step, got.Step)
	assert.Equal(t, rec.Phase, got.Phase)
	assert.Equal(t, rec.Request, got.Request)
	assert.Equal(t, rec.Outputs, got.Outputs)
	assert.Equal(t, rec.Stats, got.Stats)
	assert.Equal(t, rec.Requester, got.Requester)
	assert.Equal(t, rec.Duration, got.Duration)
	assert.True(t, rec.Started.Equal(got.Started))

	rec.Phase = core.PhaseFailed
	rec.Error = "boom"
	require.NoError(t, store.RecordRun(ctx, rec))
	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseFailed, runs[0].Phase)
	assert.Equal(t, "boom", runs[0].Error)
}

func TestStore_PendingReference(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	rec := testRecord(time.Now().Add(200 * 365 * 24 * time.Hour))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM runs WHERE id::text = $1`, rec.ID) })
	require.NoError(t, store.RecordRun(ctx, rec))

	db := core.ReferenceDB{Entries: []core.RefEntry{
		{PartNumber: "D1", CSN: "01", Fig: "5S", Type: core.TypeEFW, Title: "BRACKET",
			IPC: core.FlagTrue, SRMA321: core.FlagFalse, SRMA320: core.FlagFalse},
		{PartNumber: "D2", CSN: core.Placeholder, Fig: core.Placeholder, Type: core.TypeTBD, Title: "PANEL"},
	}}
	require.NoError(t, store.SaveReference(ctx, rec.ID, db))
	// saving again replaces the snapshot
	require.NoError(t, store.SaveReference(ctx, rec.ID, db))

	pending, err := store.PendingReference(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, db.Entries[1], pending[0])
}

func TestStore_PruneRuns(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	old := testRecord(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	t.Cleanup(func() { pool.Exec(ctx, `DELETE FROM runs WHERE id::text = $1`, old.ID) })
	require.NoError(t, store.RecordRun(ctx, old))
	require.NoError(t, store.SaveReference(ctx, old.ID, core.ReferenceDB{Entries: []core.RefEntry{{PartNumber: "D1"}}}))

	n, err := store.PruneRuns(ctx, time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	var left int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM reference_snapshots WHERE run_id::text = $1`, old.ID).Scan(&left))
	assert.Zero(t, left)
}

func TestStore_InvalidRunID(t *testing.T) {
	store := New(nil)
	err := store.RecordRun(context.Background(), core.RunRecord{ID: "not-a-uuid"})
	assert.ErrorContains(t, err, "invalid id")

	err = store.SaveReference(context.Background(), "nope", core.ReferenceDB{})
	assert.ErrorContains(t, err, "invalid run id")
}
