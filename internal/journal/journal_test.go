package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"runs", "creations"} {
		var count int
		err := db.conn.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID, err := db.BeginRun(ctx)
	require.NoError(t, err)

	require.NoError(t, db.SetPhase(ctx, runID, "importing teams"))
	require.NoError(t, db.RecordCreation(ctx, runID, "team", "Gryffindor A", "http://x/teams/1"))
	require.NoError(t, db.RecordCreation(ctx, runID, "speaker", "Harry Potter", "http://x/speakers/2"))
	require.NoError(t, db.FinishRun(ctx, runID, nil))

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, StatusSucceeded, runs[0].Status)
	assert.Equal(t, "importing teams", runs[0].LastPhase)
	assert.Equal(t, 2, runs[0].Creations)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Empty(t, runs[0].Error)

	creations, err := db.ListCreations(ctx, runID)
	require.NoError(t, err)
	require.Len(t, creations, 2)
	assert.Equal(t, "team", creations[0].Kind)
	assert.Equal(t, "Harry Potter", creations[1].Name)
}

func TestFinishRunRecordsFailure(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID, err := db.BeginRun(ctx)
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(ctx, runID, errors.New("boom")))

	runs, err := db.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "boom", runs[0].Error)
}

func TestListRunsOrdersNewestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first, err := db.BeginRun(ctx)
	require.NoError(t, err)
	second, err := db.BeginRun(ctx)
	require.NoError(t, err)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)

	runs, err = db.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)
}

func TestRecorderObserverCallbacks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, db, zap.NewNop())
	require.NoError(t, err)

	rec.Phase("fetching baseline")
	rec.EntityCreated("judge", "Minerva McGonagall", "http://x/adjudicators/3")
	require.NoError(t, rec.Finish(ctx, nil))

	runs, err := db.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fetching baseline", runs[0].LastPhase)
	assert.Equal(t, 1, runs[0].Creations)
}
