package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ignite/internal/testsupport"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := store.Record(ctx, Entry{
		AttemptID:  "a-1",
		Trigger:    "initialize",
		Outcome:    OutcomeFailure,
		ErrorKind:  "native_library",
		Category:   "recoverable",
		Action:     "re_extract_files(lib/)",
		Message:    "required native libraries missing after extraction",
		Retries:    0,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = store.Record(ctx, Entry{AttemptID: "a-2", Trigger: "retry", Outcome: OutcomeSuccess, StepsCompleted: 3, Retries: 1})
	require.NoError(t, err)

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a-2", entries[0].AttemptID, "newest first")
	assert.Equal(t, 3, entries[0].StepsCompleted)
	assert.Empty(t, entries[0].ErrorKind)

	got := entries[1]
	assert.Equal(t, "native_library", got.ErrorKind)
	assert.Equal(t, "re_extract_files(lib/)", got.Action)
	assert.True(t, got.StartedAt.Equal(start))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a-2", limited[0].AttemptID)
}

func TestRecordRequiresAttemptID(t *testing.T) {
	store := openStore(t)
	_, err := store.Record(context.Background(), Entry{Outcome: OutcomeSuccess})
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"x", "y", "z"} {
		_, err := store.Record(ctx, Entry{AttemptID: id, Trigger: "initialize", Outcome: OutcomeSuccess})
		require.NoError(t, err)
	}

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	require.NoError(t, err)
	_, err = store.Record(context.Background(), Entry{AttemptID: "keep", Trigger: "initialize", Outcome: OutcomeSuccess})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cfg.JournalPath(), reopened.Path())
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	require.NoError(t, err)
	_, err = store.db.Exec("UPDATE schema_version SET version = ?", schemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}
