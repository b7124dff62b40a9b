package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocksync/internal/domain"
	"stocksync/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, logger.NewWithDefaults()))
	return NewStore(db)
}

func TestSourceStateEmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	state, err := store.SourceState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestSaveSourceStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := map[string]string{
		"/inventory-updates/feed_a.csv": "rev-001",
		"/inventory-updates/feed_b.xlsx": "rev-002",
	}
	require.NoError(t, store.SaveSourceState(ctx, in))

	out, err := store.SourceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSaveSourceStateReplacesPreviousState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSourceState(ctx, map[string]string{
		"/inventory-updates/old.csv": "rev-001",
	}))
	require.NoError(t, store.SaveSourceState(ctx, map[string]string{
		"/inventory-updates/new.csv": "rev-002",
	}))

	out, err := store.SourceState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/inventory-updates/new.csv": "rev-002"}, out)
}

func TestRecordRunAppearsInHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report := domain.NewRunReport()
	report.ProcessedFiles = 2
	report.ProcessedProducts = 40
	report.StockUpdates = 12
	report.StockResets = 3
	report.AddError("SKU 123: stock mutation failed")
	report.Finish()

	require.NoError(t, store.RecordRun(ctx, report))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, 2, got.ProcessedFiles)
	assert.Equal(t, 40, got.ProcessedProducts)
	assert.Equal(t, 12, got.StockUpdates)
	assert.Equal(t, 3, got.StockResets)
	assert.Equal(t, 1, got.ErrorCount)
}

func TestRecentRunsOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := domain.NewRunReport()
	older.StartedAt = time.Now().Add(-time.Hour)
	older.Finish()
	require.NoError(t, store.RecordRun(ctx, older))

	newer := domain.NewRunReport()
	newer.Finish()
	require.NoError(t, store.RecordRun(ctx, newer))

	runs, err := store.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, newer.RunID, runs[0].RunID)
}
