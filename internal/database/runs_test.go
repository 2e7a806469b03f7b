package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := New("sqlite://"+filepath.Join(t.TempDir(), "ledger.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunStore(db.DB, logger.Nop())
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	run := &models.SyncRun{Kind: models.RunKindSync}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NotEmpty(t, run.ID)
	require.NoError(t, store.UpdateSource(ctx, run.ID, "ProductosHora.csv", "local", "alternative"))

	rec := store.Recorder(run.ID)
	p1 := &models.Product{Handle: "a", Title: "A", SourceRow: 1, Variant: models.Variant{SKU: "S1"}}
	p2 := &models.Product{Handle: "b", Title: "B", SourceRow: 2}
	rec.RecordProcessed(ctx, p1, syncer.Outcome{
		State: syncer.StateCreated,
		Ref:   models.RemoteProductRef{ID: 42},
		Steps: []syncer.StepResult{{Name: syncer.StepInventory, Status: syncer.StepOK}, {Name: syncer.StepCategory, Status: syncer.StepFallback}},
	})
	rec.RecordProcessed(ctx, p2, syncer.Outcome{
		State: syncer.StateCreateFailed,
		Kind:  syncer.ErrorKindValidation,
		Err:   errors.New("title can't be blank"),
	})

	stats := models.NewStatistics()
	stats.Processed, stats.Created, stats.Sellable, stats.OutOfStock = 2, 1, 2, 3
	stats.AddError(string(syncer.ErrorKindValidation))
	require.NoError(t, store.FinishRun(ctx, run.ID, models.RunStatusCompleted, stats, ""))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, "alternative", got.Schema)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, 1, got.Errors)
	assert.Equal(t, 3, got.OutOfStock)
	assert.InDelta(t, 50.0, got.SuccessRate, 0.001)
	require.NotNil(t, got.FinishedAt)

	all, err := store.ListRecords(ctx, run.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Handle)
	assert.Equal(t, int64(42), all[0].RemoteID)
	assert.Equal(t, "inventory:ok,category:fallback", all[0].Steps)

	failed, err := store.ListRecords(ctx, run.ID, string(syncer.StateCreateFailed))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "validation", failed[0].ErrorKind)
	assert.Equal(t, "title can't be blank", failed[0].Error)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateRun(ctx, &models.SyncRun{
			Kind:      models.RunKindSplit,
			Message:   string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	page1, total, err := store.ListRuns(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "e", page1[0].Message)
	assert.Equal(t, "d", page1[1].Message)

	page3, _, err := store.ListRuns(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "a", page3[0].Message)
}
