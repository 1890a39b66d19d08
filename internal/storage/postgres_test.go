package storage_test

import (
	"testing"
	"time"

	internal_storage "github.com/doubleencore/MPA-Horatio/internal/storage"
	"github.com/doubleencore/MPA-Horatio/internal/testutil"
	"github.com/doubleencore/MPA-Horatio/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store
	newTxStore := func(t *testing.T) *internal_storage.PostgresStore {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		assert.NoError(t, err)
		txStore, err := store.Begin()
		assert.NoError(t, err)
		t.Cleanup(func() { txStore.Rollback() })
		return txStore.(*internal_storage.PostgresStore)
	}

	// Test SaveTaskEvent
	t.Run("SaveTaskEvent", func(t *testing.T) {
		store := newTxStore(t)
		e := storage.TaskEvent{
			TaskName:   "fetch-feed",
			Event:      storage.EventStarted,
			RecordedAt: time.Now(),
		}
		err := store.SaveTaskEvent(e)
		assert.NoError(t, err)

		events, err := store.ListTaskEvents("fetch-feed")
		assert.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, "fetch-feed", events[0].TaskName)
		assert.Equal(t, storage.EventStarted, events[0].Event)
		assert.False(t, events[0].Failed)
		assert.Greater(t, events[0].ID, int64(0))
	})

	// Test failed flag and detail round-trip
	t.Run("SaveTaskEvent preserves failure detail", func(t *testing.T) {
		store := newTxStore(t)
		e := storage.TaskEvent{
			TaskName:   "fetch-feed",
			Event:      storage.EventFinished,
			Failed:     true,
			Detail:     "condition \"Reachability\" failed",
			RecordedAt: time.Now(),
		}
		err := store.SaveTaskEvent(e)
		assert.NoError(t, err)

		events, err := store.ListTaskEvents("fetch-feed")
		assert.NoError(t, err)
		assert.Len(t, events, 1)
		assert.True(t, events[0].Failed)
		assert.Equal(t, e.Detail, events[0].Detail)
	})

	// Test ListTaskEvents ordering and name filtering
	t.Run("ListTaskEvents returns one task's events oldest first", func(t *testing.T) {
		store := newTxStore(t)
		for _, ev := range []string{storage.EventStarted, storage.EventProduced, storage.EventFinished} {
			err := store.SaveTaskEvent(storage.TaskEvent{
				TaskName:   "lifecycle",
				Event:      ev,
				RecordedAt: time.Now(),
			})
			assert.NoError(t, err)
		}
		err := store.SaveTaskEvent(storage.TaskEvent{
			TaskName:   "other",
			Event:      storage.EventStarted,
			RecordedAt: time.Now(),
		})
		assert.NoError(t, err)

		events, err := store.ListTaskEvents("lifecycle")
		assert.NoError(t, err)
		assert.Len(t, events, 3)
		assert.Equal(t, storage.EventStarted, events[0].Event)
		assert.Equal(t, storage.EventProduced, events[1].Event)
		assert.Equal(t, storage.EventFinished, events[2].Event)
	})

	// Test ListTaskEvents (Empty)
	t.Run("ListTaskEvents returns empty list for unknown task", func(t *testing.T) {
		store := newTxStore(t)
		events, err := store.ListTaskEvents("never-ran")
		assert.NoError(t, err)
		assert.Empty(t, events)
	})

	// Test ListRecentTaskEvents ordering and limit
	t.Run("ListRecentTaskEvents returns newest first capped at limit", func(t *testing.T) {
		store := newTxStore(t)
		names := []string{"a", "b", "c", "d"}
		for _, name := range names {
			err := store.SaveTaskEvent(storage.TaskEvent{
				TaskName:   name,
				Event:      storage.EventFinished,
				RecordedAt: time.Now(),
			})
			assert.NoError(t, err)
		}

		events, err := store.ListRecentTaskEvents(2)
		assert.NoError(t, err)
		assert.Len(t, events, 2)
		assert.Equal(t, "d", events[0].TaskName)
		assert.Equal(t, "c", events[1].TaskName)
	})

	// Non-positive limit falls back to the default cap
	t.Run("ListRecentTaskEvents tolerates non-positive limit", func(t *testing.T) {
		store := newTxStore(t)
		err := store.SaveTaskEvent(storage.TaskEvent{
			TaskName:   "solo",
			Event:      storage.EventStarted,
			RecordedAt: time.Now(),
		})
		assert.NoError(t, err)

		events, err := store.ListRecentTaskEvents(0)
		assert.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
