package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testRecord(id, title string, createdAt time.Time) *Record {
	return &Record{
		ID:         id,
		Title:      title,
		Author:     "Test Author",
		Rating:     4,
		Notes:      "some notes",
		SyncStatus: StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	record := testRecord("rec-1", "Clean Code", now)
	record.Read = true

	require.NoError(t, store.Upsert(ctx, record))

	retrieved, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Clean Code", retrieved.Title)
	assert.Equal(t, "Test Author", retrieved.Author)
	assert.Equal(t, 4, retrieved.Rating)
	assert.True(t, retrieved.Read)
	assert.Equal(t, StatusPending, retrieved.SyncStatus)
	assert.EqualValues(t, 0, retrieved.RemoteID)
	assert.True(t, retrieved.CreatedAt.Equal(now))
}

func TestStore_Upsert_Overwrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	record := testRecord("rec-1", "Clean Code", now)
	require.NoError(t, store.Upsert(ctx, record))

	record.SyncStatus = StatusSynced
	record.RemoteID = 101
	record.Rating = 5
	require.NoError(t, store.Upsert(ctx, record))

	retrieved, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, retrieved.SyncStatus)
	assert.EqualValues(t, 101, retrieved.RemoteID)
	assert.Equal(t, 5, retrieved.Rating)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, title := range []string{"oldest", "middle", "newest"} {
		record := testRecord(fmt.Sprintf("rec-%d", i), title, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Upsert(ctx, record))
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "newest", records[0].Title)
	assert.Equal(t, "middle", records[1].Title)
	assert.Equal(t, "oldest", records[2].Title)
}

func TestStore_ListByStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)

	pending := testRecord("rec-pending", "pending book", base)
	synced := testRecord("rec-synced", "synced book", base.Add(time.Second))
	synced.SyncStatus = StatusSynced
	synced.RemoteID = 7
	failed := testRecord("rec-failed", "failed book", base.Add(2*time.Second))
	failed.SyncStatus = StatusFailed

	require.NoError(t, store.Upsert(ctx, pending))
	require.NoError(t, store.Upsert(ctx, synced))
	require.NoError(t, store.Upsert(ctx, failed))

	records, err := store.ListByStatus(ctx, StatusPending, StatusFailed)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first: failed was created last
	assert.Equal(t, "rec-failed", records[0].ID)
	assert.Equal(t, "rec-pending", records[1].ID)
}

func TestStore_ListByStatus_Empty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.ListByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := testRecord("rec-1", "doomed", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.Upsert(ctx, record))

	require.NoError(t, store.Delete(ctx, "rec-1"))

	_, err := store.Get(ctx, "rec-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing record is a no-op
	assert.NoError(t, store.Delete(ctx, "rec-1"))
}

func TestStore_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	record := testRecord("rec-1", "Clean Code", time.Now().UTC().Truncate(time.Second))
	record.SyncStatus = StatusSynced
	record.RemoteID = 101
	require.NoError(t, store.Upsert(ctx, record))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	retrieved, err := reopened.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, retrieved.SyncStatus)
	assert.EqualValues(t, 101, retrieved.RemoteID)
}

func TestStore_ConcurrentUpserts_PublishInCommitOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events, subID := store.Subscribe(ctx)
	defer store.Unsubscribe(subID)

	base := time.Now().UTC().Truncate(time.Second)

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				record := testRecord("rec-1", fmt.Sprintf("writer-%d-%d", w, i), base)
				if err := store.Upsert(ctx, record); err != nil {
					t.Errorf("upsert: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	stored, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)

	// Every publish happened inside its Upsert call, so the stream is
	// complete by now. The last event must carry the row that won.
	var last Event
	count := 0
	for {
		select {
		case event := <-events:
			last = event
			count++
			continue
		default:
		}
		break
	}

	require.Equal(t, 40, count)
	require.NotNil(t, last.Record)
	assert.Equal(t, stored.Title, last.Record.Title,
		"event order must match commit order")
}

func TestStore_MigratesNotesColumn(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	// Build a database from before the notes column existed.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE records (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			author      TEXT NOT NULL,
			rating      INTEGER NOT NULL DEFAULT 0,
			read        INTEGER NOT NULL DEFAULT 0,
			sync_status TEXT NOT NULL,
			remote_id   INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
		INSERT INTO records (id, title, author, sync_status, created_at, updated_at)
		VALUES ('rec-old', 'pre-migration', 'Old Author', 'pending',
			'2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	retrieved, err := store.Get(ctx, "rec-old")
	require.NoError(t, err)
	assert.Equal(t, "pre-migration", retrieved.Title)
	assert.Empty(t, retrieved.Notes)

	retrieved.Notes = "written after migration"
	require.NoError(t, store.Upsert(ctx, retrieved))

	retrieved, err = store.Get(ctx, "rec-old")
	require.NoError(t, err)
	assert.Equal(t, "written after migration", retrieved.Notes)
}

func TestStore_PublishesCommitEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	events, subID := store.Subscribe(ctx)
	defer store.Unsubscribe(subID)

	record := testRecord("rec-1", "watched", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.Upsert(ctx, record))

	select {
	case event := <-events:
		assert.Equal(t, EventPut, event.Type)
		assert.Equal(t, "rec-1", event.ID)
		require.NotNil(t, event.Record)
		assert.Equal(t, "watched", event.Record.Title)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for commit event")
	}

	require.NoError(t, store.Delete(ctx, "rec-1"))

	select {
	case event := <-events:
		assert.Equal(t, EventDelete, event.Type)
		assert.Equal(t, "rec-1", event.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete event")
	}
}
