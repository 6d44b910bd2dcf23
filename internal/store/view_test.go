package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestView(t *testing.T, st Store) *View {
	t.Helper()

	view, err := NewView(context.Background(), st)
	require.NoError(t, err)
	t.Cleanup(view.Close)
	return view
}

func TestView_InitialSnapshot(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.Upsert(ctx, testRecord("rec-1", "older", base)))
	require.NoError(t, st.Upsert(ctx, testRecord("rec-2", "newer", base.Add(time.Second))))

	view := setupTestView(t, st)

	records := view.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "newer", records[0].Title)
	assert.Equal(t, "older", records[1].Title)
}

func TestView_BackgroundWritePropagates(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()
	view := setupTestView(t, st)

	// A write committed after the view was built must show up without
	// any explicit re-read.
	record := testRecord("rec-1", "background write", time.Now().UTC())
	require.NoError(t, st.Upsert(ctx, record))

	require.Eventually(t, func() bool {
		_, err := view.Get("rec-1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cached, err := view.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, "background write", cached.Title)
}

func TestView_LastWriteWinsByCommitOrder(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()
	view := setupTestView(t, st)

	base := time.Now().UTC().Truncate(time.Second)

	// Commit order decides, not updated_at: the second commit carries an
	// older updated_at but must still win.
	first := testRecord("rec-1", "first commit", base)
	first.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, st.Upsert(ctx, first))

	second := testRecord("rec-1", "second commit", base)
	second.UpdatedAt = base
	require.NoError(t, st.Upsert(ctx, second))

	require.Eventually(t, func() bool {
		cached, err := view.Get("rec-1")
		return err == nil && cached.Title == "second commit"
	}, time.Second, 5*time.Millisecond)
}

func TestView_DeletePropagates(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, testRecord("rec-1", "doomed", time.Now().UTC())))
	view := setupTestView(t, st)

	_, err := view.Get("rec-1")
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, "rec-1"))

	require.Eventually(t, func() bool {
		_, err := view.Get("rec-1")
		return err == ErrNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestView_WholeRecordGranularity(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()
	view := setupTestView(t, st)

	record := testRecord("rec-1", "atomic", time.Now().UTC())
	record.SyncStatus = StatusSynced
	record.RemoteID = 42
	require.NoError(t, st.Upsert(ctx, record))

	// The cached record must never be observed with the status applied
	// but the remote ID missing (or vice versa).
	require.Eventually(t, func() bool {
		cached, err := view.Get("rec-1")
		if err != nil {
			return false
		}
		return cached.SyncStatus == StatusSynced && cached.RemoteID == 42
	}, time.Second, 5*time.Millisecond)
}

func TestView_AgainstSQLite(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	view := setupTestView(t, st)

	record := testRecord("rec-1", "sqlite backed", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, st.Upsert(ctx, record))

	require.Eventually(t, func() bool {
		records := view.Records()
		return len(records) == 1 && records[0].Title == "sqlite backed"
	}, time.Second, 5*time.Millisecond)
}

// snapshotRaceStore commits one extra record the moment List returns,
// landing a write in the window between the snapshot and anything the
// caller does next.
type snapshotRaceStore struct {
	*MockStore
	once  sync.Once
	extra *Record
}

func (s *snapshotRaceStore) List(ctx context.Context) ([]*Record, error) {
	records, err := s.MockStore.List(ctx)
	s.once.Do(func() {
		_ = s.MockStore.Upsert(ctx, s.extra)
	})
	return records, err
}

func TestView_SeesCommitDuringSnapshotLoad(t *testing.T) {
	st := &snapshotRaceStore{
		MockStore: NewMockStore(),
		extra:     testRecord("rec-window", "committed mid-load", time.Now().UTC()),
	}

	// The commit misses the snapshot, so it must arrive via the event
	// stream; the subscription has to exist before the snapshot is taken.
	view, err := NewView(context.Background(), st)
	require.NoError(t, err)
	defer view.Close()

	require.Eventually(t, func() bool {
		cached, err := view.Get("rec-window")
		return err == nil && cached.Title == "committed mid-load"
	}, time.Second, 5*time.Millisecond)
}

func TestView_ConcurrentWritersConverge(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()
	view := setupTestView(t, st)

	base := time.Now().UTC().Truncate(time.Second)

	// Two writers hammer the same ID. Whichever commit lands last in the
	// store is the one the view must settle on.
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				record := testRecord("rec-1", fmt.Sprintf("writer-%d-%d", w, i), base)
				if err := st.Upsert(ctx, record); err != nil {
					t.Errorf("upsert: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	stored, err := st.Get(ctx, "rec-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cached, err := view.Get("rec-1")
		return err == nil && cached.Title == stored.Title
	}, time.Second, 5*time.Millisecond)
}

func TestView_RecordsReturnsCopies(t *testing.T) {
	st := NewMockStore()
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, testRecord("rec-1", "original", time.Now().UTC())))
	view := setupTestView(t, st)

	records := view.Records()
	require.Len(t, records, 1)
	records[0].Title = "mutated"

	cached, err := view.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, "original", cached.Title)
}
