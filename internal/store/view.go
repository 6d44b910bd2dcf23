// ABOUTME: Foreground read surface over the store with automatic propagation
// ABOUTME: Maintains a cached snapshot updated from commit events, last write wins

package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// View is the foreground read surface of the store.
//
// It holds an in-memory snapshot of all records, kept current by applying
// commit events published by the store. Events are applied in commit order
// at whole-record granularity, so a reader never observes a half-updated
// record and concurrent writes resolve last-write-wins by commit order.
type View struct {
	mu      sync.RWMutex
	records map[string]*Record
	store   Store
	logger  *slog.Logger
	subID   string
	done    chan struct{}
}

// NewView creates a view backed by the given store, loads the initial
// snapshot, and starts applying commit events until ctx is cancelled.
func NewView(ctx context.Context, st Store) (*View, error) {
	v := &View{
		records: make(map[string]*Record),
		store:   st,
		logger:  slog.Default().With("component", "view"),
		done:    make(chan struct{}),
	}

	// Subscribe before taking the snapshot so no commit between the two is
	// missed; a commit that makes it into both the snapshot and the event
	// stream is re-applied harmlessly under whole-record overwrite.
	events, subID := st.Subscribe(ctx)
	v.subID = subID

	snapshot, err := st.List(ctx)
	if err != nil {
		st.Unsubscribe(subID)
		return nil, err
	}

	v.mu.Lock()
	for _, record := range snapshot {
		v.records[record.ID] = record
	}
	v.mu.Unlock()

	go v.apply(events)

	return v, nil
}

// apply consumes commit events and folds them into the cached snapshot.
func (v *View) apply(events <-chan Event) {
	defer close(v.done)

	for event := range events {
		v.mu.Lock()
		switch event.Type {
		case EventPut:
			v.records[event.ID] = event.Record
		case EventDelete:
			delete(v.records, event.ID)
		}
		v.mu.Unlock()
	}

	v.logger.Debug("view event stream closed")
}

// Records returns a copy of the cached records, newest created_at first.
// It never touches the underlying store.
func (v *View) Records() []*Record {
	v.mu.RLock()
	records := make([]*Record, 0, len(v.records))
	for _, record := range v.records {
		records = append(records, record.Clone())
	}
	v.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})

	return records
}

// Get returns the cached record with the given ID.
// Returns ErrNotFound if it isn't in the snapshot.
func (v *View) Get(id string) (*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, ok := v.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// Close detaches the view from the store's commit stream and waits for
// the apply goroutine to drain.
func (v *View) Close() {
	v.store.Unsubscribe(v.subID)
	<-v.done
}
