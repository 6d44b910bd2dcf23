// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
// It publishes commit events exactly like the SQLite store.
type MockStore struct {
	mu       sync.RWMutex
	records  map[string]*Record // keyed by record ID
	notifier *notifier

	// FailWrites makes Upsert and Delete return an error when set,
	// simulating an unavailable medium.
	FailWrites error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		records:  make(map[string]*Record),
		notifier: newNotifier(slog.Default()),
	}
}

// Upsert stores a copy of the record, overwriting any previous version.
func (m *MockStore) Upsert(ctx context.Context, record *Record) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}

	// Publish under the write lock so racing writers of the same ID cannot
	// emit events in the reverse of commit order.
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.ID] = record.Clone()
	m.notifier.publish(Event{Type: EventPut, ID: record.ID, Record: record.Clone()})
	return nil
}

// Get retrieves a record by ID.
func (m *MockStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// List returns all records, newest created_at first.
func (m *MockStore) List(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	records := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record.Clone())
	}
	m.mu.RUnlock()

	sortNewestFirst(records)
	return records, nil
}

// ListByStatus returns records matching any of the given statuses.
func (m *MockStore) ListByStatus(ctx context.Context, statuses ...SyncStatus) ([]*Record, error) {
	m.mu.RLock()
	var records []*Record
	for _, record := range m.records {
		for _, st := range statuses {
			if record.SyncStatus == st {
				records = append(records, record.Clone())
				break
			}
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(records)
	return records, nil
}

// Delete removes a record. Deleting a missing record is a no-op.
func (m *MockStore) Delete(ctx context.Context, id string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.records[id]
	delete(m.records, id)
	if existed {
		m.notifier.publish(Event{Type: EventDelete, ID: id})
	}
	return nil
}

// Subscribe registers for commit events.
func (m *MockStore) Subscribe(ctx context.Context) (<-chan Event, string) {
	return m.notifier.subscribe(ctx)
}

// Unsubscribe removes a subscription.
func (m *MockStore) Unsubscribe(subID string) {
	m.notifier.unsubscribe(subID)
}

// Close closes all subscriber channels.
func (m *MockStore) Close() error {
	m.notifier.closeAll()
	return nil
}

func sortNewestFirst(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
