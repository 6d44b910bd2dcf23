// ABOUTME: Store interface and data types for shelfsync persistence
// ABOUTME: Defines the Record struct, sync status enum and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// SyncStatus tracks a record's reconciliation state with the remote service.
type SyncStatus string

const (
	// StatusPending means the record has local changes not yet pushed remotely
	StatusPending SyncStatus = "pending"
	// StatusSynced means the record matches what was last pushed remotely
	StatusSynced SyncStatus = "synced"
	// StatusFailed means the last push attempt for this record failed
	StatusFailed SyncStatus = "failed"
)

// Record represents a single book on the shelf.
//
// The ID is minted locally (UUID) when the record is created and is never
// assigned by the remote. RemoteID is zero until the record has been
// successfully created remotely at least once; a record edited after a
// successful sync goes back to StatusPending while keeping its RemoteID.
type Record struct {
	ID         string
	Title      string
	Author     string
	Rating     int
	Notes      string
	Read       bool
	SyncStatus SyncStatus
	RemoteID   int64 // 0 = never created remotely
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a copy of the record so callers can't mutate shared state.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Store defines the interface for record persistence.
//
// Upsert is a whole-record overwrite keyed by ID. List returns records
// newest CreatedAt first. Implementations publish committed writes to
// subscribers so cached readers see them without re-querying.
type Store interface {
	List(ctx context.Context) ([]*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	ListByStatus(ctx context.Context, statuses ...SyncStatus) ([]*Record, error)
	Delete(ctx context.Context, id string) error

	// Subscribe registers for commit events. The subscription is removed
	// when ctx is cancelled or Unsubscribe is called with the returned ID.
	Subscribe(ctx context.Context) (<-chan Event, string)
	Unsubscribe(subID string)

	Close() error
}
