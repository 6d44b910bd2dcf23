// ABOUTME: Thread-safe, size-capped operation log for sync activity
// ABOUTME: Append-at-head with oldest-entry eviction, purely observational

package synclog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when no capacity is given.
const DefaultCapacity = 50

// Operation names the sync activity an entry describes.
type Operation string

const (
	OpCreate    Operation = "CREATE"
	OpUpdate    Operation = "UPDATE"
	OpSyncStart Operation = "SYNC START"
	OpSync      Operation = "SYNC"
)

// Outcome is the result recorded for an operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeQueued  Outcome = "QUEUED"
)

// BatchTitle is the placeholder title for batch-level entries that don't
// concern a single record.
const BatchTitle = "(batch)"

// Entry is one immutable, timestamped log line.
type Entry struct {
	Time      time.Time
	Title     string
	Operation Operation
	Outcome   Outcome
	Detail    string
}

// Log keeps the most recent entries of sync activity, newest first.
// It is written by the sync engine and read by the UI layer; the engine
// itself never reads it back. When the log is at capacity, appending
// evicts the oldest entry.
type Log struct {
	mu       sync.RWMutex
	entries  []Entry // index 0 is newest
	capacity int
}

// New creates a log holding at most capacity entries.
// A capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Append records an entry at the head of the log, stamping it with the
// current time. The oldest entry is dropped when the log is full.
func (l *Log) Append(title string, op Operation, outcome Outcome, detail string) {
	entry := Entry{
		Time:      time.Now(),
		Title:     title,
		Operation: op,
		Outcome:   outcome,
		Detail:    detail,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]Entry{entry}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
