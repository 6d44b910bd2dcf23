// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides record persistence with automatic schema creation and commit fan-out

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
// All committed writes are published to subscribers so cached readers
// (the foreground View) observe them without re-querying.
type SQLiteStore struct {
	db       *sql.DB
	logger   *slog.Logger
	notifier *notifier

	// writeMu serializes each commit with its publish so subscribers see
	// events in commit order even when writers race on the same ID.
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		logger:   logger,
		notifier: newNotifier(logger),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			author      TEXT NOT NULL,
			rating      INTEGER NOT NULL DEFAULT 0,
			read        INTEGER NOT NULL DEFAULT 0,
			sync_status TEXT NOT NULL,
			remote_id   INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,

			CHECK (sync_status IN ('pending', 'synced', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_records_status ON records(sync_status);
		CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// runMigrations applies additive schema changes for databases created by
// older versions.
func (s *SQLiteStore) runMigrations() error {
	// Migration: Add notes column to records table
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('records') WHERE name = 'notes'`).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Column doesn't exist, add it
		if _, err := s.db.Exec(`ALTER TABLE records ADD COLUMN notes TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding notes column to records: %w", err)
		}
		s.logger.Info("applied migration", "column", "notes", "table", "records")
	case err != nil:
		return fmt.Errorf("checking notes column: %w", err)
	}

	return nil
}

// Close closes the database connection and all subscriber channels.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	s.notifier.closeAll()
	return s.db.Close()
}

// Upsert inserts or fully overwrites a record keyed by ID.
// The committed record is published to subscribers in commit order.
func (s *SQLiteStore) Upsert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO records (id, title, author, rating, notes, read, sync_status, remote_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			rating = excluded.rating,
			notes = excluded.notes,
			read = excluded.read,
			sync_status = excluded.sync_status,
			remote_id = excluded.remote_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Title,
		record.Author,
		record.Rating,
		record.Notes,
		boolToInt(record.Read),
		string(record.SyncStatus),
		record.RemoteID,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}

	s.notifier.publish(Event{Type: EventPut, ID: record.ID, Record: record.Clone()})

	s.logger.Debug("upserted record",
		"id", record.ID,
		"title", record.Title,
		"sync_status", record.SyncStatus)
	return nil
}

// Get retrieves a record by ID.
// Returns ErrNotFound if the record doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	query := selectColumns + ` WHERE id = ?`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}

	return record, nil
}

// List returns all records, newest created_at first.
func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByStatus returns records whose sync_status matches any of the given
// statuses, newest created_at first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses ...SyncStatus) ([]*Record, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}

	query := selectColumns +
		` WHERE sync_status IN (` + strings.Join(placeholders, ", ") + `)` +
		` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records by status: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Delete removes a record by ID. Deleting a missing record is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.notifier.publish(Event{Type: EventDelete, ID: id})
		s.logger.Debug("deleted record", "id", id)
	}
	return nil
}

// Subscribe registers for commit events.
func (s *SQLiteStore) Subscribe(ctx context.Context) (<-chan Event, string) {
	return s.notifier.subscribe(ctx)
}

// Unsubscribe removes a subscription.
func (s *SQLiteStore) Unsubscribe(subID string) {
	s.notifier.unsubscribe(subID)
}

const selectColumns = `
	SELECT id, title, author, rating, notes, read, sync_status, remote_id, created_at, updated_at
	FROM records`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one record row, converting stored timestamps and flags.
func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var read int
	var status, createdAtStr, updatedAtStr string

	err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Author,
		&record.Rating,
		&record.Notes,
		&read,
		&status,
		&record.RemoteID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	record.Read = read != 0
	record.SyncStatus = SyncStatus(status)

	record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	record.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
