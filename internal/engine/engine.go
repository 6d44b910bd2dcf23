// ABOUTME: Synchronization engine driving records through pending/synced/failed
// ABOUTME: Single-flight sync passes against the remote client, per-record outcomes

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lanternsoft/shelfsync/internal/remote"
	"github.com/lanternsoft/shelfsync/internal/store"
	"github.com/lanternsoft/shelfsync/internal/synclog"
)

// Engine scans the store for unsynchronized records and attempts to push
// each one to the remote, recording the outcome per record.
//
// The engine holds no record state between passes: every pass re-reads the
// store. It never returns an error from a pass; failure is communicated
// purely through persisted sync status and the operation log.
type Engine struct {
	store   store.Store
	client  remote.Client
	log     *synclog.Log
	logger  *slog.Logger
	syncing atomic.Bool
}

// New creates an engine over the given store, remote client and log.
func New(st store.Store, client remote.Client, log *synclog.Log) *Engine {
	return &Engine{
		store:  st,
		client: client,
		log:    log,
		logger: slog.Default().With("component", "engine"),
	}
}

// IsSyncing reports whether a sync pass is currently in progress.
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// RunSyncPass executes one scan-attempt-update cycle and reports whether a
// pass actually ran.
//
// At most one pass runs at a time: a concurrent invocation returns false
// immediately without re-reading the store, and its intent is discarded
// rather than coalesced into a follow-up pass. The selected set is fixed
// at pass start; records created afterwards wait for the next trigger.
//
// Records are processed sequentially in store order. One record's failure
// never aborts the rest.
func (e *Engine) RunSyncPass(ctx context.Context) bool {
	if !e.syncing.CompareAndSwap(false, true) {
		e.logger.Debug("sync pass already in progress, skipping")
		return false
	}
	defer e.syncing.Store(false)

	records, err := e.store.ListByStatus(ctx, store.StatusPending, store.StatusFailed)
	if err != nil {
		e.logger.Error("selecting unsynchronized records", "error", err)
		return true
	}
	if len(records) == 0 {
		e.logger.Debug("nothing to sync")
		return true
	}

	e.log.Append(synclog.BatchTitle, synclog.OpSyncStart, synclog.OutcomeQueued,
		fmt.Sprintf("%d record(s) queued", len(records)))
	e.logger.Info("sync pass started", "queued", len(records))

	for _, record := range records {
		e.syncRecord(ctx, record)
	}

	e.logger.Info("sync pass finished")
	return true
}

// syncRecord pushes one record: create when it has never existed remotely,
// update otherwise. Outcomes are written back to the store and logged.
func (e *Engine) syncRecord(ctx context.Context, record *store.Record) {
	fields := remoteFields(record)

	if record.RemoteID == 0 {
		remoteID, err := e.client.Create(ctx, fields)
		if err != nil {
			e.markFailed(ctx, record, err)
			return
		}
		record.RemoteID = remoteID
		record.SyncStatus = store.StatusSynced
		e.writeBack(ctx, record)
		e.log.Append(record.Title, synclog.OpCreate, synclog.OutcomeSuccess,
			fmt.Sprintf("created remotely as id %d", remoteID))
		return
	}

	if err := e.client.Update(ctx, record.RemoteID, fields); err != nil {
		e.markFailed(ctx, record, err)
		return
	}
	record.SyncStatus = store.StatusSynced
	e.writeBack(ctx, record)
	e.log.Append(record.Title, synclog.OpUpdate, synclog.OutcomeSuccess,
		fmt.Sprintf("updated remote id %d", record.RemoteID))
}

// markFailed records a per-record failure and moves on.
func (e *Engine) markFailed(ctx context.Context, record *store.Record, cause error) {
	record.SyncStatus = store.StatusFailed
	e.writeBack(ctx, record)
	e.log.Append(record.Title, synclog.OpSync, synclog.OutcomeFailed, cause.Error())
	e.logger.Warn("record sync failed", "id", record.ID, "title", record.Title, "error", cause)
}

// writeBack persists the record's new sync state. A write failure here is
// logged and swallowed: the pass carries on and the record is picked up
// again on the next trigger.
func (e *Engine) writeBack(ctx context.Context, record *store.Record) {
	if err := e.store.Upsert(ctx, record); err != nil {
		e.logger.Error("writing back sync state", "id", record.ID, "error", err)
	}
}

// LoadRemoteSample fetches up to limit remote items and maps them to
// records that are already synced (they exist server-side, so RemoteID is
// pre-populated). The caller is responsible for de-duplicating against
// existing remote IDs before inserting.
func (e *Engine) LoadRemoteSample(ctx context.Context, limit int) ([]*store.Record, error) {
	items, err := e.client.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing remote items: %w", err)
	}

	now := time.Now().UTC()
	records := make([]*store.Record, 0, len(items))
	for _, item := range items {
		records = append(records, &store.Record{
			ID:         uuid.New().String(),
			Title:      item.Title,
			Author:     item.Author,
			Rating:     item.Rating,
			Notes:      item.Notes,
			Read:       item.Read,
			SyncStatus: store.StatusSynced,
			RemoteID:   item.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return records, nil
}

// remoteFields maps a record's mutable fields onto the wire payload.
func remoteFields(record *store.Record) remote.Fields {
	return remote.Fields{
		Title:  record.Title,
		Author: record.Author,
		Rating: record.Rating,
		Notes:  record.Notes,
		Read:   record.Read,
	}
}
