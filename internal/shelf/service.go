// ABOUTME: Orchestrator service wiring user actions and connectivity to the sync engine
// ABOUTME: Local-first add/edit/delete plus sync triggers and read accessors for the UI

package shelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lanternsoft/shelfsync/internal/engine"
	"github.com/lanternsoft/shelfsync/internal/reachability"
	"github.com/lanternsoft/shelfsync/internal/remote"
	"github.com/lanternsoft/shelfsync/internal/store"
	"github.com/lanternsoft/shelfsync/internal/synclog"
)

// ErrOffline is returned by ManualSync when there is no connectivity.
// The engine is never invoked in that case.
var ErrOffline = errors.New("cannot sync while offline")

// Fields is the user-editable part of a record.
type Fields struct {
	Title  string
	Author string
	Rating int
	Notes  string
	Read   bool
}

// Service coordinates the store, the sync engine and the reachability
// observer. User mutations always succeed locally; pushing to the remote
// is a non-blocking side effect.
//
// The service never mutates records except through the store, and it is
// the only component that triggers engine passes.
type Service struct {
	store  store.Store
	view   *store.View
	engine *engine.Engine
	reach  *reachability.Observer
	client remote.Client
	log    *synclog.Log
	logger *slog.Logger
}

// NewService wires the components together and registers the
// offline-to-online resync trigger with the observer.
func NewService(st store.Store, view *store.View, eng *engine.Engine, reach *reachability.Observer, client remote.Client, log *synclog.Log) *Service {
	s := &Service{
		store:  st,
		view:   view,
		engine: eng,
		reach:  reach,
		client: client,
		log:    log,
		logger: slog.Default().With("component", "shelf"),
	}

	reach.OnChange(func(online bool) {
		if online {
			s.logger.Info("back online, triggering sync")
			go s.engine.RunSyncPass(context.Background())
		}
	})

	return s
}

// Add creates a record locally with a client-minted ID and pending status,
// then triggers a non-blocking sync when online.
func (s *Service) Add(ctx context.Context, fields Fields) (*store.Record, error) {
	if fields.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	now := time.Now().UTC()
	record := &store.Record{
		ID:         uuid.New().String(),
		Title:      fields.Title,
		Author:     fields.Author,
		Rating:     fields.Rating,
		Notes:      fields.Notes,
		Read:       fields.Read,
		SyncStatus: store.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("adding record: %w", err)
	}

	s.TriggerSyncIfOnline()
	return record.Clone(), nil
}

// Edit overwrites a record's user-editable fields and resets its status to
// pending regardless of what it was, keeping any prior remote ID.
func (s *Service) Edit(ctx context.Context, id string, fields Fields) (*store.Record, error) {
	if fields.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("editing record: %w", err)
	}

	record.Title = fields.Title
	record.Author = fields.Author
	record.Rating = fields.Rating
	record.Notes = fields.Notes
	record.Read = fields.Read
	record.SyncStatus = store.StatusPending
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("editing record: %w", err)
	}

	s.TriggerSyncIfOnline()
	return record.Clone(), nil
}

// Delete removes a record locally, unconditionally. If the record existed
// remotely and we are online, the remote delete is fired and forgotten;
// remote deletion is not tracked or reconciled.
func (s *Service) Delete(ctx context.Context, id string) error {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	if record.RemoteID != 0 && s.reach.EffectivelyOnline() {
		remoteID := record.RemoteID
		go func() {
			if err := s.client.Delete(context.Background(), remoteID); err != nil {
				s.logger.Debug("remote delete failed", "remote_id", remoteID, "error", err)
			}
		}()
	}

	return nil
}

// TriggerSyncIfOnline starts a detached sync pass when effectively online.
// It never blocks the caller and does nothing when offline.
func (s *Service) TriggerSyncIfOnline() {
	if !s.reach.EffectivelyOnline() {
		return
	}
	go s.engine.RunSyncPass(context.Background())
}

// ManualSync runs a sync pass and waits for it, failing fast with
// ErrOffline when there is no connectivity.
func (s *Service) ManualSync(ctx context.Context) error {
	if !s.reach.EffectivelyOnline() {
		return ErrOffline
	}
	s.engine.RunSyncPass(ctx)
	return nil
}

// ImportRemoteSample loads up to limit remote items and inserts the ones
// whose remote ID isn't already present locally. Returns how many records
// were inserted.
func (s *Service) ImportRemoteSample(ctx context.Context, limit int) (int, error) {
	sample, err := s.engine.LoadRemoteSample(ctx, limit)
	if err != nil {
		return 0, err
	}

	existing, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing existing records: %w", err)
	}
	seen := make(map[int64]bool, len(existing))
	for _, record := range existing {
		if record.RemoteID != 0 {
			seen[record.RemoteID] = true
		}
	}

	inserted := 0
	for _, record := range sample {
		if seen[record.RemoteID] {
			continue
		}
		if err := s.store.Upsert(ctx, record); err != nil {
			return inserted, fmt.Errorf("inserting sample record: %w", err)
		}
		seen[record.RemoteID] = true
		inserted++
	}

	s.logger.Info("imported remote sample", "fetched", len(sample), "inserted", inserted)
	return inserted, nil
}

// Records returns the foreground view's cached records, newest first.
func (s *Service) Records() []*store.Record {
	return s.view.Records()
}

// SyncLog returns the operation log, newest first, capped at its capacity.
func (s *Service) SyncLog() []synclog.Entry {
	return s.log.Entries()
}

// IsSyncing reports whether a sync pass is in progress.
func (s *Service) IsSyncing() bool {
	return s.engine.IsSyncing()
}
