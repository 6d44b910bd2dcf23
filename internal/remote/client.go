// ABOUTME: Remote service boundary for shelf records
// ABOUTME: Defines the Client interface, payload types and failure semantics

package remote

import "context"

// Fields is the mutable payload of a record as the remote sees it.
// Record identity on the wire is the remote-assigned integer ID; the
// local client-minted ID never crosses this boundary.
type Fields struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
	Read   bool   `json:"read"`
}

// Item is one record as returned by the remote list operation.
type Item struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
	Read   bool   `json:"read"`
}

// Client is the thin, replaceable remote boundary. Any remote that honors
// these four operations is interchangeable.
//
// Errors are opaque to callers: transport failures, non-success statuses
// and decode failures all surface as a plain error, and the sync engine
// never branches on the subtype.
type Client interface {
	// Create pushes a new record and returns the remote-assigned ID.
	Create(ctx context.Context, fields Fields) (int64, error)
	// Update overwrites the record with the given remote ID.
	Update(ctx context.Context, remoteID int64, fields Fields) error
	// List fetches up to limit remote items.
	List(ctx context.Context, limit int) ([]Item, error)
	// Delete removes the record with the given remote ID.
	// Callers treat it as fire-and-forget.
	Delete(ctx context.Context, remoteID int64) error
}
