// Package engine implements the synchronization core: a single-flight
// sync pass that drives records through the pending -> synced | failed
// state machine against the remote client.
//
// Passes are triggered lazily (user actions, manual sync, offline->online
// transitions); there are no timed retries and no backoff. Failed records
// are simply re-selected by the next pass, indefinitely.
package engine
