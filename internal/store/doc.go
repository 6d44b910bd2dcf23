// Package store persists shelf records and serves two access surfaces:
// a foreground View optimized for low-latency cached reads, and the Store
// itself used by the sync engine for its scan-and-update cycle.
//
// Writes committed through the Store become visible through the View
// without a foreground-initiated re-read: every commit is published to
// subscribers at whole-record granularity and the View folds events into
// its snapshot in commit order. When both surfaces write the same record,
// the last commit wins; there is no field-level merging.
package store
