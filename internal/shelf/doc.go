// Package shelf provides the record layer consumed by the UI: local-first
// add/edit/delete, manual and connectivity-triggered sync, and read
// accessors for the record list, sync log and sync progress.
package shelf
