// Package synclog provides a bounded, newest-first log of sync operations
// for progress display. Entries are observational only and never feed back
// into sync decisions.
package synclog
