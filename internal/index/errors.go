package index

import "fmt"

// Sentinel errors for conditions that don't need page/path context,
// in the style of the teacher's internal/benchmark/errors.go.
var (
	// ErrWorkerRunning is returned by the worker's start when a worker
	// is already active; Index.StartUpdate treats it as a no-op and
	// returns nil.
	ErrWorkerRunning = fmt.Errorf("index: update worker already running")

	// ErrDatabaseClosed names a closed database connection. No
	// operation in this package returns it; operations after
	// Disconnect fail with the database driver's own error.
	ErrDatabaseClosed = fmt.Errorf("index: database connection closed")

	// ErrInMemoryCorruption is returned when an in-memory database
	// reports corruption; unlike the file-backed case there is no file
	// to delete and reinitialise, so this bubbles up instead.
	ErrInMemoryCorruption = fmt.Errorf("index: in-memory database corrupted, cannot recover")
)

// IndexNotFoundError is returned by lookups (lookup_by_pagename and
// friends) when no row matches.
type IndexNotFoundError struct {
	Path string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index: no page found for %q", e.Path)
}

// IndexConsistencyError signals a violated invariant: a bug in this
// package or a corrupted database, never a normal runtime condition.
type IndexConsistencyError struct {
	Reason string
}

func (e *IndexConsistencyError) Error() string {
	return fmt.Sprintf("index: consistency violation: %s", e.Reason)
}

// ParsingError wraps a failure from the configured Parser while
// indexing a page's content.
type ParsingError struct {
	Path string
	Err  error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("index: failed to parse %q: %v", e.Path, e.Err)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}
