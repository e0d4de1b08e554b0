// Package apperr defines the application error taxonomy. Nothing in the
// engine is fatal: every sentinel maps to a degraded feature, not an
// aborted session.
package apperr

import "errors"

var (
	// ErrNotFound marks a stale id reference (edit/read of a removed record).
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange marks an index outside the current trail bounds.
	ErrOutOfRange = errors.New("index out of range")
	// ErrNoSession marks an operation attempted with no active user.
	ErrNoSession = errors.New("no active session")
	// ErrRemoteUnavailable marks a network collaborator failure. It is
	// logged, never retried automatically, and never blocks a local
	// mutation.
	ErrRemoteUnavailable = errors.New("remote collaborator unavailable")
)
