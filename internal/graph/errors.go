package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for the HTTP outcomes the sync engine branches on.
// Everything else is wrapped as a generic request failure.
var (
	// ErrNotModified means a conditional GET matched the supplied ETag (304).
	ErrNotModified = errors.New("graph: not modified")

	// ErrNotFound means the task no longer exists remotely (404). For a
	// mapped task this is an authoritative deletion signal.
	ErrNotFound = errors.New("graph: task not found")

	// ErrPreconditionFailed means the If-Match ETag was stale (409/412):
	// another writer changed the task since our last fetch.
	ErrPreconditionFailed = errors.New("graph: precondition failed")

	// ErrUnauthorized means the bearer token was rejected (401/403).
	ErrUnauthorized = errors.New("graph: unauthorized")
)

// TransientError wraps 5xx and transport-level failures. The engine treats
// these as retryable on the next cycle with no state mutation.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("graph: transient failure during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("graph: transient failure during %s (HTTP %d)", e.Op, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable transport or server error.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
