package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrEventNotFound    = errors.New("event not found")
	ErrNotMember        = errors.New("user is not a member of this calendar")

	// ErrSyncInProgress is a retryable conflict: another reconciliation or
	// assignment propagation currently holds the entity's sync flag.
	ErrSyncInProgress = errors.New("sync already in progress, retry later")
)

// ConcurrentModificationError reports a stale optimistic-lock write. It
// carries the current row state so the caller can re-render and retry
// without a second round trip.
type ConcurrentModificationError struct {
	ExpectedVersion int
	ActualVersion   int
	Current         *Event
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("event was modified concurrently: expected version %d, actual version %d",
		e.ExpectedVersion, e.ActualVersion)
}

// ValidationError marks missing inputs for supplemental-event generation
// (no home coordinates, unresolvable location). It aborts generation only,
// never the assignment that triggered it.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}
