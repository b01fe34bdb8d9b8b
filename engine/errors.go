/*
errors.go - Centralized error types for the allocation engine

ERROR CATEGORIES:
  1. Caller errors - stale cycle, unknown ids, invalid preference
  2. Invariant violations - roster larger than the room (allocator bug)

USAGE:
  if errors.Is(err, engine.ErrStaleCycle) {
      // ask the user to open the new week's judgement
  }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStaleCycle is returned when a declaration targets a cycle whose
	// deadline has passed or which has been superseded.
	ErrStaleCycle = errors.New("stale cycle")

	// ErrUnknownParticipant is returned when a referenced participant is not in the ledger.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrUnknownSlot is returned when a referenced slot or attendance record does not exist.
	ErrUnknownSlot = errors.New("unknown slot")

	// ErrCapacityInvariant is returned when a roster exceeds its slot capacity
	// after an allocation pass. It always indicates an allocator bug.
	ErrCapacityInvariant = errors.New("capacity invariant violated")

	// ErrNoActiveCycle is returned when an operation needs a cycle and none was started.
	ErrNoActiveCycle = errors.New("no active cycle")

	// ErrInvalidPreference is returned for preferences other than must/could/cannot.
	ErrInvalidPreference = errors.New("invalid preference")

	// ErrTenantNotFound is returned when a tenant was never registered.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantExists is returned when registering a tenant twice.
	ErrTenantExists = errors.New("tenant already registered")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StaleCycleError tells the caller which cycle is closed and since when.
type StaleCycleError struct {
	CycleID  string
	Deadline time.Time
	At       time.Time
}

func (e *StaleCycleError) Error() string {
	return fmt.Sprintf("stale cycle %s: deadline %s passed (at %s)",
		e.CycleID, e.Deadline.Format(time.RFC3339), e.At.Format(time.RFC3339))
}

func (e *StaleCycleError) Unwrap() error { return ErrStaleCycle }

// CapacityViolationError reports the slot whose roster overflowed.
type CapacityViolationError struct {
	SlotID   string
	Capacity int
	Roster   []ParticipantID
}

func (e *CapacityViolationError) Error() string {
	return fmt.Sprintf("slot %s: roster of %d exceeds capacity %d", e.SlotID, len(e.Roster), e.Capacity)
}

func (e *CapacityViolationError) Unwrap() error { return ErrCapacityInvariant }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrStaleCycle) ||
		errors.Is(err, ErrInvalidPreference) ||
		errors.Is(err, ErrNoActiveCycle) ||
		errors.Is(err, ErrTenantExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownParticipant) ||
		errors.Is(err, ErrUnknownSlot) ||
		errors.Is(err, ErrTenantNotFound)
}
