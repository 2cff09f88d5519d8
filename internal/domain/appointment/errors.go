package appointment

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError rejects a booking request before any key computation or
// write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateError reports a booking-key conflict with an existing active
// appointment.
type DuplicateError struct {
	ConflictingID uuid.UUID
	BookingKey    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate appointment: key %q already held by %s", e.BookingKey, e.ConflictingID)
}

// InvalidTransitionError rejects an illegal scheduling status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
