package booking

import (
    "errors"
    "fmt"
)

// Sentinel errors returned by the coordinator.  Handlers translate
// these into HTTP responses; the distinction between a rejection and an
// unreachable fleet service is load-bearing because the user-facing
// remediation differs (pick other seats vs. try again later), so the
// two are never collapsed into one another.
var (
    // ErrTicketNotFound covers both a missing ticket and a ticket
    // owned by a different user; the two cases are indistinguishable
    // on purpose.
    ErrTicketNotFound = errors.New("ticket not found")

    // ErrSeatsUnavailable is returned when the fleet service declined
    // the seat reservation during booking.
    ErrSeatsUnavailable = errors.New("failed to reserve seats")

    // ErrReleaseDeclined is returned when the fleet service declined
    // the seat release during cancellation.  The ticket stays
    // confirmed.
    ErrReleaseDeclined = errors.New("failed to release seats")

    // ErrInventoryUnavailable is returned when the fleet service could
    // not be reached on either flow.  No local state was changed.
    ErrInventoryUnavailable = errors.New("seat inventory service unavailable")

    // ErrAlreadyCancelled is returned when cancelling a ticket that is
    // already cancelled, including losing a concurrent cancel race.
    // It informs the caller that no new action occurred.
    ErrAlreadyCancelled = errors.New("ticket is already cancelled")

    // ErrNotCancellable is returned when cancelling a completed
    // ticket; no transition originates from the completed status.
    ErrNotCancellable = errors.New("ticket can no longer be cancelled")

    // ErrTicketNumberExhausted is returned when the bounded number of
    // ticket-number regeneration attempts is used up.  This is an
    // infrastructure failure, not a user error.
    ErrTicketNumberExhausted = errors.New("could not generate a unique ticket number")
)

// ValidationError reports a malformed booking draft.  It is returned
// before any remote call is made, so a draft that fails validation
// never reserves seats.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// invalid builds a *ValidationError for the given field.
func invalid(field, reason string) error {
    return &ValidationError{Field: field, Reason: reason}
}
