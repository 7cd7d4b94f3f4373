package booking

import "errors"

var (
	// ErrNotFound covers both truly missing records and records outside
	// the caller's tenant; cross-tenant existence is never revealed.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller lacks the role or ownership required
	// for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyCanceled is returned when a canceled booking is canceled
	// again. Exactly one of two racing cancels succeeds.
	ErrAlreadyCanceled = errors.New("booking already canceled")

	// ErrInvalidTransition rejects any move the booking state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnavailable is surfaced when the admission lock could not be
	// acquired within the bounded retry budget.
	ErrUnavailable = errors.New("service temporarily unavailable, please retry")
)
