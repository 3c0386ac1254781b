package service

import "errors"

// ─── Service errors ─────────────────────────────────────────
//
// Handlers dispatch on these with errors.Is, the same sentinel +
// classify pattern the teacher uses in internal/service/booking.go.

var (
	// ErrEventNotFound is returned for an unknown event id.
	ErrEventNotFound = errors.New("service: event not found")

	// ErrOutOfWindow is returned when a queue join is attempted outside
	// an event's sales window.
	ErrOutOfWindow = errors.New("service: outside sales window")

	// ErrReservationNotFound is returned for an unknown reservation id.
	ErrReservationNotFound = errors.New("service: reservation not found")

	// ErrWrongOwner is returned when a user attempts to act on another
	// user's reservation.
	ErrWrongOwner = errors.New("service: reservation belongs to another user")

	// ErrReservationNotPending is returned when a payment is attempted on
	// a reservation that is no longer PENDING_PAYMENT (already paid or
	// already expired).
	ErrReservationNotPending = errors.New("service: reservation is not pending payment")

	// ErrReservationDeadlinePassed is returned when a payment attempt
	// arrives after the reservation's deadline, even if the expiration
	// pipeline has not yet processed it.
	ErrReservationDeadlinePassed = errors.New("service: reservation deadline has passed")

	// ErrInvalidCredentials is returned for a login with an unknown email
	// or a password that fails its hash check.
	ErrInvalidCredentials = errors.New("service: invalid email or password")

	// ErrQueueEntryNotFound is returned when a user has no queue entry for
	// an event (they have never joined).
	ErrQueueEntryNotFound = errors.New("service: queue entry not found")
)
