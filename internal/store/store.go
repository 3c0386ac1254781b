// Package store is the durable mirror of ledger state: events, users,
// queue entries, and reservations. It is backed by PostgreSQL via pgx and
// never decides whether a seat may be taken — the ledger's seat counter
// does. Status transitions are conditional UPDATEs checked through
// RowsAffected rather than row locks; where two callers race on the same
// row (two promoters on one WAITING entry, payment against expiration on
// one reservation), the update that affects the row decides the winner.
package store

import (
	"errors"
)

// Sentinel errors returned by store operations. Callers classify these
// with errors.Is rather than inspecting driver-specific error values.
var (
	// ErrNotFound is returned when a lookup by primary key finds nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional UPDATE affects zero rows
	// because the row's current status no longer matches the expected
	// starting state for the transition.
	ErrConflict = errors.New("store: conflict")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (e.g. a second account for an email already registered).
	// A repeated queue entry for the same event/user pair does not produce
	// it: QueueEntries.Upsert returns the existing row instead.
	ErrDuplicate = errors.New("store: duplicate")
)
