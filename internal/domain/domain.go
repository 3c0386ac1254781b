// Package domain contains the core entities of the ticket queue system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ─── Enums ──────────────────────────────────────────────────

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// QueueStatus is the lifecycle state of a QueueEntry.
type QueueStatus string

const (
	QueueWaiting QueueStatus = "WAITING"
	QueueActive  QueueStatus = "ACTIVE"
	QueueDone    QueueStatus = "DONE"
	QueueExpired QueueStatus = "EXPIRED"
)

// ReservationStatus is the lifecycle state of a Reservation.
//
// CANCELED is reserved for a future user-initiated cancellation path and
// is never produced by this core; it is modeled so the store's conditional
// transition helpers have somewhere to put it when that path exists.
type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "PENDING_PAYMENT"
	ReservationPaid     ReservationStatus = "PAID"
	ReservationExpired  ReservationStatus = "EXPIRED"
	ReservationCanceled ReservationStatus = "CANCELED"
)

// ─── Entities ───────────────────────────────────────────────

// User is the identity behind a queue join or a payment.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Event is created by the admin endpoint; its name, seat total and sales
// window are never changed afterwards. RemainingSeats is a mirror of the
// ledger's seat counter that the promotion engine and expiration pipeline
// overwrite after each seat change.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	TotalSeats     int       `json:"totalSeats"`
	SalesStartAt   time.Time `json:"salesStartAt"`
	SalesEndAt     time.Time `json:"salesEndAt"`
	RemainingSeats int       `json:"remainingSeats"`
	CreatedAt      time.Time `json:"createdAt"`
}

// InSalesWindow reports whether now falls within [SalesStartAt, SalesEndAt].
func (e *Event) InSalesWindow(now time.Time) bool {
	return !now.Before(e.SalesStartAt) && !now.After(e.SalesEndAt)
}

// QueueEntry tracks one user's standing in one event's FIFO queue.
// Unique on (EventID, UserID); never deleted.
type QueueEntry struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"eventId"`
	UserID        uuid.UUID  `json:"userId"`
	Status        QueueStatus `json:"status"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	JoinOrder     int64      `json:"joinOrder"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Reservation is the short-lived hold on a single seat, minted atomically
// by the promotion engine when a QueueEntry is promoted to ACTIVE.
type Reservation struct {
	ID         uuid.UUID         `json:"id"`
	EventID    uuid.UUID         `json:"eventId"`
	UserID     uuid.UUID         `json:"userId"`
	Status     ReservationStatus `json:"status"`
	DeadlineAt time.Time         `json:"deadline"`
	PaidAt     *time.Time        `json:"paidAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ReservationCounts is the admin-stats breakdown used by §6's stats endpoint.
type ReservationCounts struct {
	PendingPayment int `json:"PENDING_PAYMENT"`
	Paid           int `json:"PAID"`
	Expired        int `json:"EXPIRED"`
}

// EventStats is the payload for GET /admin/events/:id/stats.
type EventStats struct {
	EventID          uuid.UUID         `json:"eventId"`
	RemainingSeats   int               `json:"remainingSeats"`
	QueueLength      int64             `json:"queueLength"`
	ReservationCounts ReservationCounts `json:"reservationCounts"`
}
