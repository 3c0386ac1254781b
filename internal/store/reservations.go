package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ticketqueue/internal/domain"
)

// Reservations mirrors the short-lived payment hold minted on every
// promotion. All status transitions are conditional UPDATEs keyed on the
// expected starting status (the conditional-update serialization chosen
// for this core, over a remove-if-first ledger primitive). Payment and
// expiration race on these updates: whichever affects the row wins, and
// the other sees ErrConflict and leaves the seat ledger alone.
type Reservations struct {
	pool *pgxpool.Pool
}

// NewReservations creates a reservations store backed by the given pool.
func NewReservations(pool *pgxpool.Pool) *Reservations {
	return &Reservations{pool: pool}
}

// Create inserts a new PENDING_PAYMENT reservation with the given deadline.
func (s *Reservations) Create(ctx context.Context, eventID, userID uuid.UUID, deadline time.Time) (*domain.Reservation, error) {
	now := time.Now().UTC()
	r := &domain.Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Status:     domain.ReservationPending,
		DeadlineAt: deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reservations (id, event_id, user_id, status, deadline_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.EventID, r.UserID, r.Status, r.DeadlineAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("store: create reservation: %w", translate(err))
	}
	return r, nil
}

// Get fetches a reservation by ID, or ErrNotFound.
func (s *Reservations) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r := &domain.Reservation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, status, deadline_at, paid_at, created_at, updated_at
		FROM reservations WHERE id = $1
	`, id).Scan(&r.ID, &r.EventID, &r.UserID, &r.Status, &r.DeadlineAt, &r.PaidAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get reservation: %w", translate(err))
	}
	return r, nil
}

// TransitionToPaid moves a PENDING_PAYMENT reservation to PAID. Returns
// ErrConflict if the reservation was not PENDING_PAYMENT — the caller
// must then check whether it is already PAID (its own earlier attempt
// having already succeeded, which the service layer treats as success
// per the idempotence requirement in spec §4.6) or EXPIRED (too late).
func (s *Reservations) TransitionToPaid(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations
		SET status = $2, paid_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, domain.ReservationPaid, domain.ReservationPending)
	if err != nil {
		return fmt.Errorf("store: transition reservation to paid: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: transition reservation to paid: %w", ErrConflict)
	}
	return nil
}

// TransitionToExpired moves a PENDING_PAYMENT reservation to EXPIRED.
// Returns ErrConflict if the reservation was not PENDING_PAYMENT (most
// often because it was already paid moments before the sweep claimed it).
func (s *Reservations) TransitionToExpired(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reservations
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, domain.ReservationExpired, domain.ReservationPending)
	if err != nil {
		return fmt.Errorf("store: transition reservation to expired: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: transition reservation to expired: %w", ErrConflict)
	}
	return nil
}

// ListPendingPastDeadline returns up to limit PENDING_PAYMENT reservations
// whose deadline has already passed, ordered by deadline so the oldest
// overdue reservations are swept first.
func (s *Reservations) ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, user_id, status, deadline_at, paid_at, created_at, updated_at
		FROM reservations
		WHERE status = $1 AND deadline_at <= $2
		ORDER BY deadline_at
		LIMIT $3
	`, domain.ReservationPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list pending past deadline: %w", translate(err))
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		r := &domain.Reservation{}
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.Status, &r.DeadlineAt, &r.PaidAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list pending past deadline: scan: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list pending past deadline: %w", err)
	}
	return reservations, nil
}

// CountByStatus returns the reservation-count breakdown for an event, used
// by the admin stats endpoint (spec §6).
func (s *Reservations) CountByStatus(ctx context.Context, eventID uuid.UUID) (domain.ReservationCounts, error) {
	var counts domain.ReservationCounts
	err := s.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = $2),
			count(*) FILTER (WHERE status = $3),
			count(*) FILTER (WHERE status = $4)
		FROM reservations WHERE event_id = $1
	`, eventID, domain.ReservationPending, domain.ReservationPaid, domain.ReservationExpired).Scan(
		&counts.PendingPayment, &counts.Paid, &counts.Expired,
	)
	if err != nil {
		return domain.ReservationCounts{}, fmt.Errorf("store: count reservations by status: %w", translate(err))
	}
	return counts, nil
}
