package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ticketqueue/internal/domain"
)

// QueueEntries mirrors the ledger's queue membership durably. JoinOrder
// is taken from one database-wide sequence (queue_join_order_seq) at
// insert time, so it follows row insertion order across all events; it is
// written independently of the ledger's sorted-set score.
type QueueEntries struct {
	pool *pgxpool.Pool
}

// NewQueueEntries creates a queue-entries store backed by the given pool.
func NewQueueEntries(pool *pgxpool.Pool) *QueueEntries {
	return &QueueEntries{pool: pool}
}

// Upsert inserts a WAITING queue entry for (eventID, userID) if one does
// not already exist, returning the existing row unchanged otherwise. This
// is the store-side half of the join protocol's idempotence (spec §4.3):
// the ledger's AddToQueue is itself idempotent, and this mirrors that by
// doing nothing on conflict rather than erroring.
func (s *QueueEntries) Upsert(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	now := time.Now().UTC()
	qe := &domain.QueueEntry{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    userID,
		Status:    domain.QueueWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_entries (id, event_id, user_id, status, join_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, nextval('queue_join_order_seq'), $5, $6)
		ON CONFLICT (event_id, user_id) DO UPDATE SET event_id = queue_entries.event_id
		RETURNING id, status, join_order, reservation_id, created_at, updated_at
	`, qe.ID, eventID, userID, qe.Status, now, now).Scan(
		&qe.ID, &qe.Status, &qe.JoinOrder, &qe.ReservationID, &qe.CreatedAt, &qe.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: upsert queue entry: %w", translate(err))
	}
	return qe, nil
}

// GetByEventUser fetches the queue entry for (eventID, userID), or ErrNotFound.
func (s *QueueEntries) GetByEventUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	qe := &domain.QueueEntry{EventID: eventID, UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, join_order, reservation_id, created_at, updated_at
		FROM queue_entries WHERE event_id = $1 AND user_id = $2
	`, eventID, userID).Scan(&qe.ID, &qe.Status, &qe.JoinOrder, &qe.ReservationID, &qe.CreatedAt, &qe.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get queue entry: %w", translate(err))
	}
	return qe, nil
}

// TransitionToActive moves a WAITING entry to ACTIVE and attaches the
// reservation minted for it. Returns ErrConflict if the entry was not
// WAITING (already promoted, expired, or done by a concurrent caller).
func (s *QueueEntries) TransitionToActive(ctx context.Context, id, reservationID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2, reservation_id = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, domain.QueueActive, reservationID, domain.QueueWaiting)
	if err != nil {
		return fmt.Errorf("store: transition queue entry to active: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: transition queue entry to active: %w", ErrConflict)
	}
	return nil
}

// TransitionToExpired moves an entry to EXPIRED from either ACTIVE (the
// expiration pipeline's path, reservation deadline passed) or WAITING
// (promotion's sold-out path, never promoted at all). Returns ErrConflict
// if the entry was in neither prior state.
func (s *QueueEntries) TransitionToExpired(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2, updated_at = now()
		WHERE id = $1 AND (status = $3 OR status = $4)
	`, id, domain.QueueExpired, domain.QueueActive, domain.QueueWaiting)
	if err != nil {
		return fmt.Errorf("store: transition queue entry to expired: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: transition queue entry to expired: %w", ErrConflict)
	}
	return nil
}

// TransitionToDone moves an ACTIVE entry to DONE after successful payment.
// Returns ErrConflict if the entry was not ACTIVE.
func (s *QueueEntries) TransitionToDone(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, domain.QueueDone, domain.QueueActive)
	if err != nil {
		return fmt.Errorf("store: transition queue entry to done: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: transition queue entry to done: %w", ErrConflict)
	}
	return nil
}
