package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ticketqueue/internal/domain"
)

// Events provides event access backed by the events table. RemainingSeats
// here is a point-in-time mirror of the ledger's seat counter, written
// back by the promotion/expiration pipeline on every admission or return
// so it stays readable by plain SQL without consulting the coordinator —
// it is never the source of truth for an admission decision.
type Events struct {
	pool *pgxpool.Pool
}

// NewEvents creates an events store backed by the given pool.
func NewEvents(pool *pgxpool.Pool) *Events {
	return &Events{pool: pool}
}

// Create inserts a new event with its seat count mirrored at TotalSeats.
func (s *Events) Create(ctx context.Context, name string, totalSeats int, salesStart, salesEnd time.Time) (*domain.Event, error) {
	e := &domain.Event{
		ID:             uuid.New(),
		Name:           name,
		TotalSeats:     totalSeats,
		SalesStartAt:   salesStart,
		SalesEndAt:     salesEnd,
		RemainingSeats: totalSeats,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, name, total_seats, sales_start_at, sales_end_at, remaining_seats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Name, e.TotalSeats, e.SalesStartAt, e.SalesEndAt, e.RemainingSeats, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create event: %w", translate(err))
	}
	return e, nil
}

// Get fetches an event by ID, or ErrNotFound.
func (s *Events) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	e := &domain.Event{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, total_seats, sales_start_at, sales_end_at, remaining_seats, created_at
		FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.TotalSeats, &e.SalesStartAt, &e.SalesEndAt, &e.RemainingSeats, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get event: %w", translate(err))
	}
	return e, nil
}

// List returns all events ordered by sales start time.
func (s *Events) List(ctx context.Context) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, total_seats, sales_start_at, sales_end_at, remaining_seats, created_at
		FROM events ORDER BY sales_start_at
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", translate(err))
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e := &domain.Event{}
		if err := rows.Scan(&e.ID, &e.Name, &e.TotalSeats, &e.SalesStartAt, &e.SalesEndAt, &e.RemainingSeats, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: list events: scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return events, nil
}

// SetRemainingSeats overwrites the mirrored seat count. Called by the
// promotion and expiration pipelines after every ledger seat mutation so
// admin reads stay close to current without querying the coordinator.
func (s *Events) SetRemainingSeats(ctx context.Context, eventID uuid.UUID, remaining int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE events SET remaining_seats = $2 WHERE id = $1
	`, eventID, remaining)
	if err != nil {
		return fmt.Errorf("store: set remaining seats: %w", translate(err))
	}
	return nil
}
