package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/store"
)

// EventStore is the slice of store.Events the event service needs.
type EventStore interface {
	Create(ctx context.Context, name string, totalSeats int, salesStart, salesEnd time.Time) (*domain.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	List(ctx context.Context) ([]*domain.Event, error)
}

// ReservationCounter is the slice of store.Reservations the stats
// endpoint needs.
type ReservationCounter interface {
	CountByStatus(ctx context.Context, eventID uuid.UUID) (domain.ReservationCounts, error)
}

// EventService implements event CRUD and admin stats (spec §6). Event
// creation and listing are the administrative collaborator spec.md
// places out of the concurrency core's scope, but a complete HTTP
// surface still needs somewhere to put them.
type EventService struct {
	events       EventStore
	reservations ReservationCounter
	ledger       *ledger.Ledger
}

// NewEventService builds an event service.
func NewEventService(events EventStore, reservations ReservationCounter, led *ledger.Ledger) *EventService {
	return &EventService{events: events, reservations: reservations, ledger: led}
}

// Create registers a new event and initializes its seat counter in the
// ledger. The ledger is the source of truth for admission from this
// point forward; the store row mirrors it for reads.
func (s *EventService) Create(ctx context.Context, name string, totalSeats int, salesStart, salesEnd time.Time) (*domain.Event, error) {
	event, err := s.events.Create(ctx, name, totalSeats, salesStart, salesEnd)
	if err != nil {
		return nil, fmt.Errorf("service: create event: %w", err)
	}
	if err := s.ledger.InitializeSeats(ctx, event.ID, totalSeats); err != nil {
		return nil, fmt.Errorf("service: create event: initialize seats: %w", err)
	}
	return event, nil
}

// Get fetches a single event by id.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("service: get event: %w", err)
	}
	return event, nil
}

// List returns all events.
func (s *EventService) List(ctx context.Context) ([]*domain.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list events: %w", err)
	}
	return events, nil
}

// Stats assembles the admin-stats payload for one event: the ledger's
// live seat count and queue length alongside the store's reservation
// breakdown.
func (s *EventService) Stats(ctx context.Context, eventID uuid.UUID) (*domain.EventStats, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}

	remaining, err := s.ledger.GetRemainingSeats(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: stats: remaining seats: %w", err)
	}
	length, err := s.ledger.GetQueueLength(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: stats: queue length: %w", err)
	}
	counts, err := s.reservations.CountByStatus(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("service: stats: reservation counts: %w", err)
	}

	return &domain.EventStats{
		EventID:           eventID,
		RemainingSeats:    remaining,
		QueueLength:       length,
		ReservationCounts: counts,
	}, nil
}
