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

// QueueEntryStore is the slice of store.QueueEntries the join protocol needs.
type QueueEntryStore interface {
	Upsert(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error)
	GetByEventUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error)
}

// Status is the response shape for both the join and queue/me endpoints
// (spec §6's `{position, status, eventId, expiresAt?, reservationId?}`).
type Status struct {
	EventID       uuid.UUID          `json:"eventId"`
	Position      int                `json:"position"`
	Status        domain.QueueStatus `json:"status"`
	ReservationID *uuid.UUID         `json:"reservationId,omitempty"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
	Message       string             `json:"message,omitempty"`
}

// QueueService implements the queue-join protocol (spec §4.3) and the
// queue/me status read.
type QueueService struct {
	ledger       *ledger.Ledger
	queueEntries QueueEntryStore
	events       EventStore
	reservations ReservationGetter
}

// ReservationGetter is the slice of store.Reservations the status read
// needs to report a deadline once a user has been promoted.
type ReservationGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
}

// NewQueueService builds a queue service.
func NewQueueService(led *ledger.Ledger, queueEntries QueueEntryStore, events EventStore, reservations ReservationGetter) *QueueService {
	return &QueueService{ledger: led, queueEntries: queueEntries, events: events, reservations: reservations}
}

// Join runs spec §4.3: validates the sales window, then either returns an
// existing entry's current standing (idempotent retry) or adds the user
// to the ledger's queue and mirrors a WAITING entry.
func (s *QueueService) Join(ctx context.Context, eventID, userID uuid.UUID) (*Status, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("service: join: %w", err)
	}
	if !event.InSalesWindow(time.Now().UTC()) {
		return nil, ErrOutOfWindow
	}

	existing, err := s.queueEntries.GetByEventUser(ctx, eventID, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service: join: lookup existing entry: %w", err)
	}
	if existing != nil {
		return s.statusFor(ctx, eventID, userID, existing)
	}

	position, err := s.ledger.AddToQueue(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("service: join: add to queue: %w", err)
	}
	entry, err := s.queueEntries.Upsert(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("service: join: mirror entry: %w", err)
	}

	return &Status{
		EventID:  eventID,
		Position: position,
		Status:   entry.Status,
		Message:  "joined queue",
	}, nil
}

// Status reports a user's current standing for an event (GET /queue/me).
func (s *QueueService) Status(ctx context.Context, eventID, userID uuid.UUID) (*Status, error) {
	entry, err := s.queueEntries.GetByEventUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrQueueEntryNotFound
		}
		return nil, fmt.Errorf("service: status: %w", err)
	}
	return s.statusFor(ctx, eventID, userID, entry)
}

func (s *QueueService) statusFor(ctx context.Context, eventID, userID uuid.UUID, entry *domain.QueueEntry) (*Status, error) {
	status := &Status{EventID: eventID, Status: entry.Status, ReservationID: entry.ReservationID}

	if entry.Status == domain.QueueWaiting {
		position, ok, err := s.ledger.GetQueuePosition(ctx, eventID, userID)
		if err != nil {
			return nil, fmt.Errorf("service: status: queue position: %w", err)
		}
		if ok {
			status.Position = position
		}
		return status, nil
	}

	if entry.ReservationID != nil {
		reservation, err := s.reservations.Get(ctx, *entry.ReservationID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("service: status: reservation: %w", err)
		}
		if reservation != nil {
			status.ExpiresAt = &reservation.DeadlineAt
		}
	}
	return status, nil
}
