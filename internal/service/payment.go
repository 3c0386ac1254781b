package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/store"
)

// ReservationStore is the slice of store.Reservations the payment
// protocol needs.
type ReservationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	TransitionToPaid(ctx context.Context, id uuid.UUID) error
}

// QueueEntryCompleter is the slice of store.QueueEntries the payment
// protocol needs to close out the matching entry.
type QueueEntryCompleter interface {
	GetByEventUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error)
	TransitionToDone(ctx context.Context, id uuid.UUID) error
}

// PaymentNotifier delivers the "paid" event to the reservation's owner.
type PaymentNotifier interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload any)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, uuid.UUID, string, any) {}

// PaymentService implements spec §4.6: a reservation transitions to PAID
// only via a conditional update racing the expiration pipeline's own
// conditional update to EXPIRED (§4.5 step 5); exactly one wins.
type PaymentService struct {
	reservations ReservationStore
	queueEntries QueueEntryCompleter
	notifier     PaymentNotifier
}

// NewPaymentService builds a payment service.
func NewPaymentService(reservations ReservationStore, queueEntries QueueEntryCompleter, notifier PaymentNotifier) *PaymentService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &PaymentService{reservations: reservations, queueEntries: queueEntries, notifier: notifier}
}

// Pay runs the payment protocol for reservationID on behalf of claimant.
func (s *PaymentService) Pay(ctx context.Context, reservationID, claimant uuid.UUID) (*domain.Reservation, error) {
	reservation, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("service: pay: %w", err)
	}

	if reservation.UserID != claimant {
		return nil, ErrWrongOwner
	}
	if reservation.Status != domain.ReservationPending {
		return nil, ErrReservationNotPending
	}
	if time.Now().UTC().After(reservation.DeadlineAt) {
		return nil, ErrReservationDeadlinePassed
	}

	if err := s.reservations.TransitionToPaid(ctx, reservationID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Expiration won the race (or a concurrent payment call did);
			// re-load to report the outcome truthfully rather than assume.
			fresh, freshErr := s.reservations.Get(ctx, reservationID)
			if freshErr != nil {
				return nil, fmt.Errorf("service: pay: re-check after conflict: %w", freshErr)
			}
			if fresh.Status == domain.ReservationPaid {
				return fresh, nil
			}
			return nil, ErrReservationNotPending
		}
		return nil, fmt.Errorf("service: pay: transition to paid: %w", err)
	}

	entry, err := s.queueEntries.GetByEventUser(ctx, reservation.EventID, reservation.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service: pay: lookup queue entry: %w", err)
	}
	if entry != nil {
		if err := s.queueEntries.TransitionToDone(ctx, entry.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("service: pay: transition queue entry: %w", err)
		}
	}

	paidAt := time.Now().UTC()
	reservation.Status = domain.ReservationPaid
	reservation.PaidAt = &paidAt

	s.notifier.Publish(ctx, claimant, "paid", map[string]any{
		"reservationId": reservation.ID,
		"eventId":       reservation.EventID,
		"paidAt":        paidAt,
	})

	log.Printf("[payment] reservation %s (event %s, user %s) paid", reservation.ID, reservation.EventID, claimant)
	return reservation, nil
}
