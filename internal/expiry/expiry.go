// Package expiry implements the expiration pipeline: it fires at a
// reservation's deadline (delivered here as a periodic sweep rather than
// a per-reservation delayed job — see Pipeline.Sweep), returns the seat,
// and re-invokes promotion so the seat is immediately re-offered.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/promotion"
	"github.com/shiva/ticketqueue/internal/store"
)

// ReservationStore is the slice of store.Reservations the pipeline needs.
type ReservationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	TransitionToExpired(ctx context.Context, id uuid.UUID) error
	ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error)
}

// QueueEntryStore is the slice of store.QueueEntries the pipeline needs.
type QueueEntryStore interface {
	GetByEventUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error)
	TransitionToExpired(ctx context.Context, id uuid.UUID) error
}

// EventStore is the slice of store.Events the pipeline needs.
type EventStore interface {
	SetRemainingSeats(ctx context.Context, eventID uuid.UUID, remaining int) error
}

// Promoter is the promotion engine's batch entry point, invoked once a
// seat has been returned so it is immediately offered to the next waiter.
type Promoter interface {
	PromoteBatch(ctx context.Context, eventID uuid.UUID, maxConcurrentActive int) ([]promotion.Outcome, error)
}

// Notifier delivers a best-effort notification to a user.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload any)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, uuid.UUID, string, any) {}

// Pipeline processes individual reservation expirations and sweeps for
// reservations past their deadline.
type Pipeline struct {
	ledger              *ledger.Ledger
	reservations        ReservationStore
	queueEntries        QueueEntryStore
	events              EventStore
	promoter            Promoter
	notifier            Notifier
	maxConcurrentActive int
}

// New builds an expiration pipeline. maxConcurrentActive bounds how many
// holders the promotion re-invocation admits at once (spec §4.4's promote
// batch parameter).
func New(led *ledger.Ledger, reservations ReservationStore, queueEntries QueueEntryStore, events EventStore, promoter Promoter, notifier Notifier, maxConcurrentActive int) *Pipeline {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Pipeline{
		ledger:              led,
		reservations:        reservations,
		queueEntries:        queueEntries,
		events:              events,
		promoter:            promoter,
		notifier:            notifier,
		maxConcurrentActive: maxConcurrentActive,
	}
}

// ExpireOne runs the expiration algorithm for a single reservation id,
// idempotently: delivering the same id any number of times, concurrently
// or sequentially, results in exactly one seat return (P4).
func (p *Pipeline) ExpireOne(ctx context.Context, reservationID uuid.UUID) error {
	reservation, err := p.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("[expiry] reservation %s: no longer exists, skipping", reservationID)
			return nil
		}
		return fmt.Errorf("expiry: load reservation: %w", err)
	}

	if reservation.Status != domain.ReservationPending {
		return nil
	}

	claimed, err := p.ledger.ClaimExpiration(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("expiry: claim expiration: %w", err)
	}
	if !claimed {
		// Someone else's fence is in place. Only proceed if the prior
		// owner crashed mid-sequence (status is still PENDING_PAYMENT);
		// otherwise this reservation was already fully processed.
		fresh, err := p.reservations.Get(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("expiry: re-check reservation: %w", err)
		}
		if fresh.Status != domain.ReservationPending {
			return nil
		}
	}

	return p.complete(ctx, reservation)
}

// complete runs steps 4-9 of spec §4.5: return the seat, transition the
// reservation and queue entry to their terminal states, clear the active
// marker, notify, and re-invoke promotion.
//
// The conditional reservation transition runs before the seat is touched,
// not after as spec §4.5 orders steps 4 and 5 literally: payment and
// expiration both race on that same conditional update (§4.6), and only
// its winner may mutate seats:E. Incrementing unconditionally first, as
// written, would let an expiry worker return a seat out from under a
// payment that committed moments earlier. Running the transition first
// makes its RowsAffected the actual arbiter, consistent with how the
// promotion engine treats its own conditional updates as the decision
// point rather than the seat counter.
func (p *Pipeline) complete(ctx context.Context, reservation *domain.Reservation) error {
	if err := p.reservations.TransitionToExpired(ctx, reservation.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Payment (or a concurrent expiry worker) already resolved
			// this reservation; nothing left for this call to do.
			return nil
		}
		return fmt.Errorf("expiry: transition reservation: %w", err)
	}

	remaining, err := p.ledger.IncrementSeats(ctx, reservation.EventID)
	if err != nil {
		return fmt.Errorf("expiry: increment seats: %w", err)
	}
	if err := p.events.SetRemainingSeats(ctx, reservation.EventID, remaining); err != nil {
		log.Printf("[expiry] event %s: mirror remaining seats: %v", reservation.EventID, err)
	}

	entry, err := p.queueEntries.GetByEventUser(ctx, reservation.EventID, reservation.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("expiry: lookup queue entry: %w", err)
	}
	if entry != nil {
		if err := p.queueEntries.TransitionToExpired(ctx, entry.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("expiry: transition queue entry: %w", err)
		}
	}

	if err := p.ledger.ClearActive(ctx, reservation.EventID, reservation.UserID); err != nil {
		return fmt.Errorf("expiry: clear active marker: %w", err)
	}

	p.notifier.Publish(ctx, reservation.UserID, "expired", map[string]any{
		"eventId":       reservation.EventID,
		"reservationId": reservation.ID,
	})

	log.Printf("[expiry] reservation %s (event %s, user %s) expired, seats=%d", reservation.ID, reservation.EventID, reservation.UserID, remaining)

	if p.promoter != nil {
		if _, err := p.promoter.PromoteBatch(ctx, reservation.EventID, p.maxConcurrentActive); err != nil {
			return fmt.Errorf("expiry: re-invoke promotion: %w", err)
		}
	}
	return nil
}

// Sweep lists PENDING_PAYMENT reservations whose deadline has passed and
// runs ExpireOne for each, up to limit per call. This is the chosen
// delivery mechanism for spec §4.5's input (a periodic sweep rather than
// per-reservation delayed jobs): simpler and resilient to process
// restarts, at the cost of latency bounded by the sweep's own cadence.
func (p *Pipeline) Sweep(ctx context.Context, limit int) (int, error) {
	due, err := p.reservations.ListPendingPastDeadline(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("expiry: sweep: list due reservations: %w", err)
	}

	var processed int
	for _, r := range due {
		if err := p.ExpireOne(ctx, r.ID); err != nil {
			log.Printf("[expiry] sweep: reservation %s: %v", r.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}
