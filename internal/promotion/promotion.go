// Package promotion implements the decrement-first admission protocol:
// pulling the queue head, atomically reserving a seat, and materializing
// a reservation. It is the heart of the system — everything else exists
// to feed it a queue and react to its decisions.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/store"
)

// QueueEntryStore is the slice of store.QueueEntries the engine needs.
// Declared here, not in store, so tests can substitute an in-memory
// double without touching Postgres.
type QueueEntryStore interface {
	GetByEventUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error)
	TransitionToActive(ctx context.Context, id, reservationID uuid.UUID) error
	TransitionToExpired(ctx context.Context, id uuid.UUID) error
}

// ReservationStore is the slice of store.Reservations the engine needs.
type ReservationStore interface {
	Create(ctx context.Context, eventID, userID uuid.UUID, deadline time.Time) (*domain.Reservation, error)
	TransitionToExpired(ctx context.Context, id uuid.UUID) error
}

// EventStore is the slice of store.Events the engine needs.
type EventStore interface {
	SetRemainingSeats(ctx context.Context, eventID uuid.UUID, remaining int) error
}

// Kind is the terminal result of a single promotion attempt.
type Kind string

const (
	// Promoted means the queue head was admitted: a PENDING_PAYMENT
	// reservation now exists and the entry is ACTIVE.
	Promoted Kind = "PROMOTED"
	// SoldOut means the queue head was popped but no seat remained;
	// the entry is EXPIRED and the seat counter was restored.
	SoldOut Kind = "SOLD_OUT"
	// Empty means the queue had no head to promote.
	Empty Kind = "EMPTY"
	// Throttled means promote batch's concurrency limit was already
	// reached; promote one was never attempted.
	Throttled Kind = "THROTTLED"
)

// Outcome reports what promote one (or one iteration of promote batch) did.
type Outcome struct {
	Kind          Kind
	UserID        uuid.UUID
	ReservationID uuid.UUID // set only when Kind == Promoted
}

// Notifier delivers a best-effort notification to a user. Correctness
// never depends on delivery succeeding; see spec's Design Notes.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload any)
}

// noopNotifier is used when the engine is constructed without one.
type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, uuid.UUID, string, any) {}

// Engine runs the promotion algorithm for events in their sales window.
type Engine struct {
	ledger       *ledger.Ledger
	queueEntries QueueEntryStore
	reservations ReservationStore
	events       EventStore
	notifier     Notifier
	window       time.Duration
}

// New builds a promotion engine. window is the fixed reservation deadline
// (W in spec §4.4), applied to every admitted reservation and active marker.
func New(led *ledger.Ledger, queueEntries QueueEntryStore, reservations ReservationStore, events EventStore, notifier Notifier, window time.Duration) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		ledger:       led,
		queueEntries: queueEntries,
		reservations: reservations,
		events:       events,
		notifier:     notifier,
		window:       window,
	}
}

// errRetired signals that this attempt lost an optimistic-update
// race against a concurrent promoter for the same head and produced no
// externally visible outcome; the caller should try again.
var errRetired = errors.New("promotion: retired")

// PromoteOne runs a single decrement-first admission attempt for event.
// It loops internally past any number of lost optimistic-update races —
// a loser retires silently and the loop re-peeks, since by definition the
// head it lost on has already been claimed by the winner.
func (e *Engine) PromoteOne(ctx context.Context, eventID uuid.UUID) (Outcome, error) {
	for {
		outcome, err := e.attempt(ctx, eventID)
		if errors.Is(err, errRetired) {
			continue
		}
		return outcome, err
	}
}

func (e *Engine) attempt(ctx context.Context, eventID uuid.UUID) (Outcome, error) {
	userID, ok, err := e.ledger.PeekQueueHead(ctx, eventID)
	if err != nil {
		return Outcome{}, fmt.Errorf("promotion: peek queue head: %w", err)
	}
	if !ok {
		return Outcome{Kind: Empty}, nil
	}

	v, err := e.ledger.DecrementSeats(ctx, eventID)
	if err != nil {
		return Outcome{}, fmt.Errorf("promotion: decrement seats: %w", err)
	}

	if v >= 0 {
		return e.admit(ctx, eventID, userID, v)
	}
	return e.soldOut(ctx, eventID, userID, v)
}

func (e *Engine) admit(ctx context.Context, eventID, userID uuid.UUID, remaining int) (Outcome, error) {
	deadline := time.Now().UTC().Add(e.window)

	reservation, err := e.reservations.Create(ctx, eventID, userID, deadline)
	if err != nil {
		if _, rerr := e.ledger.IncrementSeats(ctx, eventID); rerr != nil {
			return Outcome{}, fmt.Errorf("promotion: admit: restore seat after create failure: %w", rerr)
		}
		return Outcome{}, fmt.Errorf("promotion: admit: create reservation: %w", err)
	}

	entry, err := e.queueEntries.GetByEventUser(ctx, eventID, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("promotion: admit: lookup queue entry: %w", err)
	}

	if err := e.queueEntries.TransitionToActive(ctx, entry.ID, reservation.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return e.retireAdmit(ctx, eventID, reservation.ID)
		}
		return Outcome{}, fmt.Errorf("promotion: admit: transition queue entry: %w", err)
	}

	if err := e.ledger.RemoveFromQueue(ctx, eventID, userID); err != nil {
		return Outcome{}, fmt.Errorf("promotion: admit: remove from queue: %w", err)
	}
	if err := e.ledger.SetActive(ctx, eventID, userID, e.window); err != nil {
		return Outcome{}, fmt.Errorf("promotion: admit: set active marker: %w", err)
	}
	if err := e.events.SetRemainingSeats(ctx, eventID, remaining); err != nil {
		log.Printf("[promotion] event %s: mirror remaining seats: %v", eventID, err)
	}

	e.notifier.Publish(ctx, userID, "active", map[string]any{
		"eventId":       eventID,
		"reservationId": reservation.ID,
		"deadline":      deadline,
	})

	log.Printf("[promotion] event %s: promoted user %s, reservation %s, seats=%d", eventID, userID, reservation.ID, remaining)
	return Outcome{Kind: Promoted, UserID: userID, ReservationID: reservation.ID}, nil
}

// retireAdmit unwinds an admit attempt that lost the WAITING→ACTIVE race:
// the seat it decremented is surplus and the orphan reservation it minted
// never reaches a client, so both are reclaimed before signalling a retry.
func (e *Engine) retireAdmit(ctx context.Context, eventID, reservationID uuid.UUID) (Outcome, error) {
	if _, err := e.ledger.IncrementSeats(ctx, eventID); err != nil {
		return Outcome{}, fmt.Errorf("promotion: retire admit: restore seat: %w", err)
	}
	if err := e.reservations.TransitionToExpired(ctx, reservationID); err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("[promotion] event %s: retire orphan reservation %s: %v", eventID, reservationID, err)
	}
	return Outcome{}, errRetired
}

func (e *Engine) soldOut(ctx context.Context, eventID, userID uuid.UUID, deficit int) (Outcome, error) {
	if _, err := e.ledger.IncrementSeats(ctx, eventID); err != nil {
		return Outcome{}, fmt.Errorf("promotion: sold out: restore seat: %w", err)
	}

	entry, err := e.queueEntries.GetByEventUser(ctx, eventID, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("promotion: sold out: lookup queue entry: %w", err)
	}

	if err := e.queueEntries.TransitionToExpired(ctx, entry.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if err := e.ledger.RemoveFromQueue(ctx, eventID, userID); err != nil {
				return Outcome{}, fmt.Errorf("promotion: sold out: remove from queue: %w", err)
			}
			return Outcome{}, errRetired
		}
		return Outcome{}, fmt.Errorf("promotion: sold out: transition queue entry: %w", err)
	}

	if err := e.ledger.RemoveFromQueue(ctx, eventID, userID); err != nil {
		return Outcome{}, fmt.Errorf("promotion: sold out: remove from queue: %w", err)
	}

	e.notifier.Publish(ctx, userID, "sold_out", map[string]any{"eventId": eventID})

	log.Printf("[promotion] event %s: sold out for user %s (deficit %d)", eventID, userID, deficit)
	return Outcome{Kind: SoldOut, UserID: userID}, nil
}

// PromoteBatch runs promote one repeatedly for event until the queue is
// empty or the slot budget is used up. The budget is maxConcurrentActive
// minus the current active count, and every outcome (promoted or sold
// out) uses one slot. A sold-out outcome does not stop the batch, so
// scenario 2's stampede resolves within one tick.
// maxConcurrentActive <= 0 means no cap.
func (e *Engine) PromoteBatch(ctx context.Context, eventID uuid.UUID, maxConcurrentActive int) ([]Outcome, error) {
	slots := math.MaxInt
	if maxConcurrentActive > 0 {
		active, err := e.ledger.GetActiveCount(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("promotion: batch: get active count: %w", err)
		}
		slots = maxConcurrentActive - active
		if slots <= 0 {
			return []Outcome{{Kind: Throttled}}, nil
		}
	}

	var outcomes []Outcome
	for len(outcomes) < slots {
		outcome, err := e.PromoteOne(ctx, eventID)
		if err != nil {
			return outcomes, fmt.Errorf("promotion: batch: %w", err)
		}
		outcomes = append(outcomes, outcome)
		if outcome.Kind == Empty {
			break
		}
	}
	return outcomes, nil
}
