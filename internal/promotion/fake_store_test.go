package promotion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/store"
)

// fakeStore is the shared in-memory state behind the three thin adapters
// below, mirroring the conditional-update semantics of the pgx-backed
// store (zero rows affected → ErrConflict) without a live Postgres.
type fakeStore struct {
	mu             sync.Mutex
	entriesByID    map[uuid.UUID]*domain.QueueEntry
	entriesByEvent map[[2]uuid.UUID]uuid.UUID // (eventID, userID) -> entry id
	reservations   map[uuid.UUID]*domain.Reservation
	remaining      map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entriesByID:    make(map[uuid.UUID]*domain.QueueEntry),
		entriesByEvent: make(map[[2]uuid.UUID]uuid.UUID),
		reservations:   make(map[uuid.UUID]*domain.Reservation),
		remaining:      make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) seedWaiting(eventID, userID uuid.UUID) *domain.QueueEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := &domain.QueueEntry{
		ID:      uuid.New(),
		EventID: eventID,
		UserID:  userID,
		Status:  domain.QueueWaiting,
	}
	f.entriesByID[entry.ID] = entry
	f.entriesByEvent[[2]uuid.UUID{eventID, userID}] = entry.ID
	return entry
}

// queueEntries adapts fakeStore to the promotion.QueueEntryStore interface.
type fakeQueueEntries struct{ *fakeStore }

func (f fakeQueueEntries) GetByEventUser(_ context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.entriesByEvent[[2]uuid.UUID{eventID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.entriesByID[id]
	return &cp, nil
}

func (f fakeQueueEntries) TransitionToActive(_ context.Context, id, reservationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entriesByID[id]
	if !ok || entry.Status != domain.QueueWaiting {
		return store.ErrConflict
	}
	entry.Status = domain.QueueActive
	entry.ReservationID = &reservationID
	return nil
}

func (f fakeQueueEntries) TransitionToExpired(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entriesByID[id]
	if !ok || (entry.Status != domain.QueueWaiting && entry.Status != domain.QueueActive) {
		return store.ErrConflict
	}
	entry.Status = domain.QueueExpired
	return nil
}

// fakeReservations adapts fakeStore to the promotion.ReservationStore interface.
type fakeReservations struct{ *fakeStore }

func (f fakeReservations) Create(_ context.Context, eventID, userID uuid.UUID, deadline time.Time) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &domain.Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Status:     domain.ReservationPending,
		DeadlineAt: deadline,
	}
	f.reservations[r.ID] = r
	return r, nil
}

func (f fakeReservations) TransitionToExpired(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != domain.ReservationPending {
		return store.ErrConflict
	}
	r.Status = domain.ReservationExpired
	return nil
}

// fakeEvents adapts fakeStore to the promotion.EventStore interface.
type fakeEvents struct{ *fakeStore }

func (f fakeEvents) SetRemainingSeats(_ context.Context, eventID uuid.UUID, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining[eventID] = remaining
	return nil
}
