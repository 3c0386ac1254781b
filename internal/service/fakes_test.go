package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/store"
)

type fakeEvents struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Event
}

func newFakeEvents() *fakeEvents { return &fakeEvents{byID: make(map[uuid.UUID]*domain.Event)} }

func (f *fakeEvents) put(e *domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[e.ID] = e
}

func (f *fakeEvents) Create(_ context.Context, name string, totalSeats int, salesStart, salesEnd time.Time) (*domain.Event, error) {
	e := &domain.Event{
		ID: uuid.New(), Name: name, TotalSeats: totalSeats,
		SalesStartAt: salesStart, SalesEndAt: salesEnd, RemainingSeats: totalSeats,
	}
	f.put(e)
	return e, nil
}

func (f *fakeEvents) Get(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) List(_ context.Context) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.byID {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

type fakeQueueEntries struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.QueueEntry
	idx  map[[2]uuid.UUID]uuid.UUID
}

func newFakeQueueEntries() *fakeQueueEntries {
	return &fakeQueueEntries{byID: make(map[uuid.UUID]*domain.QueueEntry), idx: make(map[[2]uuid.UUID]uuid.UUID)}
}

func (f *fakeQueueEntries) put(e *domain.QueueEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[e.ID] = e
	f.idx[[2]uuid.UUID{e.EventID, e.UserID}] = e.ID
}

func (f *fakeQueueEntries) Upsert(_ context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	f.mu.Lock()
	if id, ok := f.idx[[2]uuid.UUID{eventID, userID}]; ok {
		cp := *f.byID[id]
		f.mu.Unlock()
		return &cp, nil
	}
	f.mu.Unlock()
	entry := &domain.QueueEntry{ID: uuid.New(), EventID: eventID, UserID: userID, Status: domain.QueueWaiting}
	f.put(entry)
	return entry, nil
}

func (f *fakeQueueEntries) GetByEventUser(_ context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.idx[[2]uuid.UUID{eventID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeQueueEntries) TransitionToDone(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok || e.Status != domain.QueueActive {
		return store.ErrConflict
	}
	e.Status = domain.QueueDone
	return nil
}

type fakeReservations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Reservation
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{byID: make(map[uuid.UUID]*domain.Reservation)}
}

func (f *fakeReservations) put(r *domain.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[r.ID] = r
}

func (f *fakeReservations) Get(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservations) TransitionToPaid(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != domain.ReservationPending {
		return store.ErrConflict
	}
	r.Status = domain.ReservationPaid
	now := time.Now().UTC()
	r.PaidAt = &now
	return nil
}

func (f *fakeReservations) CountByStatus(_ context.Context, eventID uuid.UUID) (domain.ReservationCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counts domain.ReservationCounts
	for _, r := range f.byID {
		if r.EventID != eventID {
			continue
		}
		switch r.Status {
		case domain.ReservationPending:
			counts.PendingPayment++
		case domain.ReservationPaid:
			counts.Paid++
		case domain.ReservationExpired:
			counts.Expired++
		}
	}
	return counts, nil
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
	byID    map[uuid.UUID]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*domain.User), byID: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeUsers) put(u *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type countingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *countingNotifier) Publish(_ context.Context, _ uuid.UUID, event string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}
