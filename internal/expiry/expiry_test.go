package expiry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/promotion"
	"github.com/shiva/ticketqueue/internal/store"
)

type fakeReservations struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*domain.Reservation
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

func (f *fakeReservations) TransitionToExpired(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.Status != domain.ReservationPending {
		return store.ErrConflict
	}
	r.Status = domain.ReservationExpired
	return nil
}

func (f *fakeReservations) ListPendingPastDeadline(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*domain.Reservation
	for _, r := range f.byID {
		if r.Status == domain.ReservationPending && !r.DeadlineAt.After(now) {
			cp := *r
			due = append(due, &cp)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

type fakeQueueEntries struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.QueueEntry
	idx  map[[2]uuid.UUID]uuid.UUID
}

func newFakeQueueEntries() *fakeQueueEntries {
	return &fakeQueueEntries{
		byID: make(map[uuid.UUID]*domain.QueueEntry),
		idx:  make(map[[2]uuid.UUID]uuid.UUID),
	}
}

func (f *fakeQueueEntries) put(e *domain.QueueEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[e.ID] = e
	f.idx[[2]uuid.UUID{e.EventID, e.UserID}] = e.ID
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

func (f *fakeQueueEntries) TransitionToExpired(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok || e.Status != domain.QueueActive {
		return store.ErrConflict
	}
	e.Status = domain.QueueExpired
	return nil
}

type fakeEvents struct {
	mu        sync.Mutex
	remaining map[uuid.UUID]int
}

func newFakeEvents() *fakeEvents { return &fakeEvents{remaining: make(map[uuid.UUID]int)} }

func (f *fakeEvents) SetRemainingSeats(_ context.Context, eventID uuid.UUID, remaining int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining[eventID] = remaining
	return nil
}

type countingPromoter struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPromoter) PromoteBatch(context.Context, uuid.UUID, int) ([]promotion.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return nil, nil
}

func setup(t *testing.T, eventID, userID uuid.UUID, seats int, deadline time.Time) (*Pipeline, *ledger.Ledger, *fakeReservations, *fakeQueueEntries, *countingPromoter, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	led := ledger.New(ledger.NewFakeCoordinator())
	require.NoError(t, led.InitializeSeats(ctx, eventID, seats))
	require.NoError(t, led.SetActive(ctx, eventID, userID, time.Hour))

	reservations := newFakeReservations()
	reservationID := uuid.New()
	reservations.put(&domain.Reservation{
		ID: reservationID, EventID: eventID, UserID: userID,
		Status: domain.ReservationPending, DeadlineAt: deadline,
	})

	queueEntries := newFakeQueueEntries()
	entryID := uuid.New()
	queueEntries.put(&domain.QueueEntry{
		ID: entryID, EventID: eventID, UserID: userID, Status: domain.QueueActive,
	})

	events := newFakeEvents()
	promoter := &countingPromoter{}

	pipeline := New(led, reservations, queueEntries, events, promoter, nil, 5)
	return pipeline, led, reservations, queueEntries, promoter, reservationID
}

func TestExpireOneReturnsSeatAndPromotes(t *testing.T) {
	ctx := context.Background()
	eventID, userID := uuid.New(), uuid.New()
	pipeline, led, reservations, queueEntries, promoter, reservationID := setup(t, eventID, userID, 0, time.Now().Add(-time.Minute))

	require.NoError(t, pipeline.ExpireOne(ctx, reservationID))

	remaining, err := led.GetRemainingSeats(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, 1, remaining)

	r, err := reservations.Get(ctx, reservationID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationExpired, r.Status)

	active, err := led.IsActive(ctx, eventID, userID)
	require.NoError(t, err)
	require.False(t, active)

	entry, err := queueEntries.GetByEventUser(ctx, eventID, userID)
	require.NoError(t, err)
	require.Equal(t, domain.QueueExpired, entry.Status)

	require.Equal(t, 1, promoter.calls)
}

// TestExpireOneIsIdempotent mirrors P4: delivering the same reservation id
// any number of times results in exactly one seat return.
func TestExpireOneIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eventID, userID := uuid.New(), uuid.New()
	pipeline, led, _, _, promoter, reservationID := setup(t, eventID, userID, 0, time.Now().Add(-time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, pipeline.ExpireOne(ctx, reservationID))
		}()
	}
	wg.Wait()

	remaining, err := led.GetRemainingSeats(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, 1, remaining, "concurrent redelivery of the same reservation id must return exactly one seat")

	require.Equal(t, 1, promoter.calls, "promotion must be re-invoked exactly once per genuine expiration")
}

func TestExpireOneSkipsAlreadyPaidReservation(t *testing.T) {
	ctx := context.Background()
	eventID, userID := uuid.New(), uuid.New()
	pipeline, led, reservations, _, promoter, reservationID := setup(t, eventID, userID, 0, time.Now().Add(-time.Minute))

	r, err := reservations.Get(ctx, reservationID)
	require.NoError(t, err)
	r.Status = domain.ReservationPaid
	reservations.put(r)

	require.NoError(t, pipeline.ExpireOne(ctx, reservationID))

	remaining, err := led.GetRemainingSeats(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, 0, remaining, "a paid reservation must never have its seat returned")
	require.Equal(t, 0, promoter.calls)
}

func TestSweepProcessesOnlyDueReservations(t *testing.T) {
	ctx := context.Background()
	eventID, userID := uuid.New(), uuid.New()
	pipeline, _, reservations, _, _, reservationID := setup(t, eventID, userID, 0, time.Now().Add(-time.Minute))

	notDueID := uuid.New()
	reservations.put(&domain.Reservation{
		ID: notDueID, EventID: eventID, UserID: uuid.New(),
		Status: domain.ReservationPending, DeadlineAt: time.Now().Add(time.Hour),
	})

	processed, err := pipeline.Sweep(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	r, err := reservations.Get(ctx, reservationID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationExpired, r.Status)

	still, err := reservations.Get(ctx, notDueID)
	require.NoError(t, err)
	require.Equal(t, domain.ReservationPending, still.Status)
}
