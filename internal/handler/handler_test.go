package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shiva/ticketqueue/internal/auth"
	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/ledger"
	"github.com/shiva/ticketqueue/internal/middleware"
	"github.com/shiva/ticketqueue/internal/service"
	"github.com/shiva/ticketqueue/internal/store"
)

// ── minimal in-memory fakes against the service package's exported
// store interfaces, just enough to exercise the HTTP layer end to end.

type fakeUsers struct{ users map[string]*domain.User }

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}
func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeEvents struct{ events map[uuid.UUID]*domain.Event }

func (f fakeEvents) Create(_ context.Context, name string, totalSeats int, start, end time.Time) (*domain.Event, error) {
	e := &domain.Event{ID: uuid.New(), Name: name, TotalSeats: totalSeats, SalesStartAt: start, SalesEndAt: end, RemainingSeats: totalSeats}
	f.events[e.ID] = e
	return e, nil
}
func (f fakeEvents) Get(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}
func (f fakeEvents) List(_ context.Context) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

type fakeReservationCounter struct{}

func (fakeReservationCounter) CountByStatus(_ context.Context, _ uuid.UUID) (domain.ReservationCounts, error) {
	return domain.ReservationCounts{}, nil
}

type fakeQueueEntries struct{ entries map[[2]uuid.UUID]*domain.QueueEntry }

func (f fakeQueueEntries) Upsert(_ context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	key := [2]uuid.UUID{eventID, userID}
	if e, ok := f.entries[key]; ok {
		return e, nil
	}
	e := &domain.QueueEntry{ID: uuid.New(), EventID: eventID, UserID: userID, Status: domain.QueueWaiting}
	f.entries[key] = e
	return e, nil
}
func (f fakeQueueEntries) GetByEventUser(_ context.Context, eventID, userID uuid.UUID) (*domain.QueueEntry, error) {
	if e, ok := f.entries[[2]uuid.UUID{eventID, userID}]; ok {
		return e, nil
	}
	return nil, store.ErrNotFound
}

type fakeReservationGetter struct{}

func (fakeReservationGetter) Get(_ context.Context, _ uuid.UUID) (*domain.Reservation, error) {
	return nil, store.ErrNotFound
}

func newAuthedRequest(t *testing.T, jwtSvc *auth.Service, method, target string, user *domain.User) *http.Request {
	t.Helper()
	token, err := jwtSvc.Issue(user)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginHandlerReturnsTokenOnSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: string(hash), Name: "A", Role: domain.RoleUser}

	jwtSvc := auth.NewService("secret", time.Hour, "ticketqueue")
	authSvc := service.NewAuthService(fakeUsers{users: map[string]*domain.User{user.Email: user}}, jwtSvc)
	h := NewAuthHandler(authSvc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"hunter2"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	require.Equal(t, user.Email, body.User.Email)
}

func TestLoginHandlerRejectsBadCredentials(t *testing.T) {
	jwtSvc := auth.NewService("secret", time.Hour, "ticketqueue")
	authSvc := service.NewAuthService(fakeUsers{users: map[string]*domain.User{}}, jwtSvc)
	h := NewAuthHandler(authSvc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"x"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetEventHandlerReturns404ForUnknownID(t *testing.T) {
	led := ledger.New(ledger.NewFakeCoordinator())
	events := fakeEvents{events: make(map[uuid.UUID]*domain.Event)}
	eventSvc := service.NewEventService(events, fakeReservationCounter{}, led)
	h := NewEventHandler(eventSvc)

	router := mux.NewRouter()
	router.HandleFunc("/events/{id}", h.GetEvent)

	req := httptest.NewRequest(http.MethodGet, "/events/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEventHandlerRejectsMalformedID(t *testing.T) {
	led := ledger.New(ledger.NewFakeCoordinator())
	events := fakeEvents{events: make(map[uuid.UUID]*domain.Event)}
	eventSvc := service.NewEventService(events, fakeReservationCounter{}, led)
	h := NewEventHandler(eventSvc)

	router := mux.NewRouter()
	router.HandleFunc("/events/{id}", h.GetEvent)

	req := httptest.NewRequest(http.MethodGet, "/events/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueJoinRequiresAuthentication(t *testing.T) {
	led := ledger.New(ledger.NewFakeCoordinator())
	events := fakeEvents{events: make(map[uuid.UUID]*domain.Event)}
	queueSvc := service.NewQueueService(led, fakeQueueEntries{entries: make(map[[2]uuid.UUID]*domain.QueueEntry)}, events, fakeReservationGetter{})
	h := NewQueueHandler(queueSvc)

	router := mux.NewRouter()
	router.HandleFunc("/events/{id}/queue/join", h.Join)

	req := httptest.NewRequest(http.MethodPost, "/events/"+uuid.New().String()+"/queue/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueueJoinSucceedsWithinSalesWindow(t *testing.T) {
	led := ledger.New(ledger.NewFakeCoordinator())
	eventsMap := fakeEvents{events: make(map[uuid.UUID]*domain.Event)}
	event, err := eventsMap.Create(context.Background(), "concert", 10, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, led.InitializeSeats(context.Background(), event.ID, 10))

	queueSvc := service.NewQueueService(led, fakeQueueEntries{entries: make(map[[2]uuid.UUID]*domain.QueueEntry)}, eventsMap, fakeReservationGetter{})
	h := NewQueueHandler(queueSvc)

	jwtSvc := auth.NewService("secret", time.Hour, "ticketqueue")
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", Role: domain.RoleUser}

	router := mux.NewRouter()
	router.Handle("/events/{id}/queue/join", middleware.Authenticate(jwtSvc)(http.HandlerFunc(h.Join)))

	req := newAuthedRequest(t, jwtSvc, http.MethodPost, "/events/"+event.ID.String()+"/queue/join", user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status service.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, domain.QueueWaiting, status.Status)
}
