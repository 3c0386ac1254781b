package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/service"
)

// EventHandler handles event CRUD and admin-stats HTTP requests.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler creates an event handler wired to the event service.
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// ListEvents handles GET /events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		log.Printf("[handler] list events error: %v", err)
		apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type createEventRequest struct {
	Name         string    `json:"name"`
	TotalSeats   int       `json:"totalSeats"`
	SalesStartAt time.Time `json:"salesStartAt"`
	SalesEndAt   time.Time `json:"salesEndAt"`
}

// CreateEvent handles POST /admin/events.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if req.Name == "" || req.TotalSeats <= 0 || !req.SalesEndAt.After(req.SalesStartAt) {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_body", "name, totalSeats, and a valid sales window are required")
		return
	}

	event, err := h.events.Create(r.Context(), req.Name, req.TotalSeats, req.SalesStartAt, req.SalesEndAt)
	if err != nil {
		log.Printf("[handler] create event error: %v", err)
		apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Stats handles GET /admin/events/{id}/stats.
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}

	stats, err := h.events.Stats(r.Context(), id)
	if err != nil {
		writeEventError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		apierror.Write(w, r, http.StatusNotFound, "not_found", "event not found")
	default:
		log.Printf("[handler] event error: %v", err)
		apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func parseID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}
