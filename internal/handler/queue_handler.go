package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/middleware"
	"github.com/shiva/ticketqueue/internal/service"
)

// QueueHandler handles queue-join and queue-status HTTP requests.
type QueueHandler struct {
	queue *service.QueueService
}

// NewQueueHandler creates a queue handler wired to the queue service.
func NewQueueHandler(queue *service.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Join handles POST /events/{id}/queue/join.
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r, "id")
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return
	}

	status, err := h.queue.Join(r.Context(), eventID, claims.UserID)
	if err != nil {
		writeQueueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Status handles GET /events/{id}/queue/me.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseID(r, "id")
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return
	}

	status, err := h.queue.Status(r.Context(), eventID, claims.UserID)
	if err != nil {
		writeQueueError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeQueueError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound), errors.Is(err, service.ErrQueueEntryNotFound):
		apierror.Write(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrOutOfWindow):
		apierror.Write(w, r, http.StatusBadRequest, "out_of_window", "event is not currently open for sales")
	default:
		log.Printf("[handler] queue error: %v", err)
		apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
