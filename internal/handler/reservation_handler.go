package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/middleware"
	"github.com/shiva/ticketqueue/internal/service"
)

// ReservationHandler handles payment HTTP requests.
type ReservationHandler struct {
	payments *service.PaymentService
}

// NewReservationHandler creates a reservation handler wired to the
// payment service.
func NewReservationHandler(payments *service.PaymentService) *ReservationHandler {
	return &ReservationHandler{payments: payments}
}

// Pay handles POST /reservations/{id}/pay.
//
// Response codes:
//
//	200  — payment accepted (returns the reservation record)
//	400  — invalid id, or reservation not payable (already terminal, or
//	       its deadline has passed)
//	401  — unauthenticated
//	403  — wrong owner
//	404  — unknown reservation
//	500  — unexpected error
func (h *ReservationHandler) Pay(w http.ResponseWriter, r *http.Request) {
	reservationID, err := parseID(r, "id")
	if err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return
	}
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return
	}

	reservation, err := h.payments.Pay(r.Context(), reservationID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			apierror.Write(w, r, http.StatusNotFound, "not_found", "reservation not found")
		case errors.Is(err, service.ErrWrongOwner):
			apierror.Write(w, r, http.StatusForbidden, "wrong_owner", "reservation belongs to another user")
		case errors.Is(err, service.ErrReservationNotPending), errors.Is(err, service.ErrReservationDeadlinePassed):
			apierror.Write(w, r, http.StatusBadRequest, "not_payable", err.Error())
		default:
			log.Printf("[handler] pay error: %v", err)
			apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}
