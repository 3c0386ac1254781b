package handler

import (
	"log"
	"net/http"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/auth"
	"github.com/shiva/ticketqueue/internal/notify"
)

// WebSocketHandler upgrades GET /ws?token=<jwt> to a per-user
// notification socket (spec §4.7/§6).
type WebSocketHandler struct {
	hub *notify.Hub
	jwt *auth.Service
}

// NewWebSocketHandler creates a websocket handler wired to the
// notification hub and the JWT service used to authenticate the
// connection's query-string token.
func NewWebSocketHandler(hub *notify.Hub, jwt *auth.Service) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, jwt: jwt}
}

// Serve handles GET /ws.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "missing token query parameter")
		return
	}

	claims, err := h.jwt.Parse(token)
	if err != nil {
		apierror.Write(w, r, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
		return
	}

	if err := h.hub.Serve(r.Context(), w, r, claims.UserID); err != nil {
		log.Printf("[handler] websocket upgrade error: %v", err)
	}
}
