package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/shiva/ticketqueue/internal/apierror"
	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/service"
)

// AuthHandler handles login HTTP requests.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates an auth handler wired to the auth service.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Name  string          `json:"name"`
	Role  domain.UserRole `json:"role"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, r, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apierror.Write(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		default:
			log.Printf("[handler] login error: %v", err)
			apierror.Write(w, r, http.StatusInternalServerError, "internal_error", "unexpected error")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		User: userResponse{
			ID: user.ID.String(), Email: user.Email, Name: user.Name, Role: user.Role,
		},
	})
}
