package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shiva/ticketqueue/internal/auth"
	"github.com/shiva/ticketqueue/internal/domain"
	"github.com/shiva/ticketqueue/internal/store"
)

// UserStore is the slice of store.Users the auth service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthService implements login (spec §4.8): checks a bcrypt password hash
// and mints a JWT on success.
type AuthService struct {
	users UserStore
	jwt   *auth.Service
}

// NewAuthService builds an auth service wired to a user store and a JWT
// signing service.
func NewAuthService(users UserStore, jwt *auth.Service) *AuthService {
	return &AuthService{users: users, jwt: jwt}
}

// Login verifies the given credentials and, on success, returns a signed
// bearer token alongside the authenticated user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("service: login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwt.Issue(user)
	if err != nil {
		return "", nil, fmt.Errorf("service: login: issue token: %w", err)
	}
	return token, user, nil
}
