package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ticketqueue/internal/domain"
)

// Users provides account access backed by the users table.
type Users struct {
	pool *pgxpool.Pool
}

// NewUsers creates a users store backed by the given pool.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

// Create inserts a new user and returns it with its generated ID and
// creation timestamp. Returns ErrDuplicate if the email is already taken.
func (s *Users) Create(ctx context.Context, email, passwordHash, name string, role domain.UserRole) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: create user: %w", translate(err))
	}
	return u, nil
}

// GetByEmail fetches a user by email, or ErrNotFound.
func (s *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get user by email: %w", translate(err))
	}
	return u, nil
}

// GetByID fetches a user by ID, or ErrNotFound.
func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u := &domain.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get user by id: %w", translate(err))
	}
	return u, nil
}
