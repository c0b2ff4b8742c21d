package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/db"
)

// Service encapsulates user identity logic: registration, password checks,
// and profile updates. Workspace membership and JWT issuance live in
// pkg/workspace, since a session always carries a workspace binding.
type Service struct {
	store *Store
}

// NewService creates a user Service backed by the given database connection.
func NewService(dbtx db.DBTX) *Service {
	return &Service{store: NewStore(dbtx)}
}

// Register hashes the password and creates a new user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Response, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.Create(ctx, req.Username, string(hash))
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// Get returns a single user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Response, error) {
	row, err := s.store.Get(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("getting user: %w", err)
	}
	return row.ToResponse(), nil
}

// UpdatePassword re-hashes and stores a new password for the user.
func (s *Service) UpdatePassword(ctx context.Context, id uuid.UUID, req UpdateRequest) (Response, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Response{}, fmt.Errorf("hashing password: %w", err)
	}

	row, err := s.store.UpdatePassword(ctx, id, string(hash))
	if err != nil {
		return Response{}, fmt.Errorf("updating password: %w", err)
	}
	return row.ToResponse(), nil
}

// Authenticate verifies a username/password pair and returns the matching
// row on success. Both "no such user" and "wrong password" surface as the
// same Unauthenticated error so callers cannot enumerate usernames.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Row, error) {
	row, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return Row{}, apperr.New(apperr.Unauthenticated, "invalid_credentials", "invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return Row{}, apperr.New(apperr.Unauthenticated, "invalid_credentials", "invalid username or password")
	}

	return row, nil
}
