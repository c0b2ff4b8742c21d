package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/db"
)

const userColumns = `id, username, password_hash, created_at`

// Store provides database operations for users.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a user Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Username, &r.PasswordHash, &r.CreatedAt)
	return r, err
}

// Get returns a user by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanRow(row)
}

// GetByUsername returns a user by username, used during login.
func (s *Store) GetByUsername(ctx context.Context, username string) (Row, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanRow(row)
}

// Create inserts a new user. Username uniqueness is enforced by a unique
// index; a conflict surfaces as apperr.AlreadyExists.
func (s *Store) Create(ctx context.Context, username, passwordHash string) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		uuid.New(), username, passwordHash,
	)
	r, err := scanRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Row{}, apperr.New(apperr.AlreadyExists, "user_exists", "a user with this username already exists")
		}
		return Row{}, fmt.Errorf("creating user: %w", err)
	}
	return r, nil
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1 RETURNING `+userColumns,
		id, passwordHash,
	)
	return scanRow(row)
}
