// Package user implements spec §4.1's User-facing identity operations:
// register_user and profile read/update. JWT issuance binds a user to a
// workspace and lives alongside workspace membership in pkg/workspace.
package user

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the JSON body for POST /user/.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateRequest is the JSON body for PUT /user/{id}.
type UpdateRequest struct {
	Password string `json:"password" validate:"omitempty,min=8"`
}

// Response is the JSON response for a single user; the password hash is
// never serialized.
type Response struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Row represents a row from the users table.
type Row struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// ToResponse converts a Row to a Response DTO.
func (r *Row) ToResponse() Response {
	return Response{ID: r.ID, Username: r.Username, CreatedAt: r.CreatedAt}
}
