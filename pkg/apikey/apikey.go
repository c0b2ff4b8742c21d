// Package apikey implements rotate_api_key (spec §4.1): exactly one active
// API key per workspace, stored only as a hash; rotation atomically
// replaces the hash and returns the new plaintext key exactly once.
package apikey

import (
	"time"

	"github.com/google/uuid"
)

// Response is the JSON response describing an API key without the secret.
type Response struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// RotateResponse includes the new plaintext key, returned exactly once.
type RotateResponse struct {
	Response
	Key string `json:"key"`
}

// Row represents a row from the api_keys table.
type Row struct {
	ID          uuid.UUID
	WorkspaceID int64
	KeyHash     string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// ToResponse converts a Row to a Response DTO.
func (r *Row) ToResponse() Response {
	return Response{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		CreatedAt:   r.CreatedAt,
		LastUsedAt:  r.LastUsedAt,
	}
}
