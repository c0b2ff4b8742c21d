// Package workspace implements the Identity & Workspace Manager: workspaces,
// user-workspace membership, default-workspace selection, and JWT issuance.
// Rotate-key is delegated to pkg/apikey; quota accounting to pkg/quota.
package workspace

import "time"

const (
	// RoleAdmin may mutate everything within a workspace.
	RoleAdmin = "admin"
	// RoleReadOnly may read and submit queries but not mutate domain state.
	RoleReadOnly = "read_only"
)

// CreateRequest is the JSON body for POST /workspace/. Username/Password are
// only required when the caller has no existing session yet — bootstrapping
// a brand-new user's first workspace, since a JWT cannot be issued until the
// user belongs to at least one workspace.
type CreateRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=150"`
	ContentQuota  *int   `json:"content_quota" validate:"omitempty,gte=0"`
	APIDailyQuota *int   `json:"api_daily_quota" validate:"omitempty,gte=0"`
	Username      string `json:"username" validate:"omitempty"`
	Password      string `json:"password" validate:"omitempty"`
}

// UpdateRequest is the JSON body for PUT /workspace/{id}.
type UpdateRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=150"`
	ContentQuota  *int    `json:"content_quota" validate:"omitempty,gte=0"`
	APIDailyQuota *int    `json:"api_daily_quota" validate:"omitempty,gte=0"`
}

// Response is the JSON response describing a workspace.
type Response struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ContentQuota  *int      `json:"content_quota,omitempty"`
	APIDailyQuota *int      `json:"api_daily_quota,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Row represents a row from the workspaces table.
type Row struct {
	ID            int64
	Name          string
	ContentQuota  *int
	APIDailyQuota *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToResponse converts a Row to a Response DTO.
func (r *Row) ToResponse() Response {
	return Response{
		ID:            r.ID,
		Name:          r.Name,
		ContentQuota:  r.ContentQuota,
		APIDailyQuota: r.APIDailyQuota,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// LinkRow represents a row from the user_workspace_links table.
type LinkRow struct {
	UserID      string // uuid as text for convenience in join scans
	WorkspaceID int64
	Role        string
	IsDefault   bool
}

// LoginRequest is the JSON body for POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginWorkspaceRequest is the JSON body for POST /login-workspace, used to
// mint a new token scoped to a workspace other than the caller's default.
type LoginWorkspaceRequest struct {
	WorkspaceID int64 `json:"workspace_id" validate:"required"`
}

// SwitchRequest is the JSON body for POST /workspace/switch.
type SwitchRequest struct {
	WorkspaceID int64 `json:"workspace_id" validate:"required"`
}

// TokenResponse wraps an issued JWT.
type TokenResponse struct {
	Token       string `json:"token"`
	WorkspaceID int64  `json:"workspace_id"`
	Role        string `json:"role"`
}

// AddUserRequest is the JSON body for adding a user to a workspace.
type AddUserRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=admin read_only"`
}
