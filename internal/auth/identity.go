// Package auth authenticates incoming requests (JWT user sessions or
// per-workspace API keys) and carries the resulting Identity through the
// request context for downstream role and workspace checks.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Roles supported by the RBAC system (spec §4.1: admin may mutate
// everything in-workspace; read_only may read and submit queries only).
const (
	RoleAdmin    = "admin"
	RoleReadOnly = "read_only"
)

// ValidRoles lists the two roles in descending privilege order.
var ValidRoles = []string{RoleAdmin, RoleReadOnly}

// Method describes how the caller was authenticated.
const (
	MethodSession = "session" // JWT user session
	MethodAPIKey  = "apikey"  // workspace API key
)

// Identity represents the authenticated caller for the current request.
type Identity struct {
	UserID      *uuid.UUID // non-nil for JWT session auth
	WorkspaceID int64      // resolved workspace binding
	Role        string     // one of the Role* constants
	APIKeyID    *uuid.UUID // non-nil for API key auth
	Method      string     // one of the Method* constants
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if unset.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleReadOnly
}

// HashAPIKey returns the SHA-256 hex digest of a raw API key. Only the hash
// is ever stored; the plaintext key is returned to the caller exactly once
// at creation/rotation time.
func HashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
