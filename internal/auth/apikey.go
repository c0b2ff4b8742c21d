package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askaq/aaq/internal/db"
)

// APIKeyAuthenticator validates workspace API keys against the database.
// Grounded on the teacher's APIKeyAuthenticator.Authenticate, narrowed to
// spec §3's ApiKey model: exactly one active key per workspace, no
// per-key scopes or expiry.
type APIKeyAuthenticator struct {
	DB db.DBTX
}

// APIKeyResult holds the resolved identity data from an API key lookup.
type APIKeyResult struct {
	APIKeyID    uuid.UUID
	WorkspaceID int64
}

// Authenticate hashes the raw key and looks it up in api_keys. Middleware
// gives an API key caller the read_only role, so routes behind RequireAdmin
// reject it; there is no narrower endpoint allowlist, and any route that
// only requires authentication accepts it.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*APIKeyResult, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("empty API key")
	}

	hash := HashAPIKey(rawKey)

	var id uuid.UUID
	var workspaceID int64
	row := a.DB.QueryRow(ctx, `SELECT id, workspace_id FROM api_keys WHERE key_hash = $1`, hash)
	if err := row.Scan(&id, &workspaceID); err != nil {
		return nil, fmt.Errorf("looking up API key: %w", err)
	}

	// Update last_used_at asynchronously, fire-and-forget, mirroring the
	// teacher's non-blocking last-used bookkeeping.
	go func(keyID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.DB.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, keyID)
	}(id)

	return &APIKeyResult{APIKeyID: id, WorkspaceID: workspaceID}, nil
}
