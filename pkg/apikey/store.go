package apikey

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/askaq/aaq/internal/db"
)

const apiKeyColumns = `id, workspace_id, key_hash, last_used_at, created_at`

// Store provides database operations for workspace API keys.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates an API key Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.KeyHash, &r.LastUsedAt, &r.CreatedAt)
	return r, err
}

// Get returns the active API key row for a workspace, if any.
func (s *Store) Get(ctx context.Context, workspaceID int64) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE workspace_id = $1`, workspaceID)
	return scanRow(row)
}

// Rotate atomically replaces the workspace's API key hash (deleting any
// existing row first, so exactly one key ever exists per workspace) inside
// a transaction that locks the workspace row with SELECT ... FOR UPDATE per
// spec §5's mutual-exclusion requirement for key rotation.
func (s *Store) Rotate(ctx context.Context, tx pgx.Tx, workspaceID int64, keyHash string) (Row, error) {
	var lockedID int64
	if err := tx.QueryRow(ctx, `SELECT id FROM workspaces WHERE id = $1 FOR UPDATE`, workspaceID).Scan(&lockedID); err != nil {
		return Row{}, fmt.Errorf("locking workspace: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM api_keys WHERE workspace_id = $1`, workspaceID); err != nil {
		return Row{}, fmt.Errorf("deleting previous key: %w", err)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO api_keys (id, workspace_id, key_hash) VALUES ($1, $2, $3)
		 RETURNING `+apiKeyColumns,
		uuid.New(), workspaceID, keyHash,
	)
	return scanRow(row)
}
