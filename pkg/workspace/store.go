package workspace

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

const workspaceColumns = `id, name, content_quota, api_daily_quota, created_at, updated_at`

// Store provides database operations for workspaces and their membership
// links.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a workspace Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Name, &r.ContentQuota, &r.APIDailyQuota, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Get returns a workspace by ID.
func (s *Store) Get(ctx context.Context, id int64) (Row, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
	return scanRow(row)
}

// Create inserts a new workspace within the caller's transaction, so it
// commits atomically with the AddLink call that gives it its first admin.
// Name uniqueness is enforced by a unique index; a conflict surfaces as
// apperr.AlreadyExists.
func (s *Store) Create(ctx context.Context, tx pgx.Tx, name string, contentQuota, apiDailyQuota *int) (Row, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO workspaces (name, content_quota, api_daily_quota) VALUES ($1, $2, $3)
		 RETURNING `+workspaceColumns,
		name, contentQuota, apiDailyQuota,
	)
	r, err := scanRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Row{}, apperr.New(apperr.AlreadyExists, "workspace_exists", "a workspace with this name already exists")
		}
		return Row{}, fmt.Errorf("creating workspace: %w", err)
	}
	return r, nil
}

// ListIDs returns every workspace ID, for the periodic topic-clustering
// sweep to iterate over.
func (s *Store) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing workspace ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning workspace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update patches a workspace's mutable fields. nil pointers leave the
// existing value unchanged.
func (s *Store) Update(ctx context.Context, id int64, name *string, contentQuota, apiDailyQuota *int, hasContentQuota, hasAPIDailyQuota bool) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE workspaces SET
			name = COALESCE($2, name),
			content_quota = CASE WHEN $3 THEN $4 ELSE content_quota END,
			api_daily_quota = CASE WHEN $5 THEN $6 ELSE api_daily_quota END,
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+workspaceColumns,
		id, name, hasContentQuota, contentQuota, hasAPIDailyQuota, apiDailyQuota,
	)
	return scanRow(row)
}

// AddLink inserts a user-workspace membership link. If this is the user's
// first workspace, it is marked default.
func (s *Store) AddLink(ctx context.Context, tx pgx.Tx, userID uuid.UUID, workspaceID int64, role string) error {
	var existingDefault bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_workspace_links WHERE user_id = $1)`, userID,
	).Scan(&existingDefault)
	if err != nil {
		return fmt.Errorf("checking existing links: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_workspace_links (user_id, workspace_id, role, is_default)
		 VALUES ($1, $2, $3, $4)`,
		userID, workspaceID, role, !existingDefault,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.New(apperr.AlreadyExists, "already_member", "user is already a member of this workspace")
		}
		return fmt.Errorf("adding workspace link: %w", err)
	}
	return nil
}

// GetLink returns the membership link for a user in a workspace.
func (s *Store) GetLink(ctx context.Context, userID uuid.UUID, workspaceID int64) (LinkRow, error) {
	var l LinkRow
	err := s.dbtx.QueryRow(ctx,
		`SELECT user_id, workspace_id, role, is_default FROM user_workspace_links
		 WHERE user_id = $1 AND workspace_id = $2`,
		userID, workspaceID,
	).Scan(&l.UserID, &l.WorkspaceID, &l.Role, &l.IsDefault)
	return l, err
}

// GetDefaultLink returns the user's default workspace link.
func (s *Store) GetDefaultLink(ctx context.Context, userID uuid.UUID) (LinkRow, error) {
	var l LinkRow
	err := s.dbtx.QueryRow(ctx,
		`SELECT user_id, workspace_id, role, is_default FROM user_workspace_links
		 WHERE user_id = $1 AND is_default = true`,
		userID,
	).Scan(&l.UserID, &l.WorkspaceID, &l.Role, &l.IsDefault)
	return l, err
}

// AdminCount returns the number of admins in a workspace.
func (s *Store) AdminCount(ctx context.Context, tx pgx.Tx, workspaceID int64) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM user_workspace_links WHERE workspace_id = $1 AND role = $2`,
		workspaceID, RoleAdmin,
	).Scan(&n)
	return n, err
}

// SetDefault atomically clears any other default link for the user and
// marks the given workspace as default, within the caller's transaction.
func (s *Store) SetDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID, workspaceID int64) error {
	var lockedUserID uuid.UUID
	err := tx.QueryRow(ctx,
		`SELECT user_id FROM user_workspace_links WHERE user_id = $1 AND workspace_id = $2 FOR UPDATE`,
		userID, workspaceID,
	).Scan(&lockedUserID)
	if err != nil {
		return fmt.Errorf("locking membership: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE user_workspace_links SET is_default = false WHERE user_id = $1 AND is_default = true`,
		userID,
	); err != nil {
		return fmt.Errorf("clearing previous default: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE user_workspace_links SET is_default = true WHERE user_id = $1 AND workspace_id = $2`,
		userID, workspaceID,
	); err != nil {
		return fmt.Errorf("setting new default: %w", err)
	}
	return nil
}
