package tag

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/db"
)

const tagColumns = `id, workspace_id, name`

// Store provides database operations for tags.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a tag Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.Name)
	return r, err
}

// List returns every tag in a workspace, ordered by name.
func (s *Store) List(ctx context.Context, workspaceID int64) ([]Row, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE workspace_id = $1 ORDER BY name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a single tag scoped to a workspace.
func (s *Store) Get(ctx context.Context, workspaceID, id int64) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return scanRow(row)
}

// Create inserts a new tag. Name uniqueness within a workspace is enforced
// by a unique index.
func (s *Store) Create(ctx context.Context, workspaceID int64, name string) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO tags (workspace_id, name) VALUES ($1, $2) RETURNING `+tagColumns,
		workspaceID, name,
	)
	r, err := scanRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Row{}, apperr.New(apperr.AlreadyExists, "tag_exists", "a tag with this name already exists in this workspace")
		}
		return Row{}, fmt.Errorf("creating tag: %w", err)
	}
	return r, nil
}

// Update renames a tag.
func (s *Store) Update(ctx context.Context, workspaceID, id int64, name string) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE tags SET name = $3 WHERE workspace_id = $1 AND id = $2 RETURNING `+tagColumns,
		workspaceID, id, name,
	)
	return scanRow(row)
}

// Delete removes a tag and its content associations.
func (s *Store) Delete(ctx context.Context, workspaceID, id int64) error {
	if _, err := s.dbtx.Exec(ctx, `DELETE FROM content_tags WHERE tag_id = $1`, id); err != nil {
		return fmt.Errorf("deleting tag associations: %w", err)
	}
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM tags WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
