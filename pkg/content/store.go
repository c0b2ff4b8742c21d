package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/db"
)

// selectColumns joins content with its tag associations via a lateral
// array_agg so a single round trip returns both the row and its tag_ids.
const selectColumns = `
	c.id, c.workspace_id, c.title, c.text, c.metadata,
	coalesce(t.tag_ids, '{}'), c.is_archived, c.positive_votes, c.negative_votes,
	c.embedding, c.created_at, c.updated_at`

const fromClause = `
	FROM content c
	LEFT JOIN LATERAL (
		SELECT array_agg(tag_id) AS tag_ids FROM content_tags WHERE content_id = c.id
	) t ON true`

// Store provides database operations for content items.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a content Store.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	var metadata []byte
	var vec *pgvector.Vector
	err := row.Scan(
		&r.ID, &r.WorkspaceID, &r.Title, &r.Text, &metadata,
		&r.TagIDs, &r.IsArchived, &r.PositiveVotes, &r.NegativeVotes,
		&vec, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Row{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return Row{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	if vec != nil {
		r.Embedding = vec.Slice()
	}
	return r, nil
}

// Get returns a content item scoped to a workspace.
func (s *Store) Get(ctx context.Context, workspaceID, id int64) (Row, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+selectColumns+fromClause+` WHERE c.workspace_id = $1 AND c.id = $2`,
		workspaceID, id,
	)
	return scanRow(row)
}

// List returns a page of non-archived content in a workspace, plus the
// total count for pagination.
func (s *Store) List(ctx context.Context, workspaceID int64, offset, limit int) ([]Row, int, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+selectColumns+fromClause+`
		 WHERE c.workspace_id = $1 AND NOT c.is_archived
		 ORDER BY c.id DESC
		 OFFSET $2 LIMIT $3`,
		workspaceID, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing content: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning content: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating content: %w", err)
	}

	var total int
	if err := s.dbtx.QueryRow(ctx,
		`SELECT count(*) FROM content WHERE workspace_id = $1 AND NOT is_archived`, workspaceID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting content: %w", err)
	}

	return out, total, nil
}

// CountNonArchived returns the number of non-archived content items in a
// workspace, used to pick exact vs approximate search per spec §3.
func (s *Store) CountNonArchived(ctx context.Context, workspaceID int64) (int, error) {
	var n int
	err := s.dbtx.QueryRow(ctx,
		`SELECT count(*) FROM content WHERE workspace_id = $1 AND NOT is_archived`, workspaceID,
	).Scan(&n)
	return n, err
}

// Create inserts a new content item with its tag associations inside a
// transaction. Title uniqueness among non-archived content in a workspace
// is enforced by a partial unique index.
func (s *Store) Create(ctx context.Context, tx pgx.Tx, workspaceID int64, title, text string, metadata map[string]any, tagIDs []int64, embedding []float32) (Row, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Row{}, fmt.Errorf("encoding metadata: %w", err)
	}

	var vec *pgvector.Vector
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO content (workspace_id, title, text, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		workspaceID, title, text, metaJSON, vec,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Row{}, apperr.New(apperr.AlreadyExists, "content_exists", "non-archived content with this title already exists")
		}
		return Row{}, fmt.Errorf("creating content: %w", err)
	}

	if err := replaceTags(ctx, tx, id, tagIDs); err != nil {
		return Row{}, err
	}

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+fromClause+` WHERE c.id = $1`, id)
	return scanRow(row)
}

// Update patches a content item's mutable fields and tag associations.
// nil Title/Text/Metadata/TagIDs leave the existing value unchanged.
func (s *Store) Update(ctx context.Context, tx pgx.Tx, workspaceID, id int64, title, text *string, metadata map[string]any, hasMetadata bool, tagIDs []int64, hasTagIDs bool) (Row, error) {
	var metaJSON []byte
	if hasMetadata {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return Row{}, fmt.Errorf("encoding metadata: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE content SET
			title = COALESCE($3, title),
			text = COALESCE($4, text),
			metadata = CASE WHEN $5 THEN $6::jsonb ELSE metadata END,
			updated_at = now()
		 WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id, title, text, hasMetadata, metaJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Row{}, apperr.New(apperr.AlreadyExists, "content_exists", "non-archived content with this title already exists")
		}
		return Row{}, fmt.Errorf("updating content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Row{}, pgx.ErrNoRows
	}

	if hasTagIDs {
		if err := replaceTags(ctx, tx, id, tagIDs); err != nil {
			return Row{}, err
		}
	}

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+fromClause+` WHERE c.id = $1`, id)
	return scanRow(row)
}

// Archive marks a content item archived rather than deleting it, per spec
// §3's "archived content is excluded from retrieval but retained for trace
// integrity" invariant.
func (s *Store) Archive(ctx context.Context, workspaceID, id int64) error {
	tag, err := s.dbtx.Exec(ctx,
		`UPDATE content SET is_archived = true, updated_at = now() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	)
	if err != nil {
		return fmt.Errorf("archiving content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete physically removes a content item that has never been referenced
// by a query trace; callers fall back to Archive when a trace reference
// exists, per spec §4.3's delete-or-archive-fallback behaviour.
func (s *Store) Delete(ctx context.Context, workspaceID, id int64) error {
	if _, err := s.dbtx.Exec(ctx, `DELETE FROM content_tags WHERE content_id = $1`, id); err != nil {
		return fmt.Errorf("deleting content tag associations: %w", err)
	}
	tag, err := s.dbtx.Exec(ctx, `DELETE FROM content WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// HasTraceReference reports whether any query trace references this
// content item among its retrieved_content_ids.
func (s *Store) HasTraceReference(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.dbtx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM query_traces WHERE retrieved_content_ids @> to_jsonb($1::bigint))`,
		id,
	).Scan(&exists)
	return exists, err
}

// RecordVote increments a content item's positive or negative vote counter.
func (s *Store) RecordVote(ctx context.Context, id int64, positive bool) error {
	col := "negative_votes"
	if positive {
		col = "positive_votes"
	}
	_, err := s.dbtx.Exec(ctx, `UPDATE content SET `+col+` = `+col+` + 1 WHERE id = $1`, id)
	return err
}

func replaceTags(ctx context.Context, tx pgx.Tx, contentID int64, tagIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM content_tags WHERE content_id = $1`, contentID); err != nil {
		return fmt.Errorf("clearing tag associations: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO content_tags (content_id, tag_id) VALUES ($1, $2)`, contentID, tagID,
		); err != nil {
			return fmt.Errorf("inserting tag association: %w", err)
		}
	}
	return nil
}
