package content

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/askaq/aaq/internal/db"
)

// Embedder computes a dense embedding for a piece of text. Implemented by
// pkg/embedding.Client; declared here as a narrow interface so pkg/content
// does not import pkg/embedding directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service orchestrates content persistence and embedding computation.
type Service struct {
	store    *Store
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewService creates a content Service.
func NewService(dbtx db.DBTX, pool *pgxpool.Pool, embedder Embedder) *Service {
	return &Service{store: NewStore(dbtx), pool: pool, embedder: embedder}
}

// Get returns a single content item.
func (s *Service) Get(ctx context.Context, workspaceID, id int64) (Response, error) {
	row, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return Response{}, fmt.Errorf("getting content: %w", err)
	}
	return row.ToResponse(), nil
}

// List returns a page of content for a workspace.
func (s *Service) List(ctx context.Context, workspaceID int64, offset, limit int) ([]Response, int, error) {
	rows, total, err := s.store.List(ctx, workspaceID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Response, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToResponse())
	}
	return out, total, nil
}

// Create embeds the content text and persists the new item with its tag
// associations inside a single transaction.
func (s *Service) Create(ctx context.Context, workspaceID int64, req CreateRequest) (Response, error) {
	embedding, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		return Response{}, fmt.Errorf("embedding content: %w", err)
	}

	var out Row
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row, err := s.store.Create(ctx, tx, workspaceID, req.Title, req.Text, req.Metadata, req.TagIDs, embedding)
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return out.ToResponse(), nil
}

// Update patches a content item, re-embedding when the text changes.
func (s *Service) Update(ctx context.Context, workspaceID, id int64, req UpdateRequest) (Response, error) {
	var embedding []float32
	if req.Text != nil {
		var err error
		embedding, err = s.embedder.Embed(ctx, *req.Text)
		if err != nil {
			return Response{}, fmt.Errorf("re-embedding content: %w", err)
		}
	}

	var out Row
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row, err := s.store.Update(ctx, tx, workspaceID, id, req.Title, req.Text,
			req.Metadata, req.Metadata != nil, req.TagIDs, req.TagIDs != nil)
		if err != nil {
			return err
		}
		if embedding != nil {
			vec := pgvector.NewVector(embedding)
			if _, err := tx.Exec(ctx, `UPDATE content SET embedding = $2 WHERE id = $1`, id, vec); err != nil {
				return fmt.Errorf("storing re-embedding: %w", err)
			}
		}
		out = row
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("updating content: %w", err)
	}
	return out.ToResponse(), nil
}

// Archive marks a content item archived.
func (s *Service) Archive(ctx context.Context, workspaceID, id int64) error {
	return s.store.Archive(ctx, workspaceID, id)
}

// Delete removes a content item if it has never been referenced by a query
// trace; otherwise it falls back to archiving, per spec §4.3.
func (s *Service) Delete(ctx context.Context, workspaceID, id int64) error {
	referenced, err := s.store.HasTraceReference(ctx, id)
	if err != nil {
		return fmt.Errorf("checking trace references: %w", err)
	}
	if referenced {
		return s.store.Archive(ctx, workspaceID, id)
	}
	return s.store.Delete(ctx, workspaceID, id)
}

// Import bulk-creates content items parsed from a CSV upload, embedding and
// inserting each one; failures on individual rows are collected rather than
// aborting the whole batch.
func (s *Service) Import(ctx context.Context, workspaceID int64, rows []ImportRow) ImportResult {
	result := ImportResult{}
	for _, row := range rows {
		if row.Title == "" || row.Text == "" {
			result.Skipped++
			continue
		}

		embedding, err := s.embedder.Embed(ctx, row.Text)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%q: embedding failed: %v", row.Title, err))
			continue
		}

		err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			_, err := s.store.Create(ctx, tx, workspaceID, row.Title, row.Text, nil, nil, embedding)
			return err
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%q: %v", row.Title, err))
			continue
		}
		result.Created++
	}
	return result
}
