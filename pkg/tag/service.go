package tag

import (
	"context"
	"fmt"

	"github.com/askaq/aaq/internal/db"
)

// Service wraps Store with workspace-scoped business logic.
type Service struct {
	store *Store
}

// NewService creates a tag Service.
func NewService(dbtx db.DBTX) *Service {
	return &Service{store: NewStore(dbtx)}
}

// List returns all tags in a workspace.
func (s *Service) List(ctx context.Context, workspaceID int64) ([]Response, error) {
	rows, err := s.store.List(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	out := make([]Response, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToResponse())
	}
	return out, nil
}

// Create creates a new tag.
func (s *Service) Create(ctx context.Context, workspaceID int64, req CreateRequest) (Response, error) {
	row, err := s.store.Create(ctx, workspaceID, req.Name)
	if err != nil {
		return Response{}, err
	}
	return row.ToResponse(), nil
}

// Update renames a tag.
func (s *Service) Update(ctx context.Context, workspaceID, id int64, req UpdateRequest) (Response, error) {
	row, err := s.store.Update(ctx, workspaceID, id, req.Name)
	if err != nil {
		return Response{}, fmt.Errorf("updating tag: %w", err)
	}
	return row.ToResponse(), nil
}

// Delete removes a tag.
func (s *Service) Delete(ctx context.Context, workspaceID, id int64) error {
	return s.store.Delete(ctx, workspaceID, id)
}
