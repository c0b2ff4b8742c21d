package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askaq/aaq/internal/apperr"
)

// defaultExactThreshold is the workspace content count below which search
// runs exact rather than approximate, per the store's determinism
// requirement at small scale.
const defaultExactThreshold = 512

// searcher is satisfied by *Store; declared so Service can be exercised in
// tests against a fake without a database.
type searcher interface {
	Search(ctx context.Context, workspaceID int64, queryEmbedding []float32, k int, floor float64, exact bool) ([]Result, error)
}

// Service answers retrieval queries: embed the query text, then rank
// non-archived content by cosine distance. The engine is stateless;
// concurrency is bounded upstream by the embedding client and the
// database pool, not by this package.
type Service struct {
	store          searcher
	counter        ContentCounter
	embedder       Embedder
	exactThreshold int
}

// NewService creates a retrieval Service. exactThreshold <= 0 falls back
// to defaultExactThreshold.
func NewService(pool *pgxpool.Pool, counter ContentCounter, embedder Embedder, exactThreshold int) *Service {
	if exactThreshold <= 0 {
		exactThreshold = defaultExactThreshold
	}
	return &Service{
		store:          NewStore(pool),
		counter:        counter,
		embedder:       embedder,
		exactThreshold: exactThreshold,
	}
}

// Retrieve embeds queryText and returns the top-k non-archived content rows
// in workspaceID ranked by cosine distance, nearest first. An empty
// workspace returns an empty slice rather than an error. k larger than the
// workspace's content count returns all of it. floor <= 0 disables the
// similarity floor.
func (s *Service) Retrieve(ctx context.Context, workspaceID int64, queryText string, k int, floor float64) ([]Result, error) {
	if k <= 0 {
		return nil, apperr.New(apperr.ValidationError, "invalid_k", "k must be positive")
	}

	count, err := s.counter.CountNonArchived(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("counting workspace content: %w", err)
	}
	if count == 0 {
		return []Result{}, nil
	}

	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	exact := count <= s.exactThreshold
	results, err := s.store.Search(ctx, workspaceID, embedding, k, floor, exact)
	if err != nil {
		return nil, fmt.Errorf("retrieving content: %w", err)
	}
	return results, nil
}
