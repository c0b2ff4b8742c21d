package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchQuery ranks non-archived, embedded content in a workspace by cosine
// distance to the query vector, breaking ties on id ascending for
// determinism. floor is a similarity floor (1 - distance); a value <= 0
// disables filtering.
const searchQuery = `
	SELECT id, title, text, (embedding <=> $2) AS distance
	FROM content
	WHERE workspace_id = $1 AND NOT is_archived AND embedding IS NOT NULL
	  AND ($4 <= 0 OR (1 - (embedding <=> $2)) >= $4)
	ORDER BY embedding <=> $2 ASC, id ASC
	LIMIT $3`

// Store runs similarity search queries against the content table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a retrieval Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Search returns the top-k non-archived content rows in workspaceID ranked
// by cosine distance to queryEmbedding. When exact is true, the planner's
// index scan is disabled for the duration of the query so the ivfflat
// approximate index is bypassed in favour of a deterministic sequential
// scan, per the exact-vs-approximate threshold.
func (s *Store) Search(ctx context.Context, workspaceID int64, queryEmbedding []float32, k int, floor float64, exact bool) ([]Result, error) {
	vec := pgvector.NewVector(queryEmbedding)

	if !exact {
		rows, err := s.pool.Query(ctx, searchQuery, workspaceID, vec, k, floor)
		if err != nil {
			return nil, fmt.Errorf("searching content: %w", err)
		}
		defer rows.Close()
		return scanResults(rows)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning exact search transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SET LOCAL enable_indexscan = off"); err != nil {
		return nil, fmt.Errorf("disabling index scan: %w", err)
	}
	if _, err := tx.Exec(ctx, "SET LOCAL enable_bitmapscan = off"); err != nil {
		return nil, fmt.Errorf("disabling bitmap scan: %w", err)
	}

	rows, err := tx.Query(ctx, searchQuery, workspaceID, vec, k, floor)
	if err != nil {
		return nil, fmt.Errorf("searching content (exact): %w", err)
	}
	results, err := scanResults(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing exact search transaction: %w", err)
	}
	return results, nil
}

func scanResults(rows pgx.Rows) ([]Result, error) {
	out := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Text, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return out, nil
}
