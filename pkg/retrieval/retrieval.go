// Package retrieval implements workspace-scoped vector similarity search
// over content embeddings: embed the query, rank non-archived content by
// cosine distance, and return the top-k with deterministic tie-breaking.
package retrieval

import "context"

// Result is a single retrieved content item, ranked by similarity to a
// query. Distance is in [0, 2] with 0 meaning identical, per the cosine
// distance operator used for ranking.
type Result struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// Embedder computes a dense embedding for a piece of text. Implemented by
// pkg/embedding.Client; declared here as a narrow interface so pkg/retrieval
// does not import pkg/embedding directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContentCounter reports how much non-archived content a workspace holds,
// used to choose between exact and approximate search.
type ContentCounter interface {
	CountNonArchived(ctx context.Context, workspaceID int64) (int, error)
}
