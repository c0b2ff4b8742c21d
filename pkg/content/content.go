// Package content implements the Content & Tag Store: workspace-scoped
// question/answer content items with free-form metadata, tag associations,
// dense embeddings, vote counters, and archive-not-delete lifecycle.
package content

import "time"

// CreateRequest is the JSON body for POST /content/.
type CreateRequest struct {
	Title    string         `json:"title" validate:"required,min=1,max=150"`
	Text     string         `json:"text" validate:"required,min=1,max=2000"`
	Metadata map[string]any `json:"metadata"`
	TagIDs   []int64        `json:"tag_ids"`
}

// UpdateRequest is the JSON body for PUT /content/{id}. Fields not present
// in the request leave the existing value unchanged; nil pointers mean "no
// change", not "clear".
type UpdateRequest struct {
	Title    *string        `json:"title" validate:"omitempty,min=1,max=150"`
	Text     *string        `json:"text" validate:"omitempty,min=1,max=2000"`
	Metadata map[string]any `json:"metadata"`
	TagIDs   []int64        `json:"tag_ids"`
}

// Response is the JSON response describing a content item.
type Response struct {
	ID            int64          `json:"id"`
	WorkspaceID   int64          `json:"workspace_id"`
	Title         string         `json:"title"`
	Text          string         `json:"text"`
	Metadata      map[string]any `json:"metadata"`
	TagIDs        []int64        `json:"tag_ids"`
	IsArchived    bool           `json:"is_archived"`
	PositiveVotes int            `json:"positive_votes"`
	NegativeVotes int            `json:"negative_votes"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Row represents a row from the content table, joined with its tag IDs.
type Row struct {
	ID            int64
	WorkspaceID   int64
	Title         string
	Text          string
	Metadata      map[string]any
	TagIDs        []int64
	IsArchived    bool
	PositiveVotes int
	NegativeVotes int
	Embedding     []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToResponse converts a Row to a Response DTO (embedding vectors are never
// serialized to clients).
func (r *Row) ToResponse() Response {
	tagIDs := r.TagIDs
	if tagIDs == nil {
		tagIDs = []int64{}
	}
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Response{
		ID:            r.ID,
		WorkspaceID:   r.WorkspaceID,
		Title:         r.Title,
		Text:          r.Text,
		Metadata:      metadata,
		TagIDs:        tagIDs,
		IsArchived:    r.IsArchived,
		PositiveVotes: r.PositiveVotes,
		NegativeVotes: r.NegativeVotes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// ImportRow is a single parsed row from a bulk CSV import, prior to
// embedding and persistence.
type ImportRow struct {
	Title string
	Text  string
}

// ImportResult summarises the outcome of a bulk import.
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
