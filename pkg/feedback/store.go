package feedback

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/askaq/aaq/internal/db"
)

// TraceStore persists and reads immutable query_traces rows.
type TraceStore struct {
	dbtx db.DBTX
}

// NewTraceStore creates a feedback TraceStore.
func NewTraceStore(dbtx db.DBTX) *TraceStore {
	return &TraceStore{dbtx: dbtx}
}

// Create inserts a new QueryTrace with a freshly generated
// feedback_secret_key.
func (s *TraceStore) Create(ctx context.Context, params CreateTraceParams) (QueryTrace, error) {
	secretKey, err := randomSecretKey()
	if err != nil {
		return QueryTrace{}, fmt.Errorf("generating feedback secret key: %w", err)
	}

	metaJSON, err := json.Marshal(params.QueryMetadata)
	if err != nil {
		return QueryTrace{}, fmt.Errorf("encoding query metadata: %w", err)
	}
	contentIDsJSON, err := marshalContentIDs(params.RetrievedContentIDs)
	if err != nil {
		return QueryTrace{}, fmt.Errorf("encoding retrieved content ids: %w", err)
	}

	trace := QueryTrace{
		ID:                   uuid.New(),
		WorkspaceID:          params.WorkspaceID,
		QueryText:            params.QueryText,
		QueryMetadata:        params.QueryMetadata,
		GeneratedLLMResponse: params.GeneratedLLMResponse,
		RetrievedContentIDs:  params.RetrievedContentIDs,
		FeedbackSecretKey:    secretKey,
	}

	err = s.dbtx.QueryRow(ctx,
		`INSERT INTO query_traces (id, workspace_id, query_text, query_metadata, generated_llm_response, retrieved_content_ids, feedback_secret_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		trace.ID, trace.WorkspaceID, trace.QueryText, metaJSON, trace.GeneratedLLMResponse, contentIDsJSON, trace.FeedbackSecretKey,
	).Scan(&trace.CreatedAt)
	if err != nil {
		return QueryTrace{}, fmt.Errorf("recording query trace: %w", err)
	}
	return trace, nil
}

// Get returns a single query trace scoped to a workspace.
func (s *TraceStore) Get(ctx context.Context, workspaceID int64, id uuid.UUID) (QueryTrace, error) {
	var t QueryTrace
	var metaJSON, contentIDsJSON []byte
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, workspace_id, query_text, query_metadata, generated_llm_response, retrieved_content_ids, feedback_secret_key, created_at
		 FROM query_traces WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	).Scan(&t.ID, &t.WorkspaceID, &t.QueryText, &metaJSON, &t.GeneratedLLMResponse, &contentIDsJSON, &t.FeedbackSecretKey, &t.CreatedAt)
	if err != nil {
		return QueryTrace{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &t.QueryMetadata); err != nil {
			return QueryTrace{}, fmt.Errorf("decoding query metadata: %w", err)
		}
	}
	if len(contentIDsJSON) > 0 {
		if err := json.Unmarshal(contentIDsJSON, &t.RetrievedContentIDs); err != nil {
			return QueryTrace{}, fmt.Errorf("decoding retrieved content ids: %w", err)
		}
	}
	return t, nil
}

// GetByIDUnscoped returns a trace by id without a workspace filter, used to
// authenticate a feedback request before the caller's workspace is known.
func (s *TraceStore) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (QueryTrace, error) {
	var t QueryTrace
	var metaJSON, contentIDsJSON []byte
	err := s.dbtx.QueryRow(ctx,
		`SELECT id, workspace_id, query_text, query_metadata, generated_llm_response, retrieved_content_ids, feedback_secret_key, created_at
		 FROM query_traces WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.WorkspaceID, &t.QueryText, &metaJSON, &t.GeneratedLLMResponse, &contentIDsJSON, &t.FeedbackSecretKey, &t.CreatedAt)
	if err != nil {
		return QueryTrace{}, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &t.QueryMetadata); err != nil {
			return QueryTrace{}, fmt.Errorf("decoding query metadata: %w", err)
		}
	}
	if len(contentIDsJSON) > 0 {
		if err := json.Unmarshal(contentIDsJSON, &t.RetrievedContentIDs); err != nil {
			return QueryTrace{}, fmt.Errorf("decoding retrieved content ids: %w", err)
		}
	}
	return t, nil
}

// ResponseFeedbackStore records feedback on a query trace as a whole.
type ResponseFeedbackStore struct {
	dbtx db.DBTX
}

// NewResponseFeedbackStore creates a ResponseFeedbackStore.
func NewResponseFeedbackStore(dbtx db.DBTX) *ResponseFeedbackStore {
	return &ResponseFeedbackStore{dbtx: dbtx}
}

// Record inserts a feedback row, a no-op when the same (query_id,
// sentiment) pair already exists per the response_feedback_once unique
// index.
func (s *ResponseFeedbackStore) Record(ctx context.Context, queryID uuid.UUID, sentiment Sentiment) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO response_feedback (query_id, sentiment) VALUES ($1, $2)
		 ON CONFLICT (query_id, sentiment) DO NOTHING`,
		queryID, sentiment,
	)
	return err
}

// ContentFeedbackStore records per-content feedback votes.
type ContentFeedbackStore struct {
	dbtx db.DBTX
}

// NewContentFeedbackStore creates a ContentFeedbackStore.
func NewContentFeedbackStore(dbtx db.DBTX) *ContentFeedbackStore {
	return &ContentFeedbackStore{dbtx: dbtx}
}

// Create inserts a content feedback row inside tx; each vote is recorded
// individually (no deduplication, unlike response feedback), since every
// vote also increments the content item's running counter.
func (s *ContentFeedbackStore) Create(ctx context.Context, tx pgx.Tx, contentID int64, queryID *uuid.UUID, sentiment Sentiment) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO content_feedback (content_id, query_id, sentiment) VALUES ($1, $2, $3)`,
		contentID, queryID, sentiment,
	)
	return err
}

// randomSecretKey returns a cryptographically random capability token for
// the feedback_secret_key column, in the same unpadded base32 alphabet as
// API key generation.
func randomSecretKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)), nil
}
