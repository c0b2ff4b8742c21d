package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/auth"
	aaqdb "github.com/askaq/aaq/internal/db"
	"github.com/askaq/aaq/pkg/content"
)

// Service wires query trace persistence and capability-authorized
// feedback submission.
type Service struct {
	pool      *pgxpool.Pool
	traces    *TraceStore
	responses *ResponseFeedbackStore
	content   *ContentFeedbackStore
}

// NewService creates a feedback Service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		pool:      pool,
		traces:    NewTraceStore(pool),
		responses: NewResponseFeedbackStore(pool),
		content:   NewContentFeedbackStore(pool),
	}
}

// RecordQuery persists an immutable trace of an accepted search query,
// minting a fresh feedback_secret_key for it.
func (s *Service) RecordQuery(ctx context.Context, params CreateTraceParams) (QueryTrace, error) {
	return s.traces.Create(ctx, params)
}

// authenticate loads the query trace a feedback request refers to and
// checks the caller is authorized to leave feedback on it: either the
// request carries the trace's feedback_secret_key, or the request context
// already carries an authenticated API key identity.
func (s *Service) authenticate(ctx context.Context, r *http.Request, queryID uuid.UUID, suppliedKey string) (QueryTrace, error) {
	trace, err := s.traces.GetByIDUnscoped(ctx, queryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueryTrace{}, apperr.New(apperr.NotFound, "query_trace_not_found", "query trace not found")
		}
		return QueryTrace{}, fmt.Errorf("loading query trace: %w", err)
	}

	keyMatches := suppliedKey != "" && suppliedKey == trace.FeedbackSecretKey
	if !auth.AuthenticateFeedback(r, keyMatches) {
		return QueryTrace{}, apperr.New(apperr.Forbidden, "feedback_unauthorized", "feedback secret key does not match")
	}
	return trace, nil
}

// RecordResponseFeedback records a sentiment vote on a query's generated
// response. Repeating the same (query_id, sentiment) pair is a no-op, so
// the call is safe to retry.
func (s *Service) RecordResponseFeedback(ctx context.Context, r *http.Request, req ResponseFeedbackRequest) error {
	if _, err := s.authenticate(ctx, r, req.QueryID, req.FeedbackSecretKey); err != nil {
		return err
	}
	if err := s.responses.Record(ctx, req.QueryID, req.Sentiment); err != nil {
		return fmt.Errorf("recording response feedback: %w", err)
	}
	return nil
}

// RecordContentFeedback records a sentiment vote on a specific piece of
// retrieved content, atomically incrementing that content item's running
// vote counter in the same transaction as the feedback row insert.
func (s *Service) RecordContentFeedback(ctx context.Context, r *http.Request, req ContentFeedbackRequest) error {
	if req.QueryID != nil {
		if _, err := s.authenticate(ctx, r, *req.QueryID, req.FeedbackSecretKey); err != nil {
			return err
		}
	} else if id := auth.FromContext(r.Context()); id == nil || id.Method != auth.MethodAPIKey {
		return apperr.New(apperr.Forbidden, "feedback_unauthorized", "content feedback requires a query id and matching secret key, or an authenticated API key")
	}

	return aaqdb.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.content.Create(ctx, tx, req.ContentID, req.QueryID, req.Sentiment); err != nil {
			return fmt.Errorf("recording content feedback: %w", err)
		}
		contentStore := content.NewStore(tx)
		if err := contentStore.RecordVote(ctx, req.ContentID, req.Sentiment == SentimentPositive); err != nil {
			return fmt.Errorf("updating content vote counter: %w", err)
		}
		return nil
	})
}
