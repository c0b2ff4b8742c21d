package search

import (
	"context"
	"fmt"
	"time"

	"github.com/askaq/aaq/pkg/chatsession"
	"github.com/askaq/aaq/pkg/feedback"
	"github.com/askaq/aaq/pkg/guardrail"
	"github.com/askaq/aaq/pkg/quota"
	"github.com/askaq/aaq/pkg/retrieval"
	"github.com/askaq/aaq/pkg/workspace"
)

const defaultRetrieveK = 5

// quotaChecker is satisfied by *quota.Limiter, narrowed here so Service is
// testable without Redis.
type quotaChecker interface {
	Check(ctx context.Context, workspaceID int64, dailyQuota *int, cost int) error
}

// workspaceLookup is satisfied by *workspace.Store.
type workspaceLookup interface {
	Get(ctx context.Context, id int64) (workspace.Row, error)
}

// retriever is satisfied by *retrieval.Service.
type retriever interface {
	Retrieve(ctx context.Context, workspaceID int64, queryText string, k int, floor float64) ([]retrieval.Result, error)
}

// pipelineRunner is satisfied by *guardrail.Pipeline.
type pipelineRunner interface {
	Run(ctx context.Context, req guardrail.Request) guardrail.Result
}

// traceRecorder is satisfied by *feedback.Service.
type traceRecorder interface {
	RecordQuery(ctx context.Context, params feedback.CreateTraceParams) (feedback.QueryTrace, error)
}

// historyManager is satisfied by *chatsession.Manager.
type historyManager interface {
	History(ctx context.Context, sessionID string) ([]chatsession.Turn, error)
	AppendTurn(ctx context.Context, sessionID string, turn chatsession.Turn) error
}

// Service answers POST /search by running the full query pipeline: quota,
// retrieval, guardrails, optional generation, and trace persistence.
type Service struct {
	quota           quotaChecker
	workspaces      workspaceLookup
	retrieval       retriever
	pipeline        pipelineRunner
	traces          traceRecorder
	chat            historyManager
	retrieveK       int
	similarityFloor float64
}

// NewService creates a search Service. chat may be nil, in which case
// session_id is ignored and no history is carried across turns.
func NewService(q *quota.Limiter, workspaces *workspace.Store, retrievalSvc *retrieval.Service, pipeline *guardrail.Pipeline, feedbackSvc *feedback.Service, chat *chatsession.Manager, retrieveK int, similarityFloor float64) *Service {
	if retrieveK <= 0 {
		retrieveK = defaultRetrieveK
	}
	svc := &Service{
		quota:           q,
		workspaces:      workspaces,
		retrieval:       retrievalSvc,
		pipeline:        pipeline,
		traces:          feedbackSvc,
		retrieveK:       retrieveK,
		similarityFloor: similarityFloor,
	}
	if chat != nil {
		svc.chat = chat
	}
	return svc
}

// Handle runs the full query pipeline for a single accepted request.
func (s *Service) Handle(ctx context.Context, workspaceID int64, req Request) (Response, error) {
	ws, err := s.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return Response{}, fmt.Errorf("loading workspace: %w", err)
	}
	if err := s.quota.Check(ctx, workspaceID, ws.APIDailyQuota, 1); err != nil {
		return Response{}, err
	}

	results, err := s.retrieval.Retrieve(ctx, workspaceID, req.QueryText, s.retrieveK, s.similarityFloor)
	if err != nil {
		return Response{}, fmt.Errorf("retrieving content: %w", err)
	}

	snippets := make([]guardrail.Snippet, len(results))
	contentIDs := make([]int64, len(results))
	for i, r := range results {
		snippets[i] = guardrail.Snippet{Index: i + 1, ID: r.ID, Title: r.Title, Text: r.Text}
		contentIDs[i] = r.ID
	}

	var history []string
	if s.chat != nil && req.SessionID != "" {
		turns, err := s.chat.History(ctx, req.SessionID)
		if err == nil {
			for _, t := range turns {
				history = append(history, t.Role+": "+t.Text)
			}
		}
	}

	outcome := s.pipeline.Run(ctx, guardrail.Request{
		WorkspaceID:         workspaceID,
		Query:               req.QueryText,
		Snippets:            snippets,
		History:             history,
		GenerateLLMResponse: req.GenerateLLMResponse,
	})

	metadata := req.QueryMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["guardrail_outcome"] = string(outcome.Outcome)
	if outcome.RejectReason != "" {
		metadata["guardrail_reject_reason"] = outcome.RejectReason
	}

	var llmResponsePtr *string
	if outcome.LLMResponse != "" {
		resp := outcome.LLMResponse
		llmResponsePtr = &resp
	}

	trace, err := s.traces.RecordQuery(ctx, feedback.CreateTraceParams{
		WorkspaceID:          workspaceID,
		QueryText:            req.QueryText,
		QueryMetadata:        metadata,
		GeneratedLLMResponse: llmResponsePtr,
		RetrievedContentIDs:  contentIDs,
	})
	if err != nil {
		return Response{}, fmt.Errorf("recording query trace: %w", err)
	}

	if s.chat != nil && req.SessionID != "" {
		now := time.Now().UTC()
		_ = s.chat.AppendTurn(ctx, req.SessionID, chatsession.Turn{Role: "user", Text: req.QueryText, At: now})
		if llmResponsePtr != nil {
			_ = s.chat.AppendTurn(ctx, req.SessionID, chatsession.Turn{Role: "assistant", Text: *llmResponsePtr, At: now})
		}
	}

	// A rejected query returns 200 with an empty result set rather than
	// leaking the retrieved snippets to the caller; an unanswerable query
	// returns the snippets without a generated answer.
	searchResults := map[string]ResultItem{}
	if outcome.Outcome == guardrail.OutcomeDelivered || outcome.Outcome == guardrail.OutcomeUnableToAnswer {
		searchResults = make(map[string]ResultItem, len(results))
		for i, r := range results {
			searchResults[fmt.Sprintf("%d", i)] = ResultItem{ID: r.ID, Title: r.Title, Text: r.Text, Distance: r.Distance}
		}
	}

	return Response{
		QueryID:           trace.ID.String(),
		SearchResults:     searchResults,
		LLMResponse:       llmResponsePtr,
		FeedbackSecretKey: trace.FeedbackSecretKey,
		Outcome:           outcome.Outcome,
		RejectReason:      outcome.RejectReason,
	}, nil
}
