package search

import (
	"context"
	"testing"

	"github.com/askaq/aaq/pkg/feedback"
	"github.com/askaq/aaq/pkg/guardrail"
	"github.com/askaq/aaq/pkg/retrieval"
	"github.com/askaq/aaq/pkg/workspace"
)

type fakeQuota struct {
	err error
}

func (f *fakeQuota) Check(ctx context.Context, workspaceID int64, dailyQuota *int, cost int) error {
	return f.err
}

type fakeWorkspaces struct {
	row workspace.Row
	err error
}

func (f *fakeWorkspaces) Get(ctx context.Context, id int64) (workspace.Row, error) {
	return f.row, f.err
}

type fakeRetriever struct {
	results []retrieval.Result
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, workspaceID int64, queryText string, k int, floor float64) ([]retrieval.Result, error) {
	return f.results, f.err
}

type fakePipeline struct {
	result guardrail.Result
}

func (f *fakePipeline) Run(ctx context.Context, req guardrail.Request) guardrail.Result {
	return f.result
}

type fakeTraces struct {
	trace feedback.QueryTrace
	err   error
}

func (f *fakeTraces) RecordQuery(ctx context.Context, params feedback.CreateTraceParams) (feedback.QueryTrace, error) {
	return f.trace, f.err
}

func newTestService(qc quotaChecker, ws workspaceLookup, rt retriever, pl pipelineRunner, tr traceRecorder) *Service {
	return &Service{
		quota:           qc,
		workspaces:      ws,
		retrieval:       rt,
		pipeline:        pl,
		traces:          tr,
		retrieveK:       defaultRetrieveK,
		similarityFloor: 0,
	}
}

func TestHandleReturnsDeliveredResponseWithSnippets(t *testing.T) {
	svc := newTestService(
		&fakeQuota{},
		&fakeWorkspaces{row: workspace.Row{ID: 1}},
		&fakeRetriever{results: []retrieval.Result{{ID: 10, Title: "doc", Text: "body", Distance: 0.1}}},
		&fakePipeline{result: guardrail.Result{Outcome: guardrail.OutcomeDelivered, LLMResponse: "answer [1]", CitedIndices: []int{1}}},
		&fakeTraces{trace: feedback.QueryTrace{FeedbackSecretKey: "secret"}},
	)

	resp, err := svc.Handle(context.Background(), 1, Request{QueryText: "hello", GenerateLLMResponse: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Outcome != guardrail.OutcomeDelivered {
		t.Errorf("Outcome = %v, want delivered", resp.Outcome)
	}
	if resp.LLMResponse == nil || *resp.LLMResponse != "answer [1]" {
		t.Errorf("LLMResponse = %v", resp.LLMResponse)
	}
	if len(resp.SearchResults) != 1 || resp.SearchResults["0"].ID != 10 {
		t.Errorf("SearchResults = %+v", resp.SearchResults)
	}
	if resp.FeedbackSecretKey != "secret" {
		t.Errorf("FeedbackSecretKey = %q, want secret", resp.FeedbackSecretKey)
	}
}

func TestHandlePropagatesQuotaError(t *testing.T) {
	wantErr := context.DeadlineExceeded
	svc := newTestService(
		&fakeQuota{err: wantErr},
		&fakeWorkspaces{row: workspace.Row{ID: 1}},
		&fakeRetriever{},
		&fakePipeline{},
		&fakeTraces{},
	)

	_, err := svc.Handle(context.Background(), 1, Request{QueryText: "hello"})
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestHandleAnnotatesRejectedOutcomeInsteadOfErroring(t *testing.T) {
	svc := newTestService(
		&fakeQuota{},
		&fakeWorkspaces{row: workspace.Row{ID: 1}},
		&fakeRetriever{},
		&fakePipeline{result: guardrail.Result{Outcome: guardrail.OutcomeRejected, RejectReason: "unsafe_content"}},
		&fakeTraces{trace: feedback.QueryTrace{FeedbackSecretKey: "secret"}},
	)

	resp, err := svc.Handle(context.Background(), 1, Request{QueryText: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Outcome != guardrail.OutcomeRejected || resp.RejectReason != "unsafe_content" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleEmptiesSearchResultsOnRejectedOutcome(t *testing.T) {
	svc := newTestService(
		&fakeQuota{},
		&fakeWorkspaces{row: workspace.Row{ID: 1}},
		&fakeRetriever{results: []retrieval.Result{{ID: 10, Title: "doc", Text: "body", Distance: 0.1}}},
		&fakePipeline{result: guardrail.Result{Outcome: guardrail.OutcomeRejected, RejectReason: "unsafe_content"}},
		&fakeTraces{trace: feedback.QueryTrace{FeedbackSecretKey: "secret"}},
	)

	resp, err := svc.Handle(context.Background(), 1, Request{QueryText: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SearchResults) != 0 {
		t.Errorf("SearchResults = %+v, want empty on a rejected outcome even though retrieval returned results", resp.SearchResults)
	}
}
