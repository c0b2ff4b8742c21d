package urgency

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Classify(ctx context.Context, queryText string) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return "", errors.New("no more fake responses")
	}
	return f.responses[i], nil
}

func newTestService(rules *RuleStore, traces *TraceStore, embedder Embedder, llm LLMClassifier) *Service {
	return &Service{rules: rules, traces: traces, embedder: embedder, llm: llm, ruleThreshold: defaultRuleThreshold}
}

func TestDetectLLMParsesWellFormedResponse(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"is_urgent": true, "rationale": "mentions bleeding"}`}}
	svc := newTestService(nil, nil, fakeEmbedder{}, llm)

	result, err := svc.detectLLM(context.Background(), "my baby is bleeding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsUrgent {
		t.Errorf("IsUrgent = false, want true")
	}
	if result.Rationale != "mentions bleeding" {
		t.Errorf("Rationale = %q", result.Rationale)
	}
	if llm.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry needed)", llm.calls)
	}
}

func TestDetectLLMRetriesOnceThenFallsBackOnMalformedJSON(t *testing.T) {
	llm := &fakeLLM{responses: []string{"not json", "still not json"}}
	svc := newTestService(nil, nil, fakeEmbedder{}, llm)

	result, err := svc.detectLLM(context.Background(), "is this urgent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsUrgent {
		t.Errorf("IsUrgent = true, want false on malformed response")
	}
	if result.FailureReason != "malformed_response" {
		t.Errorf("FailureReason = %q, want malformed_response", result.FailureReason)
	}
	if llm.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", llm.calls)
	}
}

func TestDetectLLMRecoversOnRetry(t *testing.T) {
	llm := &fakeLLM{responses: []string{"not json", `{"is_urgent": false}`}}
	svc := newTestService(nil, nil, fakeEmbedder{}, llm)

	result, err := svc.detectLLM(context.Background(), "is this urgent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FailureReason != "" {
		t.Errorf("FailureReason = %q, want empty after successful retry", result.FailureReason)
	}
	if result.IsUrgent {
		t.Errorf("IsUrgent = true, want false")
	}
}
