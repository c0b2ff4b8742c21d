package urgency

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/askaq/aaq/internal/apperr"
	"github.com/askaq/aaq/internal/db"
)

// defaultRuleThreshold is the minimum cosine similarity a rule must clear
// to count as matched, absent an explicit override.
const defaultRuleThreshold = 0.75

// Embedder computes a dense embedding for a piece of text. Implemented by
// pkg/embedding.Client; declared here as a narrow interface so pkg/urgency
// does not import pkg/embedding directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMClassifier requests a single urgency judgment from an LLM and returns
// its raw JSON response body for this package to parse, so retry-on-
// malformed-JSON is handled at the orchestration layer rather than hidden
// inside the client.
type LLMClassifier interface {
	Classify(ctx context.Context, queryText string) (rawJSON string, err error)
}

type llmVerdict struct {
	IsUrgent  bool   `json:"is_urgent"`
	Rationale string `json:"rationale,omitempty"`
}

// Service detects query urgency with the strategy named in each request.
type Service struct {
	rules         *RuleStore
	traces        *TraceStore
	embedder      Embedder
	llm           LLMClassifier
	ruleThreshold float64
}

// NewService creates an urgency Service. ruleThreshold <= 0 falls back to
// defaultRuleThreshold.
func NewService(dbtx db.DBTX, embedder Embedder, llm LLMClassifier, ruleThreshold float64) *Service {
	if ruleThreshold <= 0 {
		ruleThreshold = defaultRuleThreshold
	}
	return &Service{
		rules:         NewRuleStore(dbtx),
		traces:        NewTraceStore(dbtx),
		embedder:      embedder,
		llm:           llm,
		ruleThreshold: ruleThreshold,
	}
}

// ListRules returns a workspace's configured urgency rules.
func (s *Service) ListRules(ctx context.Context, workspaceID int64) ([]RuleResponse, error) {
	rows, err := s.rules.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]RuleResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToResponse())
	}
	return out, nil
}

// CreateRule embeds and persists a new urgency rule.
func (s *Service) CreateRule(ctx context.Context, workspaceID int64, req RuleRequest) (RuleResponse, error) {
	embedding, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		return RuleResponse{}, fmt.Errorf("embedding urgency rule: %w", err)
	}
	rule, err := s.rules.Create(ctx, workspaceID, req.Text, embedding)
	if err != nil {
		return RuleResponse{}, err
	}
	return rule.ToResponse(), nil
}

// DeleteRule removes an urgency rule from a workspace.
func (s *Service) DeleteRule(ctx context.Context, workspaceID, id int64) error {
	return s.rules.Delete(ctx, workspaceID, id)
}

// Detect runs urgency detection for queryText using strategy, persists the
// resulting trace, and returns the outcome.
func (s *Service) Detect(ctx context.Context, workspaceID int64, strategy Strategy, queryText string) (Result, error) {
	var result Result
	var err error

	switch strategy {
	case StrategyRuleBased, "":
		result, err = s.detectRuleBased(ctx, workspaceID, queryText)
	case StrategyLLM:
		result, err = s.detectLLM(ctx, queryText)
	default:
		return Result{}, apperr.New(apperr.ValidationError, "invalid_strategy", "unknown urgency detection strategy")
	}
	if err != nil {
		return Result{}, err
	}

	if _, traceErr := s.traces.Create(ctx, workspaceID, queryText, result); traceErr != nil {
		return Result{}, fmt.Errorf("recording urgency trace: %w", traceErr)
	}
	return result, nil
}

func (s *Service) detectRuleBased(ctx context.Context, workspaceID int64, queryText string) (Result, error) {
	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return Result{}, fmt.Errorf("embedding query for urgency check: %w", err)
	}

	matched, err := s.rules.Match(ctx, workspaceID, embedding, s.ruleThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("matching urgency rules: %w", err)
	}

	return Result{IsUrgent: len(matched) > 0, MatchedRules: matched}, nil
}

func (s *Service) detectLLM(ctx context.Context, queryText string) (Result, error) {
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.llm.Classify(ctx, queryText)
		if err != nil {
			continue
		}
		var verdict llmVerdict
		if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
			continue
		}
		return Result{IsUrgent: verdict.IsUrgent, Rationale: verdict.Rationale}, nil
	}
	return Result{IsUrgent: false, FailureReason: "malformed_response"}, nil
}
