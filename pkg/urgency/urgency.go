// Package urgency implements urgency detection over incoming queries: a
// rule-based cosine-similarity matcher against configured UrgencyRule
// embeddings, and an LLM-based strict-JSON classifier. The strategy is named
// in each detection request; no strategy setting is stored per workspace.
package urgency

import (
	"time"

	"github.com/google/uuid"
)

// Strategy selects which detection method a Detect call uses.
type Strategy string

const (
	StrategyRuleBased Strategy = "rule_based"
	StrategyLLM       Strategy = "llm"
)

// Rule is a configured urgency phrase and its embedding.
type Rule struct {
	ID          int64
	WorkspaceID int64
	Text        string
	Embedding   []float32
	CreatedAt   time.Time
}

// RuleRequest is the body for creating an UrgencyRule.
type RuleRequest struct {
	Text string `json:"text" validate:"required"`
}

// RuleResponse is the client-facing shape of a Rule.
type RuleResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts a Rule to its client-facing shape.
func (r *Rule) ToResponse() RuleResponse {
	return RuleResponse{ID: r.ID, Text: r.Text, CreatedAt: r.CreatedAt}
}

// MatchedRule is a rule whose similarity to the query exceeded the
// configured threshold, in the result's similarity-descending order.
type MatchedRule struct {
	RuleID     int64   `json:"rule_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Trace is the persisted record of a single urgency check.
type Trace struct {
	ID            uuid.UUID
	WorkspaceID   int64
	QueryText     string
	IsUrgent      bool
	MatchedRules  []MatchedRule
	FailureReason string
	CreatedAt     time.Time
}

// Result is the outcome of a Detect call.
type Result struct {
	IsUrgent      bool          `json:"is_urgent"`
	MatchedRules  []MatchedRule `json:"matched_rules,omitempty"`
	Rationale     string        `json:"rationale,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}
