// Package search wires the end-to-end query pipeline that answers
// POST /search: quota check, guardrails, retrieval, optional grounded
// generation, trace write.
package search

import "github.com/askaq/aaq/pkg/guardrail"

// Request is the body of POST /search.
type Request struct {
	QueryText           string         `json:"query_text" validate:"required"`
	GenerateLLMResponse bool           `json:"generate_llm_response"`
	QueryMetadata       map[string]any `json:"query_metadata,omitempty"`
	SessionID           string         `json:"session_id,omitempty"`
}

// ResultItem is one retrieved snippet as presented in the response, keyed
// by its stable string index per spec §6.
type ResultItem struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// Response is the body returned from POST /search.
type Response struct {
	QueryID           string                `json:"query_id"`
	SearchResults     map[string]ResultItem `json:"search_results"`
	LLMResponse       *string               `json:"llm_response,omitempty"`
	FeedbackSecretKey string                `json:"feedback_secret_key"`
	Outcome           guardrail.Outcome     `json:"outcome"`
	RejectReason      string                `json:"reject_reason,omitempty"`
}
