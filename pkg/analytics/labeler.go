package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askaq/aaq/internal/apperr"
)

// LabelerConfig configures the LLM-backed cluster labeler.
type LabelerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LLMLabeler summarises a cluster's sample queries into a short label via
// an OpenAI-compatible chat completion call, following the same request
// shape as the answer-generation and urgency-detection clients.
type LLMLabeler struct {
	cfg  LabelerConfig
	http *http.Client
}

// NewLLMLabeler creates an LLMLabeler.
func NewLLMLabeler(cfg LabelerConfig) *LLMLabeler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LLMLabeler{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type labelChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type labelChatRequest struct {
	Model       string             `json:"model"`
	Messages    []labelChatMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type labelChatResponse struct {
	Choices []struct {
		Message labelChatMessage `json:"message"`
	} `json:"choices"`
}

const labelSystemPrompt = "You name clusters of similar user questions. Given a handful of example questions, respond with only a short (3-6 word) topic label, no punctuation beyond spaces and hyphens."

// Summarize satisfies the Labeler interface.
func (l *LLMLabeler) Summarize(ctx context.Context, queries []string) (string, error) {
	if len(queries) == 0 {
		return "", apperr.New(apperr.ValidationError, "empty_cluster", "cannot label an empty cluster")
	}

	body := labelChatRequest{
		Model: l.cfg.Model,
		Messages: []labelChatMessage{
			{Role: "system", Content: labelSystemPrompt},
			{Role: "user", Content: "Questions:\n- " + strings.Join(queries, "\n- ")},
		},
		Temperature: 0.2,
		MaxTokens:   20,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding label request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building label request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, "labeler_unreachable", "cluster labeling backend unreachable", err)
	}
	defer resp.Body.Close()

	var out labelChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding label response: %w", err)
	}
	if resp.StatusCode >= 400 || len(out.Choices) == 0 {
		return "", apperr.New(apperr.UpstreamRejected, "labeler_rejected", "cluster labeling backend returned no content")
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
