package urgency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LLMConfig holds the settings for constructing an LLMClient.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LLMClient requests a single strict-JSON urgency verdict from an
// OpenAI-compatible chat completion endpoint. Satisfies LLMClassifier.
type LLMClient struct {
	cfg  LLMConfig
	http *http.Client
}

// NewLLMClient constructs an LLMClient.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &LLMClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type llmChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmChatRequest struct {
	Model       string           `json:"model"`
	Messages    []llmChatMessage `json:"messages"`
	Temperature float64          `json:"temperature"`
}

type llmChatResponse struct {
	Choices []struct {
		Message llmChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const urgencySystemPrompt = `You classify whether a user query describes an urgent situation. ` +
	`Respond with strict JSON only, no other text, matching exactly: {"is_urgent": <bool>, "rationale": "<short reason>"}.`

// Classify asks the model to judge queryText and returns the raw response
// content for the caller to parse.
func (c *LLMClient) Classify(ctx context.Context, queryText string) (string, error) {
	body := llmChatRequest{
		Model: c.cfg.Model,
		Messages: []llmChatMessage{
			{Role: "system", Content: urgencySystemPrompt},
			{Role: "user", Content: queryText},
		},
		Temperature: 0,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling urgency classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating urgency classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("urgency classify request failed: %w", err)
	}
	defer resp.Body.Close()

	var result llmChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding urgency classify response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("urgency classify backend: %s", msg)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("urgency classify backend returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
