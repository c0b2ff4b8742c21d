package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/askaq/aaq/internal/apperr"
)

// citationPattern matches the "[n]" citation markers the system prompt
// instructs the model to emit.
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Config holds the settings for constructing a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client is an OpenAI-compatible chat completion client producing grounded,
// citation-bearing answers.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs an answer Client. Temperature defaults to 0.1 for
// reproducibility; MaxTokens defaults to 512 when unset.
func NewClient(cfg Config) *Client {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate builds a grounded system prompt from snippets and history, calls
// the chat completion endpoint, and extracts the cited snippet indices.
// Satisfies guardrail.Generator.
func (c *Client) Generate(ctx context.Context, query string, snippets []Snippet, history []string) (string, []int, error) {
	messages := buildMessages(query, snippets, history)

	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.UpstreamUnavailable, "generation_failed", "chat completion request failed", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", nil, fmt.Errorf("decoding chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", nil, apperr.New(apperr.UpstreamUnavailable, "generation_failed", msg)
	}
	if len(result.Choices) == 0 {
		return "", nil, apperr.New(apperr.UpstreamUnavailable, "generation_failed", "chat backend returned no choices")
	}

	text := result.Choices[0].Message.Content
	cited := extractCitations(text, len(snippets))
	return text, cited, nil
}

// extractCitations finds every "[n]" marker in text and returns the
// distinct, sorted indices that fall within [1, maxIndex]; out-of-range
// markers are dropped rather than surfaced, since the prompt guarantees
// the model only sees valid indices.
func extractCitations(text string, maxIndex int) []int {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > maxIndex {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func buildMessages(query string, snippets []Snippet, history []string) []chatMessage {
	messages := []chatMessage{{Role: "system", Content: systemPrompt(snippets)}}
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: "user", Content: turn})
	}
	messages = append(messages, chatMessage{Role: "user", Content: query})
	return messages
}

func systemPrompt(snippets []Snippet) string {
	prompt := "You are a question-answering assistant. Answer only using the numbered sources below. " +
		"Cite every claim with its source number in square brackets, e.g. [1]. " +
		"Do not state anything that is not supported by a source.\n\nSources:\n"
	for _, s := range snippets {
		prompt += fmt.Sprintf("[%d] %s: %s\n", s.Index, s.Title, s.Text)
	}
	return prompt
}
