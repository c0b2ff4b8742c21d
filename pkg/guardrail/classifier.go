package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClassifierConfig holds the settings for constructing an LLMClassifier.
type ClassifierConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// DefaultSafetyAction is the configured response to a flagged query
	// (block, redact, or pass_through per spec §4.6's SAFE stage); the
	// classifier decides whether a message is flagged, not what to do
	// about it.
	DefaultSafetyAction SafetyAction
}

// LLMClassifier is an OpenAI-compatible chat completion client providing
// the LANG_OK, SAFE, ON_TOPIC, and ALIGNED stage judgements as strict-JSON
// completions. No language-ID or moderation library appears anywhere in
// the retrieval pack, so each stage is expressed as a judge prompt against
// the same chat backend pkg/answer already talks to, per spec §4.6's
// "LLM-as-judge" allowance for ALIGNED.
type LLMClassifier struct {
	cfg  ClassifierConfig
	http *http.Client
}

// NewLLMClassifier constructs an LLMClassifier.
func NewLLMClassifier(cfg ClassifierConfig) *LLMClassifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultSafetyAction == "" {
		cfg.DefaultSafetyAction = ActionBlock
	}
	return &LLMClassifier{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type classifierMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type classifierRequest struct {
	Model       string              `json:"model"`
	Messages    []classifierMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type classifierResponse struct {
	Choices []struct {
		Message classifierMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *LLMClassifier) complete(ctx context.Context, system, user string) (string, error) {
	body := classifierRequest{
		Model: c.cfg.Model,
		Messages: []classifierMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	var result classifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding classifier response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("classifier backend: %s", msg)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("classifier backend returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

const languageSystemPrompt = `You identify the language a message is written in. ` +
	`Respond with strict JSON only, no other text, matching exactly: {"language": "<ISO 639-1 code>"}.`

// Detect satisfies LanguageDetector.
func (c *LLMClassifier) Detect(ctx context.Context, text string) (string, error) {
	raw, err := c.complete(ctx, languageSystemPrompt, text)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return "", fmt.Errorf("parsing language verdict: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(parsed.Language)), nil
}

const safetySystemPrompt = `You flag abuse, self-harm, or personally identifiable information in a ` +
	`user message. Respond with strict JSON only, no other text, matching exactly: ` +
	`{"flagged": <bool>, "redacted_text": "<text with any PII replaced by [REDACTED], or empty>"}.`

// Classify satisfies SafetyClassifier. The caller (Pipeline) applies the
// configured SafetyAction to the verdict; this method only reports what it
// found.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (SafetyVerdict, error) {
	raw, err := c.complete(ctx, safetySystemPrompt, text)
	if err != nil {
		return SafetyVerdict{}, err
	}
	var parsed struct {
		Flagged      bool   `json:"flagged"`
		RedactedText string `json:"redacted_text"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return SafetyVerdict{}, fmt.Errorf("parsing safety verdict: %w", err)
	}
	verdict := SafetyVerdict{Flagged: parsed.Flagged, RedactedText: parsed.RedactedText}
	if verdict.Flagged {
		verdict.Action = c.cfg.DefaultSafetyAction
	}
	return verdict, nil
}

const relevanceSystemPrompt = `You score, from 0.0 to 1.0, how well the numbered sources below could ` +
	`answer the user's question. 1.0 means a source directly answers it; 0.0 means none are relevant. ` +
	`Respond with strict JSON only, no other text, matching exactly: {"score": <float>}.`

// Score satisfies RelevanceClassifier.
func (c *LLMClassifier) Score(ctx context.Context, query string, snippets []Snippet) (float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", query)
	for _, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s: %s\n", s.Index, s.Title, s.Text)
	}

	raw, err := c.complete(ctx, relevanceSystemPrompt, b.String())
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return 0, fmt.Errorf("parsing relevance verdict: %w", err)
	}
	return parsed.Score, nil
}

const alignmentSystemPrompt = `You verify whether an answer is fully supported by the numbered sources ` +
	`it cites, with no claim beyond them. Respond with strict JSON only, no other text, matching exactly: ` +
	`{"grounded": <bool>}.`

// Verify satisfies AlignmentChecker.
func (c *LLMClassifier) Verify(ctx context.Context, query, answer string, snippets []Snippet) (bool, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nAnswer: %s\n\nSources:\n", query, answer)
	for _, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s: %s\n", s.Index, s.Title, s.Text)
	}

	raw, err := c.complete(ctx, alignmentSystemPrompt, b.String())
	if err != nil {
		return false, err
	}
	var parsed struct {
		Grounded bool `json:"grounded"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return false, fmt.Errorf("parsing alignment verdict: %w", err)
	}
	return parsed.Grounded, nil
}

// extractJSON trims chat-completion chatter around a JSON object, since
// some backends wrap strict-JSON answers in a markdown code fence despite
// instructions not to.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
