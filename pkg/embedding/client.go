// Package embedding implements the embedding client: an OpenAI-compatible
// HTTP backend with an in-memory LRU cache, bounded retries, and a global
// concurrency limit, fronting both content ingestion and query-time
// retrieval.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/askaq/aaq/internal/apperr"
)

// Config holds the settings for constructing a Client.
type Config struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the Bearer token used for authentication.
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimensions is the expected output vector length; Embed returns an
	// error if the backend returns a vector of a different length.
	Dimensions int
	// CacheSize bounds the number of distinct (model, text) pairs cached.
	CacheSize int
	// MaxRetries bounds the number of retry attempts on transient failures.
	MaxRetries int
	// Concurrency bounds the number of in-flight HTTP requests to the
	// embedding backend across the whole process.
	Concurrency int64
	// Timeout bounds a single HTTP request to the backend.
	Timeout time.Duration
}

// Client is an OpenAI-compatible embeddings HTTP client with caching,
// retry, and concurrency control.
type Client struct {
	cfg   Config
	http  *http.Client
	cache *lru.Cache[string, []float32]
	sem   *semaphore.Weighted
}

// NewClient constructs an embedding Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
		sem:   semaphore.NewWeighted(cfg.Concurrency),
	}, nil
}

// Ping checks that the embedding backend is reachable, for the readiness
// endpoint. It issues a lightweight GET against the base URL rather than
// spending a real embedding call.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("embedding backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

type embedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the dense embedding for text, serving from cache when
// available. Concurrent HTTP calls to the backend are capped at
// cfg.Concurrency; transient failures are retried with exponential backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.cfg.Model, text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring embedding concurrency slot: %w", err)
	}
	defer c.sem.Release(1)

	vec, err := c.embedWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}

	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		return nil, fmt.Errorf("embedding: expected dimension %d, got %d", c.cfg.Dimensions, len(vec))
	}

	c.cache.Add(key, vec)
	return vec, nil
}

func (c *Client) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	return backoff.Retry(ctx,
		func() ([]float32, error) {
			vec, err := c.embedOnce(ctx, text)
			if err != nil && isTransient(err) {
				return nil, err
			}
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return vec, nil
		},
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body := embedRequest{Input: []string{text}, Model: c.cfg.Model}
	if c.cfg.Dimensions > 0 {
		body.Dimensions = c.cfg.Dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transientError{msg: fmt.Sprintf("embedding request failed: %v", err)}
	}
	defer resp.Body.Close()

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, transientError{msg: msg}
		}
		return nil, apperr.New(apperr.UpstreamRejected, "embedding_rejected", msg)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding backend returned no data")
	}
	return result.Data[0].Embedding, nil
}

type transientError struct{ msg string }

func (e transientError) Error() string { return e.msg }

func isTransient(err error) bool {
	_, ok := err.(transientError)
	return ok
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
