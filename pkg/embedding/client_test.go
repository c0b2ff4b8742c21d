package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbedCachesSecondCallWithoutHittingBackend(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(embedResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model", MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	vec1, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec1) != 3 {
		t.Fatalf("len(vec1) = %d, want 3", len(vec1))
	}

	vec2, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() second call error: %v", err)
	}
	if len(vec2) != 3 {
		t.Fatalf("len(vec2) = %d, want 3", len(vec2))
	}
	if calls != 1 {
		t.Errorf("backend calls = %d, want 1 (second Embed should hit cache)", calls)
	}
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{
			Data: []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{{Embedding: []float32{0.1, 0.2}, Index: 0}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model", Dimensions: 3, MaxRetries: 1})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("Embed() error = nil, want dimension mismatch error")
	}
}

func TestPingReturnsErrorWhenBackendUnreachable(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:0", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping() error = nil, want unreachable error")
	}
}

func TestPingSucceedsAgainstLiveBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
}
