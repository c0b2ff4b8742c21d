package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/askaq/aaq/internal/apperr"
)

type fakeCounter struct {
	count int
	err   error
}

func (f fakeCounter) CountNonArchived(ctx context.Context, workspaceID int64) (int, error) {
	return f.count, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeSearcher struct {
	results  []Result
	err      error
	gotK     int
	gotExact bool
}

func (f *fakeSearcher) Search(ctx context.Context, workspaceID int64, queryEmbedding []float32, k int, floor float64, exact bool) ([]Result, error) {
	f.gotK = k
	f.gotExact = exact
	return f.results, f.err
}

func newTestService(counter fakeCounter, embedder fakeEmbedder, store *fakeSearcher, exactThreshold int) *Service {
	if exactThreshold <= 0 {
		exactThreshold = defaultExactThreshold
	}
	return &Service{store: store, counter: counter, embedder: embedder, exactThreshold: exactThreshold}
}

func TestServiceRetrieveEmptyWorkspace(t *testing.T) {
	store := &fakeSearcher{}
	svc := newTestService(fakeCounter{count: 0}, fakeEmbedder{}, store, 0)

	results, err := svc.Retrieve(context.Background(), 1, "headache", 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestServiceRetrieveRejectsNonPositiveK(t *testing.T) {
	store := &fakeSearcher{}
	svc := newTestService(fakeCounter{count: 3}, fakeEmbedder{}, store, 0)

	_, err := svc.Retrieve(context.Background(), 1, "headache", 0, 0)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.ValidationError {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestServiceRetrieveChoosesExactBelowThreshold(t *testing.T) {
	store := &fakeSearcher{results: []Result{{ID: 1, Title: "a", Distance: 0.1}}}
	svc := newTestService(fakeCounter{count: 10}, fakeEmbedder{vec: []float32{0.1, 0.2}}, store, 512)

	if _, err := svc.Retrieve(context.Background(), 1, "headache", 5, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.gotExact {
		t.Errorf("gotExact = false, want true when content count is below threshold")
	}
	if store.gotK != 5 {
		t.Errorf("gotK = %d, want 5", store.gotK)
	}
}

func TestServiceRetrieveChoosesApproximateAboveThreshold(t *testing.T) {
	store := &fakeSearcher{}
	svc := newTestService(fakeCounter{count: 1000}, fakeEmbedder{vec: []float32{0.1}}, store, 512)

	if _, err := svc.Retrieve(context.Background(), 1, "headache", 5, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.gotExact {
		t.Errorf("gotExact = true, want false when content count exceeds threshold")
	}
}

func TestServiceRetrievePropagatesEmbeddingError(t *testing.T) {
	store := &fakeSearcher{}
	svc := newTestService(fakeCounter{count: 3}, fakeEmbedder{err: errors.New("backend down")}, store, 0)

	if _, err := svc.Retrieve(context.Background(), 1, "headache", 5, 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}
