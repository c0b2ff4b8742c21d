package analytics

import "testing"

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 0, 0}
	if sim := cosineSimilarity(v, v); sim < 0.999 {
		t.Errorf("cosineSimilarity(v, v) = %f, want ~1", sim)
	}
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if sim := cosineSimilarity(a, b); sim > 0.001 || sim < -0.001 {
		t.Errorf("cosineSimilarity(a, b) = %f, want ~0", sim)
	}
}

func TestGreedyClusterGroupsSimilarEmbeddings(t *testing.T) {
	candidates := []ClusterCandidate{
		{QueryID: "1", Embedding: []float32{1, 0, 0}},
		{QueryID: "2", Embedding: []float32{0.99, 0.01, 0}},
		{QueryID: "3", Embedding: []float32{0, 1, 0}},
		{QueryID: "4", Embedding: []float32{0, 0.99, 0.01}},
	}

	results := greedyCluster(candidates, 0.9, 2)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, cl := range results {
		if len(cl.memberIDs) != 2 {
			t.Errorf("cluster members = %v, want 2", cl.memberIDs)
		}
	}
}

func TestGreedyClusterDropsUndersizedClusters(t *testing.T) {
	candidates := []ClusterCandidate{
		{QueryID: "1", Embedding: []float32{1, 0}},
		{QueryID: "2", Embedding: []float32{0, 1}},
	}

	results := greedyCluster(candidates, 0.9, 2)
	if len(results) != 0 {
		t.Errorf("results = %v, want no clusters (each singleton below minSize)", results)
	}
}
