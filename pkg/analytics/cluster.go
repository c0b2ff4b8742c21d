package analytics

import (
	"context"
	"math"
)

// Embedder computes a query embedding for clustering, declared narrowly
// here (rather than importing pkg/embedding) to avoid a dependency cycle.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Labeler produces a short human-readable label for a cluster given a
// sample of its member query texts, typically backed by an LLM
// summarisation call.
type Labeler interface {
	Summarize(ctx context.Context, queries []string) (string, error)
}

type clusterResult struct {
	memberIDs []string
	centroid  []float32
	label     string
}

// greedyCluster groups candidates by cosine similarity against each
// cluster's running centroid, the simplest single-linkage approximation
// of an HDBSCAN-like contract: no Go ecosystem library in the retrieved
// pack implements density-based clustering, so this stays on the standard
// library. minSize drops clusters too small to be a meaningful topic; their
// members are left out of the result rather than forced into a bucket.
func greedyCluster(candidates []ClusterCandidate, threshold float64, minSize int) []clusterResult {
	var clusters []clusterResult

	for _, c := range candidates {
		best := -1
		bestSim := -1.0
		for i, cl := range clusters {
			sim := cosineSimilarity(c.Embedding, cl.centroid)
			if sim > bestSim {
				bestSim = sim
				best = i
			}
		}

		if best >= 0 && bestSim >= threshold {
			cl := &clusters[best]
			cl.memberIDs = append(cl.memberIDs, c.QueryID)
			cl.centroid = runningMean(cl.centroid, len(cl.memberIDs), c.Embedding)
			continue
		}

		clusters = append(clusters, clusterResult{
			memberIDs: []string{c.QueryID},
			centroid:  append([]float32(nil), c.Embedding...),
		})
	}

	out := make([]clusterResult, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.memberIDs) >= minSize {
			out = append(out, cl)
		}
	}
	return out
}

func runningMean(centroid []float32, count int, next []float32) []float32 {
	if len(centroid) != len(next) {
		return centroid
	}
	out := make([]float32, len(centroid))
	for i := range centroid {
		out[i] = centroid[i] + (next[i]-centroid[i])/float32(count)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
