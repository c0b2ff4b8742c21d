package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askaq/aaq/internal/apperr"
)

const (
	defaultClusterSimilarity = 0.82
	defaultClusterMinSize    = 3
	defaultClusterWindow     = 7 * 24 * time.Hour
	clusterCandidateLimit    = 2000
	labelSampleSize          = 8
)

// Service answers dashboard queries and runs the topic-clustering job.
type Service struct {
	store             *Store
	jobs              *jobStore
	clusters          *clusterStore
	embedder          Embedder
	labeler           Labeler
	clusterSimilarity float64
	clusterMinSize    int
	clusterWindow     time.Duration
}

// NewService creates an analytics Service. Zero-value thresholds fall back
// to the spec's clustering defaults.
func NewService(pool *pgxpool.Pool, embedder Embedder, labeler Labeler, clusterSimilarity float64, clusterMinSize int, clusterWindow time.Duration) *Service {
	if clusterSimilarity <= 0 {
		clusterSimilarity = defaultClusterSimilarity
	}
	if clusterMinSize <= 0 {
		clusterMinSize = defaultClusterMinSize
	}
	if clusterWindow <= 0 {
		clusterWindow = defaultClusterWindow
	}
	return &Service{
		store:             NewStore(pool),
		jobs:              newJobStore(pool),
		clusters:          newClusterStore(pool),
		embedder:          embedder,
		labeler:           labeler,
		clusterSimilarity: clusterSimilarity,
		clusterMinSize:    clusterMinSize,
		clusterWindow:     clusterWindow,
	}
}

// resolveWindow fills in a [start, end) window, defaulting end to now and
// start to one period-length before end when unset (one day for the day and
// custom periods). It does not check the span against the frequency's
// maximum lookback.
func resolveWindow(period Period, start, end *time.Time) (time.Time, time.Time) {
	e := time.Now().UTC()
	if end != nil {
		e = *end
	}
	s := e.Add(-24 * time.Hour)
	if start != nil {
		s = *start
	} else {
		switch period {
		case PeriodWeek:
			s = e.AddDate(0, 0, -7)
		case PeriodMonth:
			s = e.AddDate(0, -1, 0)
		case PeriodYear:
			s = e.AddDate(-1, 0, 0)
		}
	}
	return s, e
}

// Overview returns the stats-card summary for GET /dashboard/overview.
func (s *Service) Overview(ctx context.Context, workspaceID int64, period Period, start, end *time.Time) (StatsCard, error) {
	from, to := resolveWindow(period, start, end)
	return s.store.StatsCard(ctx, workspaceID, from, to)
}

// Performance returns the frequency-bucketed time series and top-content
// ranking for GET /dashboard/performance.
func (s *Service) Performance(ctx context.Context, workspaceID int64, period Period, start, end *time.Time, freq Frequency, topN int) ([]TimeSeriesPoint, []TopContentItem, error) {
	from, to := resolveWindow(period, start, end)

	if freq == "" {
		freq = FrequencyDay
	}
	limit, ok := maxLookback[freq]
	if !ok {
		return nil, nil, apperr.New(apperr.ValidationError, "invalid_frequency", "unknown frequency")
	}
	if to.Sub(from) > limit {
		return nil, nil, apperr.New(apperr.ValidationError, "frequency_span_too_large",
			fmt.Sprintf("frequency %q supports at most %s of history", freq, limit))
	}

	series, err := s.store.TimeSeries(ctx, workspaceID, from, to, freq)
	if err != nil {
		return nil, nil, err
	}
	if topN <= 0 {
		topN = 10
	}
	top, err := s.store.TopContent(ctx, workspaceID, from, to, topN)
	if err != nil {
		return nil, nil, err
	}
	return series, top, nil
}

// Insights returns the clustering job's current status plus its most
// recent completed clusters, for GET /dashboard/insights.
func (s *Service) Insights(ctx context.Context, workspaceID int64) (Insights, error) {
	job, err := s.jobs.get(ctx, workspaceID)
	if err != nil {
		return Insights{}, err
	}
	clusters, err := s.clusters.list(ctx, workspaceID)
	if err != nil {
		return Insights{}, err
	}
	return Insights{Job: job, Clusters: clusters}, nil
}

// RefreshInsights starts a topic-clustering job for workspaceID, returning
// immediately if one is already in progress: concurrent refresh requests
// for the same workspace coalesce onto that single job.
func (s *Service) RefreshInsights(ctx context.Context, workspaceID int64) (ClusterJob, error) {
	started, err := s.jobs.tryStart(ctx, workspaceID)
	if err != nil {
		return ClusterJob{}, err
	}
	if !started {
		return s.jobs.get(ctx, workspaceID)
	}

	go s.runClusterJob(context.WithoutCancel(ctx), workspaceID)

	return ClusterJob{WorkspaceID: workspaceID, Status: ClusterJobInProgress}, nil
}

func (s *Service) runClusterJob(ctx context.Context, workspaceID int64) {
	if err := s.cluster(ctx, workspaceID); err != nil {
		_ = s.jobs.fail(ctx, workspaceID, err.Error())
		return
	}
}

func (s *Service) cluster(ctx context.Context, workspaceID int64) error {
	since := time.Now().UTC().Add(-s.clusterWindow)
	candidates, err := s.store.recentQueryTexts(ctx, workspaceID, since, clusterCandidateLimit)
	if err != nil {
		return fmt.Errorf("loading recent queries: %w", err)
	}

	for i := range candidates {
		emb, err := s.embedder.Embed(ctx, candidates[i].QueryText)
		if err != nil {
			return fmt.Errorf("embedding query %s: %w", candidates[i].QueryID, err)
		}
		candidates[i].Embedding = emb
	}

	results := greedyCluster(candidates, s.clusterSimilarity, s.clusterMinSize)

	textsByID := make(map[string]string, len(candidates))
	for _, c := range candidates {
		textsByID[c.QueryID] = c.QueryText
	}
	for i := range results {
		sample := make([]string, 0, labelSampleSize)
		for _, id := range results[i].memberIDs {
			if len(sample) >= labelSampleSize {
				break
			}
			sample = append(sample, textsByID[id])
		}
		label, err := s.labeler.Summarize(ctx, sample)
		if err != nil {
			label = "Unlabeled topic"
		}
		results[i].label = label
	}

	at := time.Now().UTC()
	if err := s.clusters.replaceAll(ctx, workspaceID, results, at); err != nil {
		return fmt.Errorf("storing clusters: %w", err)
	}
	return s.jobs.complete(ctx, workspaceID, at)
}
