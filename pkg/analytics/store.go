package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store runs the aggregate queries backing the dashboard views.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an analytics Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// StatsCard computes a stats card for [start, end), plus the percentage
// change in query count against the immediately preceding period of equal
// length.
func (s *Store) StatsCard(ctx context.Context, workspaceID int64, start, end time.Time) (StatsCard, error) {
	var card StatsCard
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM query_traces WHERE workspace_id = $1 AND created_at >= $2 AND created_at < $3`,
		workspaceID, start, end,
	).Scan(&card.QueryCount)
	if err != nil {
		return StatsCard{}, fmt.Errorf("counting queries: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT
		   count(*) FILTER (WHERE rf.sentiment = 'positive'),
		   count(*) FILTER (WHERE rf.sentiment = 'negative')
		 FROM response_feedback rf
		 JOIN query_traces qt ON qt.id = rf.query_id
		 WHERE qt.workspace_id = $1 AND rf.created_at >= $2 AND rf.created_at < $3`,
		workspaceID, start, end,
	).Scan(&card.UpvoteCount, &card.DownvoteCount)
	if err != nil {
		return StatsCard{}, fmt.Errorf("counting feedback: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM urgency_query_traces
		 WHERE workspace_id = $1 AND is_urgent AND created_at >= $2 AND created_at < $3`,
		workspaceID, start, end,
	).Scan(&card.UrgentQueryCount)
	if err != nil {
		return StatsCard{}, fmt.Errorf("counting urgent queries: %w", err)
	}

	span := end.Sub(start)
	prevStart, prevEnd := start.Add(-span), start
	var prevCount int
	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM query_traces WHERE workspace_id = $1 AND created_at >= $2 AND created_at < $3`,
		workspaceID, prevStart, prevEnd,
	).Scan(&prevCount)
	if err != nil {
		return StatsCard{}, fmt.Errorf("counting previous-period queries: %w", err)
	}
	if prevCount > 0 {
		card.QueryCountChangePct = (float64(card.QueryCount) - float64(prevCount)) / float64(prevCount) * 100
	}

	return card, nil
}

// TimeSeries buckets query counts at the given frequency over [start, end).
func (s *Store) TimeSeries(ctx context.Context, workspaceID int64, start, end time.Time, freq Frequency) ([]TimeSeriesPoint, error) {
	unit := freq.dateTruncUnit()
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT date_trunc('%s', created_at) AS bucket, count(*)
		 FROM query_traces
		 WHERE workspace_id = $1 AND created_at >= $2 AND created_at < $3
		 GROUP BY bucket ORDER BY bucket ASC`, unit),
		workspaceID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("querying time series: %w", err)
	}
	defer rows.Close()

	out := []TimeSeriesPoint{}
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.Scan(&p.Bucket, &p.QueryCount); err != nil {
			return nil, fmt.Errorf("scanning time series point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopContent ranks content by how often it was retrieved for a query in
// [start, end), limited to top.
func (s *Store) TopContent(ctx context.Context, workspaceID int64, start, end time.Time, top int) ([]TopContentItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.title, c.is_archived, c.positive_votes, c.negative_votes,
		        count(*) FILTER (
		          WHERE qt.retrieved_content_ids @> to_jsonb(c.id::bigint)
		            AND qt.created_at >= $2 AND qt.created_at < $3
		        ) AS reference_count
		 FROM content c
		 LEFT JOIN query_traces qt ON qt.workspace_id = c.workspace_id
		 WHERE c.workspace_id = $1
		 GROUP BY c.id, c.title, c.is_archived, c.positive_votes, c.negative_votes
		 ORDER BY reference_count DESC, c.id ASC
		 LIMIT $4`,
		workspaceID, start, end, top,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top content: %w", err)
	}
	defer rows.Close()

	out := []TopContentItem{}
	for rows.Next() {
		var item TopContentItem
		if err := rows.Scan(&item.ContentID, &item.Title, &item.IsArchived, &item.PositiveVotes, &item.NegativeVotes, &item.ReferenceCount); err != nil {
			return nil, fmt.Errorf("scanning top content row: %w", err)
		}
		if item.IsArchived {
			item.Title = "[DELETED] " + item.Title
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClusterCandidate is a recent query trace considered for topic clustering
// within the window.
type ClusterCandidate struct {
	QueryID   string
	QueryText string
	Embedding []float32
}

// jobStore persists the per-workspace topic-clustering job state.
type jobStore struct {
	pool *pgxpool.Pool
}

func newJobStore(pool *pgxpool.Pool) *jobStore {
	return &jobStore{pool: pool}
}

// tryStart atomically transitions a workspace's job to in_progress unless
// one is already running, coalescing concurrent refresh requests into a
// single job. Returns false if a job was already in progress.
func (j *jobStore) tryStart(ctx context.Context, workspaceID int64) (bool, error) {
	tag, err := j.pool.Exec(ctx,
		`INSERT INTO topic_cluster_jobs (workspace_id, status, updated_at)
		 VALUES ($1, 'in_progress', now())
		 ON CONFLICT (workspace_id) DO UPDATE
		   SET status = 'in_progress', error_message = NULL, updated_at = now()
		   WHERE topic_cluster_jobs.status != 'in_progress'`,
		workspaceID,
	)
	if err != nil {
		return false, fmt.Errorf("starting topic cluster job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (j *jobStore) complete(ctx context.Context, workspaceID int64, at time.Time) error {
	_, err := j.pool.Exec(ctx,
		`UPDATE topic_cluster_jobs SET status = 'completed', refresh_timestamp = $2, updated_at = now() WHERE workspace_id = $1`,
		workspaceID, at,
	)
	return err
}

func (j *jobStore) fail(ctx context.Context, workspaceID int64, reason string) error {
	_, err := j.pool.Exec(ctx,
		`UPDATE topic_cluster_jobs SET status = 'error', error_message = $2, updated_at = now() WHERE workspace_id = $1`,
		workspaceID, reason,
	)
	return err
}

func (j *jobStore) get(ctx context.Context, workspaceID int64) (ClusterJob, error) {
	job := ClusterJob{WorkspaceID: workspaceID, Status: ClusterJobNotStarted}
	var errMsg *string
	var refreshedAt *time.Time
	err := j.pool.QueryRow(ctx,
		`SELECT status, error_message, refresh_timestamp FROM topic_cluster_jobs WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&job.Status, &errMsg, &refreshedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return job, nil
		}
		return ClusterJob{}, fmt.Errorf("loading cluster job: %w", err)
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	job.RefreshTimestamp = refreshedAt
	return job, nil
}

// clusterStore persists completed clustering results.
type clusterStore struct {
	pool *pgxpool.Pool
}

func newClusterStore(pool *pgxpool.Pool) *clusterStore {
	return &clusterStore{pool: pool}
}

func (c *clusterStore) replaceAll(ctx context.Context, workspaceID int64, clusters []clusterResult, at time.Time) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM topic_clusters WHERE workspace_id = $1`, workspaceID); err != nil {
		return fmt.Errorf("clearing previous clusters: %w", err)
	}
	for _, cl := range clusters {
		memberIDs, err := json.Marshal(cl.memberIDs)
		if err != nil {
			return fmt.Errorf("encoding cluster members: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO topic_clusters (workspace_id, label, query_count, query_trace_ids, status, refresh_timestamp)
			 VALUES ($1, $2, $3, $4, 'completed', $5)`,
			workspaceID, cl.label, len(cl.memberIDs), memberIDs, at,
		)
		if err != nil {
			return fmt.Errorf("inserting cluster: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (c *clusterStore) list(ctx context.Context, workspaceID int64) ([]TopicCluster, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, label, query_count, query_trace_ids, refresh_timestamp FROM topic_clusters
		 WHERE workspace_id = $1 ORDER BY query_count DESC, id ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	defer rows.Close()

	var maxCount int
	out := []TopicCluster{}
	for rows.Next() {
		var tc TopicCluster
		var memberJSON []byte
		var refreshedAt *time.Time
		if err := rows.Scan(&tc.ID, &tc.Label, &tc.QueryCount, &memberJSON, &refreshedAt); err != nil {
			return nil, fmt.Errorf("scanning cluster row: %w", err)
		}
		if len(memberJSON) > 0 {
			if err := json.Unmarshal(memberJSON, &tc.Members); err != nil {
				return nil, fmt.Errorf("decoding cluster members: %w", err)
			}
		}
		if refreshedAt != nil {
			tc.RefreshedAt = *refreshedAt
		}
		if tc.QueryCount > maxCount {
			maxCount = tc.QueryCount
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if maxCount > 0 {
		for i := range out {
			out[i].Popularity = float64(out[i].QueryCount) / float64(maxCount)
		}
	}
	return out, nil
}

// recentQueryTexts returns the id and query_text of up to limit query traces
// in the workspace created at or after since. It returns no embeddings:
// query_traces has no embedding column, so the caller re-embeds query_text.
func (s *Store) recentQueryTexts(ctx context.Context, workspaceID int64, since time.Time, limit int) ([]ClusterCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, query_text FROM query_traces
		 WHERE workspace_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT $3`,
		workspaceID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent queries: %w", err)
	}
	defer rows.Close()

	out := []ClusterCandidate{}
	for rows.Next() {
		var c ClusterCandidate
		if err := rows.Scan(&c.QueryID, &c.QueryText); err != nil {
			return nil, fmt.Errorf("scanning recent query: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
