// Package analytics exposes summarised dashboard views over query traces
// and feedback: per-period stats cards, time series, top-content rankings,
// and a background topic-clustering job over unanswered/recent queries.
package analytics

import "time"

// Period is the coarse window a stats card or time series is scoped to.
type Period string

const (
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

// Frequency is the bucket size for a time series, each frequency
// constrained to a maximum lookback span.
type Frequency string

const (
	FrequencyHour  Frequency = "hour"
	FrequencyDay   Frequency = "day"
	FrequencyWeek  Frequency = "week"
	FrequencyMonth Frequency = "month"
)

// maxLookback is the most restrictive span allowed per frequency, adopted
// from the spec's resolution of the divergent source implementations.
var maxLookback = map[Frequency]time.Duration{
	FrequencyHour:  14 * 24 * time.Hour,
	FrequencyDay:   100 * 24 * time.Hour,
	FrequencyWeek:  365 * 24 * time.Hour,
	FrequencyMonth: 1825 * 24 * time.Hour,
}

// dateTruncUnit is the Postgres date_trunc() unit for a frequency.
func (f Frequency) dateTruncUnit() string {
	switch f {
	case FrequencyHour:
		return "hour"
	case FrequencyWeek:
		return "week"
	case FrequencyMonth:
		return "month"
	default:
		return "day"
	}
}

// StatsCard summarises query/feedback volume for a period, with a
// percentage change against the immediately preceding equivalent period.
type StatsCard struct {
	QueryCount          int     `json:"query_count"`
	UpvoteCount         int     `json:"upvote_count"`
	DownvoteCount       int     `json:"downvote_count"`
	UrgentQueryCount    int     `json:"urgent_query_count"`
	QueryCountChangePct float64 `json:"query_count_change_pct"`
}

// TimeSeriesPoint is one bucket of a query-volume time series.
type TimeSeriesPoint struct {
	Bucket     time.Time `json:"bucket"`
	QueryCount int       `json:"query_count"`
}

// TopContentItem is a single row of the top-referenced-content ranking.
// Title carries the spec's display-only "[DELETED]" prefix convention for
// archived content, derived from IsArchived rather than persisted.
type TopContentItem struct {
	ContentID      int64  `json:"content_id"`
	Title          string `json:"title"`
	IsArchived     bool   `json:"is_archived"`
	ReferenceCount int    `json:"reference_count"`
	PositiveVotes  int    `json:"positive_votes"`
	NegativeVotes  int    `json:"negative_votes"`
}

// ClusterJobStatus is the lifecycle state of a workspace's topic-clustering
// refresh job.
type ClusterJobStatus string

const (
	ClusterJobNotStarted ClusterJobStatus = "not_started"
	ClusterJobInProgress ClusterJobStatus = "in_progress"
	ClusterJobCompleted  ClusterJobStatus = "completed"
	ClusterJobError      ClusterJobStatus = "error"
)

// ClusterJob reports a workspace's most recent topic-clustering refresh.
type ClusterJob struct {
	WorkspaceID      int64            `json:"workspace_id"`
	Status           ClusterJobStatus `json:"status"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	RefreshTimestamp *time.Time       `json:"refresh_timestamp,omitempty"`
}

// TopicCluster is one named group of semantically similar historical
// queries produced by a clustering refresh.
type TopicCluster struct {
	ID          int64     `json:"cluster_id"`
	Label       string    `json:"label"`
	QueryCount  int       `json:"query_count"`
	Members     []string  `json:"members"`
	Popularity  float64   `json:"popularity"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Insights bundles the clustering job's status alongside its most recent
// completed clusters, satisfying GET /dashboard/insights.
type Insights struct {
	Job      ClusterJob     `json:"job"`
	Clusters []TopicCluster `json:"clusters"`
}
