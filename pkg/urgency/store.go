package urgency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/askaq/aaq/internal/db"
)

// RuleStore manages a workspace's configured UrgencyRules.
type RuleStore struct {
	dbtx db.DBTX
}

// NewRuleStore creates an urgency RuleStore.
func NewRuleStore(dbtx db.DBTX) *RuleStore {
	return &RuleStore{dbtx: dbtx}
}

// List returns every rule configured for a workspace.
func (s *RuleStore) List(ctx context.Context, workspaceID int64) ([]Rule, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT id, workspace_id, text, created_at FROM urgency_rules WHERE workspace_id = $1 ORDER BY id`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing urgency rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning urgency rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Create inserts a new rule with its precomputed embedding.
func (s *RuleStore) Create(ctx context.Context, workspaceID int64, text string, embedding []float32) (Rule, error) {
	vec := pgvector.NewVector(embedding)
	var r Rule
	err := s.dbtx.QueryRow(ctx,
		`INSERT INTO urgency_rules (workspace_id, text, embedding) VALUES ($1, $2, $3)
		 RETURNING id, workspace_id, text, created_at`,
		workspaceID, text, vec,
	).Scan(&r.ID, &r.WorkspaceID, &r.Text, &r.CreatedAt)
	if err != nil {
		return Rule{}, fmt.Errorf("creating urgency rule: %w", err)
	}
	return r, nil
}

// Delete removes a rule from a workspace.
func (s *RuleStore) Delete(ctx context.Context, workspaceID, id int64) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM urgency_rules WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	return err
}

// Match returns the rules in a workspace whose cosine similarity to
// queryEmbedding meets or exceeds threshold, ordered by similarity
// descending, ties broken by rule id ascending.
func (s *RuleStore) Match(ctx context.Context, workspaceID int64, queryEmbedding []float32, threshold float64) ([]MatchedRule, error) {
	vec := pgvector.NewVector(queryEmbedding)
	rows, err := s.dbtx.Query(ctx,
		`SELECT id, text, (1 - (embedding <=> $2)) AS similarity
		 FROM urgency_rules
		 WHERE workspace_id = $1 AND embedding IS NOT NULL AND (1 - (embedding <=> $2)) >= $3
		 ORDER BY similarity DESC, id ASC`,
		workspaceID, vec, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("matching urgency rules: %w", err)
	}
	defer rows.Close()

	var out []MatchedRule
	for rows.Next() {
		var m MatchedRule
		if err := rows.Scan(&m.RuleID, &m.Text, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning matched rule: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TraceStore persists urgency_query_traces rows.
type TraceStore struct {
	dbtx db.DBTX
}

// NewTraceStore creates an urgency TraceStore.
func NewTraceStore(dbtx db.DBTX) *TraceStore {
	return &TraceStore{dbtx: dbtx}
}

// Create persists a single urgency check.
func (s *TraceStore) Create(ctx context.Context, workspaceID int64, queryText string, result Result) (Trace, error) {
	matchedJSON, err := json.Marshal(result.MatchedRules)
	if err != nil {
		return Trace{}, fmt.Errorf("encoding matched rules: %w", err)
	}

	id := uuid.New()
	var createdAt time.Time
	var failureReason *string
	if result.FailureReason != "" {
		failureReason = &result.FailureReason
	}
	err = s.dbtx.QueryRow(ctx,
		`INSERT INTO urgency_query_traces (id, workspace_id, query_text, is_urgent, matched_rules, failure_reason)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		id, workspaceID, queryText, result.IsUrgent, matchedJSON, failureReason,
	).Scan(&createdAt)
	if err != nil {
		return Trace{}, fmt.Errorf("recording urgency trace: %w", err)
	}

	return Trace{
		ID:            id,
		WorkspaceID:   workspaceID,
		QueryText:     queryText,
		IsUrgent:      result.IsUrgent,
		MatchedRules:  result.MatchedRules,
		FailureReason: result.FailureReason,
		CreatedAt:     createdAt,
	}, nil
}
