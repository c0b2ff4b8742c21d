// Package feedback persists query traces and accepts capability-authorized
// feedback on them: every accepted query produces an immutable QueryTrace
// carrying a random feedback_secret_key, and feedback is accepted only when
// the caller supplies a matching key (or an authenticated API key).
package feedback

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sentiment is the polarity of a feedback vote.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

// QueryTrace is the immutable record of one accepted search query.
type QueryTrace struct {
	ID                   uuid.UUID
	WorkspaceID          int64
	QueryText            string
	QueryMetadata        map[string]any
	GeneratedLLMResponse *string
	RetrievedContentIDs  []int64
	FeedbackSecretKey    string
	CreatedAt            time.Time
}

// CreateTraceParams holds the data needed to persist a QueryTrace.
type CreateTraceParams struct {
	WorkspaceID          int64
	QueryText            string
	QueryMetadata        map[string]any
	GeneratedLLMResponse *string
	RetrievedContentIDs  []int64
}

// ResponseFeedbackRequest is the body of POST /response-feedback. FeedbackText
// is accepted but not persisted: no column in response_feedback carries it.
type ResponseFeedbackRequest struct {
	QueryID           uuid.UUID `json:"query_id" validate:"required"`
	FeedbackSecretKey string    `json:"feedback_secret_key"`
	Sentiment         Sentiment `json:"feedback_sentiment" validate:"required,oneof=positive negative"`
	FeedbackText      string    `json:"feedback_text,omitempty"`
}

// ContentFeedbackRequest is the body of POST /content-feedback.
type ContentFeedbackRequest struct {
	QueryID           *uuid.UUID `json:"query_id"`
	FeedbackSecretKey string     `json:"feedback_secret_key"`
	ContentID         int64      `json:"content_id" validate:"required"`
	Sentiment         Sentiment  `json:"feedback_sentiment" validate:"required,oneof=positive negative"`
	FeedbackText      string     `json:"feedback_text,omitempty"`
}

func marshalContentIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal(ids)
}
