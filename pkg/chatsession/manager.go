package chatsession

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askaq/aaq/internal/apperr"
)

const (
	defaultMaxTurns     = 10
	defaultMaxTurnChars = 4000
	defaultTTL          = 30 * time.Minute

	lockTTL          = 3 * time.Second
	lockRetries      = 5
	lockRetryBackoff = 20 * time.Millisecond
)

// Manager maintains bounded, TTL-backed chat histories in Redis, keyed by
// a client-supplied session_id.
type Manager struct {
	client       *redis.Client
	maxTurns     int
	maxTurnChars int
	ttl          time.Duration
}

// NewManager creates a chatsession Manager. Zero values fall back to the
// spec's defaults: 10 turns, 4000 characters per turn, 30 minute idle TTL.
func NewManager(client *redis.Client, maxTurns, maxTurnChars int, ttl time.Duration) *Manager {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	if maxTurnChars <= 0 {
		maxTurnChars = defaultMaxTurnChars
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{client: client, maxTurns: maxTurns, maxTurnChars: maxTurnChars, ttl: ttl}
}

// AppendTurn truncates turn.Text to the configured character cap, appends
// it to the session's history, evicting the oldest turn on overflow, and
// slides the session's TTL. Concurrent appends to the same session
// serialize via a short-lived SETNX lock.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, turn Turn) error {
	if len(turn.Text) > m.maxTurnChars {
		turn.Text = turn.Text[:m.maxTurnChars]
	}

	unlock, err := m.acquireLock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	turns, err := m.read(ctx, sessionID)
	if err != nil {
		return err
	}

	turns = append(turns, turn)
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}

	return m.write(ctx, sessionID, turns)
}

// History returns a session's buffered turns, oldest first, sliding the
// session's TTL on access. A session with no history returns an empty
// slice, not an error.
func (m *Manager) History(ctx context.Context, sessionID string) ([]Turn, error) {
	turns, err := m.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) > 0 {
		if err := m.client.Expire(ctx, dataKey(sessionID), m.ttl).Err(); err != nil {
			return nil, fmt.Errorf("sliding chat session TTL: %w", err)
		}
	}
	return turns, nil
}

func (m *Manager) read(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := m.client.Get(ctx, dataKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []Turn{}, nil
		}
		return nil, fmt.Errorf("reading chat session: %w", err)
	}
	var turns []Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decoding chat session: %w", err)
	}
	return turns, nil
}

func (m *Manager) write(ctx context.Context, sessionID string, turns []Turn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encoding chat session: %w", err)
	}
	if err := m.client.Set(ctx, dataKey(sessionID), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("writing chat session: %w", err)
	}
	return nil
}

// acquireLock takes the per-session write lock, retrying briefly before
// giving up, and returns a function that releases it.
func (m *Manager) acquireLock(ctx context.Context, sessionID string) (func(), error) {
	key := lockKey(sessionID)
	for attempt := 0; attempt < lockRetries; attempt++ {
		ok, err := m.client.SetNX(ctx, key, "1", lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring chat session lock: %w", err)
		}
		if ok {
			return func() { m.client.Del(ctx, key) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}
	return nil, apperr.New(apperr.UpstreamUnavailable, "session_locked", "chat session is busy, try again")
}

func dataKey(sessionID string) string { return "chatsession:" + sessionID }
func lockKey(sessionID string) string { return "chatsession:lock:" + sessionID }
