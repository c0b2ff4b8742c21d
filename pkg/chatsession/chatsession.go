// Package chatsession implements server-side chat history: clients pass a
// session_id and the server maintains a bounded turn buffer in Redis, with
// a sliding TTL and a per-session lock so concurrent writes serialize.
package chatsession

import "time"

// Turn is a single message in a chat session's history.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
