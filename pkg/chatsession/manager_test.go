package chatsession

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T, maxTurns, maxTurnChars int) *Manager {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewManager(client, maxTurns, maxTurnChars, time.Minute)
}

func TestManagerHistoryEmptyForNewSession(t *testing.T) {
	m := newTestManager(t, 0, 0)

	turns, err := m.History(context.Background(), "new-session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %v, want empty", turns)
	}
}

func TestManagerAppendAndHistory(t *testing.T) {
	m := newTestManager(t, 0, 0)
	ctx := context.Background()

	if err := m.AppendTurn(ctx, "s1", Turn{Role: "user", Text: "hello"}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := m.AppendTurn(ctx, "s1", Turn{Role: "assistant", Text: "hi there"}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	turns, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Text != "hello" || turns[1].Text != "hi there" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestManagerEvictsOldestOnOverflow(t *testing.T) {
	m := newTestManager(t, 2, 0)
	ctx := context.Background()

	m.AppendTurn(ctx, "s1", Turn{Role: "user", Text: "one"})
	m.AppendTurn(ctx, "s1", Turn{Role: "user", Text: "two"})
	m.AppendTurn(ctx, "s1", Turn{Role: "user", Text: "three"})

	turns, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Text != "two" || turns[1].Text != "three" {
		t.Errorf("turns = %+v, want oldest evicted", turns)
	}
}

func TestManagerTruncatesOversizedTurn(t *testing.T) {
	m := newTestManager(t, 0, 5)
	ctx := context.Background()

	if err := m.AppendTurn(ctx, "s1", Turn{Role: "user", Text: "this text is far too long"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 || len(turns[0].Text) != 5 {
		t.Fatalf("turns = %+v, want a single 5-char turn", turns)
	}
	if !strings.HasPrefix("this text is far too long", turns[0].Text) {
		t.Errorf("turn text = %q, want prefix of original", turns[0].Text)
	}
}
