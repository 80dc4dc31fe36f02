package session

import (
	"context"
	"testing"
	"time"

	"github.com/knowbase/sales-copilot/internal/core/domain"
)

func TestCreateAndAppendRoundTrip(t *testing.T) {
	store := NewStore(time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	turns := []domain.ConversationTurn{
		{Role: "user", Content: "show me retail case studies"},
		{Role: "assistant", Content: "Here are two."},
	}
	for _, turn := range turns {
		if err := store.AppendTurn(ctx, id, turn); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	history, err := store.History(ctx, id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Content != turns[0].Content || history[1].Role != "assistant" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	store := NewStore(time.Hour)
	ctx := context.Background()

	id, _ := store.Create(ctx)
	_ = store.AppendTurn(ctx, id, domain.ConversationTurn{Role: "user", Content: "original"})

	history, _ := store.History(ctx, id)
	history[0].Content = "mutated"

	again, _ := store.History(ctx, id)
	if again[0].Content != "original" {
		t.Fatalf("history leaked internal state: %+v", again)
	}
}

func TestUnknownSessionReturnsNotFound(t *testing.T) {
	store := NewStore(time.Hour)
	ctx := context.Background()

	if _, err := store.History(ctx, "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("History() error = %v, want ErrNotFound", err)
	}
	if err := store.AppendTurn(ctx, "nope", domain.ConversationTurn{}); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("AppendTurn() error = %v, want ErrNotFound", err)
	}
	if err := store.Touch(ctx, "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("Touch() error = %v, want ErrNotFound", err)
	}
}

func TestIdleSessionExpires(t *testing.T) {
	store := NewStore(30 * time.Minute)
	ctx := context.Background()

	current := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	id, _ := store.Create(ctx)
	_ = store.AppendTurn(ctx, id, domain.ConversationTurn{Role: "user", Content: "hello"})

	current = current.Add(29 * time.Minute)
	if err := store.Touch(ctx, id); err != nil {
		t.Fatalf("Touch() before expiry error = %v", err)
	}

	// Touch reset the idle clock; a full TTL later it is gone.
	current = current.Add(31 * time.Minute)
	if _, err := store.History(ctx, id); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("History() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestReapRemovesOnlyExpiredSessions(t *testing.T) {
	store := NewStore(10 * time.Minute)
	ctx := context.Background()

	current := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	stale, _ := store.Create(ctx)
	current = current.Add(11 * time.Minute)
	fresh, _ := store.Create(ctx)

	store.reap()

	if _, ok := store.sessions[stale]; ok {
		t.Fatalf("stale session survived reap")
	}
	if _, ok := store.sessions[fresh]; !ok {
		t.Fatalf("fresh session was reaped")
	}
}
