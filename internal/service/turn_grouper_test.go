package service

import (
	"context"
	"errors"
	"testing"

	"chat-bridge-go/internal/model"
)

func TestTurnGrouper_MonotonicFromOne(t *testing.T) {
	repo := newTestRepo(t)
	grouper := NewTurnGrouper(repo)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		next, err := grouper.NextGroupID(ctx, "100")
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 && next != 1 {
			t.Fatalf("first group id = %d, want 1", next)
		}
		if next <= prev {
			t.Fatalf("group id %d not greater than previous %d", next, prev)
		}
		prev = next

		if err := repo.Create(ctx, &model.Message{ConversationID: "100", Role: model.RoleUser, Content: "q", GroupID: next}); err != nil {
			t.Fatal(err)
		}
		// Chunks share the group and must not advance it.
		if err := repo.Create(ctx, &model.Message{ConversationID: "100", Role: model.RoleAssistant, Content: "a", GroupID: next}); err != nil {
			t.Fatal(err)
		}
	}

	other, err := grouper.NextGroupID(ctx, "200")
	if err != nil {
		t.Fatal(err)
	}
	if other != 1 {
		t.Fatalf("other conversation starts at %d, want 1", other)
	}
}

func TestTurnGrouper_PropagatesReadFailure(t *testing.T) {
	boom := errors.New("db down")
	repo := &stubRepo{maxErr: boom}

	_, err := NewTurnGrouper(repo).NextGroupID(context.Background(), "1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}
