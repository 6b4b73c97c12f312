package store

import (
	"context"
	"testing"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		err := s.SaveInteraction(ctx, InteractionRecord{
			CallID:  "call-1",
			Speaker: "customer",
			Text:    text,
		})
		if err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	got, err := s.RecentInteractions(ctx, "call-1", 2)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Text != "second" || got[1].Text != "third" {
		t.Fatalf("unexpected window: %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("record not stamped: %+v", got[0])
	}
}

func TestInMemoryStoreUnknownCall(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.RecentInteractions(context.Background(), "nope", 5)
	if err != nil {
		t.Fatalf("RecentInteractions: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
