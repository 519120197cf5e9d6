package records

import (
	"context"
	"testing"
)

func TestSaveAndListMessages(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, m := range []Message{
		{SessionID: "s1", UserID: "u1", Type: TypeUser, Content: "mon wifi ne marche pas"},
		{SessionID: "s1", UserID: "u1", Type: TypeBot, Content: "sur quel réseau êtes-vous ?", Agent: "network"},
		{SessionID: "s1", UserID: "slack_U1", Type: TypeHuman, Content: "je prends le relais"},
	} {
		if err := s.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	msgs, err := s.Messages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	if msgs[0].Type != TypeUser || msgs[2].Type != TypeHuman {
		t.Fatalf("messages not in chronological order: %+v", msgs)
	}
	if msgs[0].ID == "" {
		t.Fatalf("SaveMessage should assign an ID")
	}
}

func TestMessagesRespectsLimit(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.SaveMessage(ctx, Message{SessionID: "s1", UserID: "u1", Type: TypeUser, Content: "m"}); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}
	msgs, err := s.Messages(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
}
