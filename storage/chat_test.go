package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestChatStore(t *testing.T) *ChatStore {
	t.Helper()
	s, err := NewChatStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecentMessages(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "morning chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	turns := []struct {
		role    Role
		content string
	}{
		{RoleUser, "hello"},
		{RoleAssistant, "hi there"},
		{RoleUser, "how are you"},
	}
	for _, turn := range turns {
		if _, err := s.AppendMessage(ctx, conv.ID, turn.role, turn.content); err != nil {
			t.Fatalf("append %q: %v", turn.content, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.RecentMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("got %d messages, want %d", len(got), len(turns))
	}
	// Chronological order, oldest first.
	for i, turn := range turns {
		if got[i].Role != turn.role || got[i].Content != turn.content {
			t.Errorf("message %d = %s %q, want %s %q", i, got[i].Role, got[i].Content, turn.role, turn.content)
		}
	}
}

func TestRecentMessagesKeepsNewestWhenLimited(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "t")
	for _, content := range []string{"one", "two", "three"} {
		if _, err := s.AppendMessage(ctx, conv.ID, RoleUser, content); err != nil {
			t.Fatalf("append: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.RecentMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Content != "two" || got[1].Content != "three" {
		t.Errorf("got %+v, want the newest two in chronological order", got)
	}
}

func TestAppendMessageBumpsConversation(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	stale, _ := s.CreateConversation(ctx, "stale")
	time.Sleep(2 * time.Millisecond)
	active, _ := s.CreateConversation(ctx, "active")
	time.Sleep(2 * time.Millisecond)

	if _, err := s.AppendMessage(ctx, stale.ID, RoleUser, "wake up"); err != nil {
		t.Fatalf("append: %v", err)
	}

	convs, err := s.ListConversations(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != stale.ID || convs[1].ID != active.ID {
		t.Errorf("order = %+v, want the thread with the new message first", convs)
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := newTestChatStore(t)
	if _, err := s.AppendMessage(context.Background(), "nope", RoleUser, "x"); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "doomed")
	s.AppendMessage(ctx, conv.ID, RoleUser, "a")
	s.AppendMessage(ctx, conv.ID, RoleAssistant, "b")

	if err := s.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	n, err := s.MessageCount(ctx, conv.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("%d messages survived the cascade, want 0", n)
	}
}

func TestRenameConversation(t *testing.T) {
	s := newTestChatStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "old title")
	if err := s.RenameConversation(ctx, conv.ID, "new title"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	convs, _ := s.ListConversations(ctx, 0)
	if len(convs) != 1 || convs[0].Title != "new title" {
		t.Errorf("got %+v, want renamed thread", convs)
	}

	if err := s.RenameConversation(ctx, "missing", "x"); err == nil {
		t.Error("expected error renaming missing conversation")
	}
}
