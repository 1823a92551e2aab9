package conversationlog

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLogAppendAndHistory(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	entries := []Entry{
		{CallID: "call-1", Turn: 1, Speaker: SpeakerAgent, Text: "what time suits you?", Timestamp: at},
		{CallID: "call-1", Turn: 0, Speaker: SpeakerCaller, Text: "hello", Timestamp: at},
		{CallID: "call-1", Turn: 0, Speaker: SpeakerAgent, Text: "hi, this is the clinic", Timestamp: at},
		{CallID: "call-1", Turn: 1, Speaker: SpeakerCaller, Text: "tomorrow", Timestamp: at},
		{CallID: "call-2", Turn: 0, Speaker: SpeakerCaller, Text: "other call", Timestamp: at},
	}
	for _, entry := range entries {
		if err := log.Append(ctx, entry); err != nil {
			t.Fatalf("expected append to succeed, got %v", err)
		}
	}

	history, err := log.History(ctx, "call-1")
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 entries, got %v", history)
	}

	// Ordered by turn, caller before agent within a turn.
	expected := []string{"hello", "hi, this is the clinic", "tomorrow", "what time suits you?"}
	for i, text := range expected {
		if history[i].Text != text {
			t.Fatalf("expected %q at position %d, got %q", text, i, history[i].Text)
		}
	}
}

func TestMemoryLogAppendIsIdempotent(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()

	entry := Entry{CallID: "call-1", Turn: 0, Speaker: SpeakerCaller, Text: "hello"}
	if err := log.Append(ctx, entry); err != nil {
		t.Fatalf("expected first append to succeed, got %v", err)
	}

	duplicate := entry
	duplicate.Text = "hello again"
	if err := log.Append(ctx, duplicate); err != nil {
		t.Fatalf("expected duplicate append to be a no-op, got %v", err)
	}

	history, _ := log.History(ctx, "call-1")
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("expected the first write to win, got %v", history)
	}
}

func TestMemoryLogHistoryUnknownCall(t *testing.T) {
	log := NewMemoryLog()

	history, err := log.History(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("expected empty history without error, got %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no entries, got %v", history)
	}
}
