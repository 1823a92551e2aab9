package conversationlog

import (
	"context"
	"sort"
	"sync"
)

// MemoryLog is an in-process implementation of the conversation log. It keeps
// the same idempotency contract as the durable stores and mainly serves
// development and tests.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: map[string][]Entry{}}
}

// Append stores an entry, ignoring duplicates of an already-written
// (callID, turn, speaker) key.
func (l *MemoryLog) Append(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.entries[entry.CallID] {
		if existing.Turn == entry.Turn && existing.Speaker == entry.Speaker {
			return nil
		}
	}
	l.entries[entry.CallID] = append(l.entries[entry.CallID], entry)
	return nil
}

// History returns the ordered transcript for one call.
func (l *MemoryLog) History(_ context.Context, callID string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := make([]Entry, len(l.entries[callID]))
	copy(history, l.entries[callID])
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Turn != history[j].Turn {
			return history[i].Turn < history[j].Turn
		}
		return history[i].Speaker == SpeakerCaller && history[j].Speaker == SpeakerAgent
	})
	return history, nil
}
