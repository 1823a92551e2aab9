// Package conversationlog holds the durable, append-only transcript of every
// call. Entries are immutable once written and deduplicated on
// (callID, turn, speaker) so retried webhook deliveries never double-write.
package conversationlog

import "time"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// Entry is one immutable record of a completed conversation turn half.
type Entry struct {
	CallID  string
	Turn    int
	Speaker Speaker
	Text    string
	// ArtifactID references the synthesized audio for agent entries; empty
	// for caller entries and for agent turns spoken by the telephony layer.
	ArtifactID string
	Timestamp  time.Time
}
