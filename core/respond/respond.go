// Package respond defines the reply-generation contract between the call
// orchestrator and a language model adapter. The adapter is stateless across
// calls: it receives the full accumulated history plus the latest caller
// utterance every time, and answers with the agent's next utterance and
// whether the conversation should close.
package respond

// Role identifies a conversation participant.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

// Turn is one utterance of conversation history.
type Turn struct {
	Role Role
	Text string
}

// Reply is the generated agent utterance.
type Reply struct {
	Text string
	// ShouldClose signals that the agent considers the conversation finished
	// and the call should hang up after this utterance is spoken.
	ShouldClose bool
}

type PromptOptions struct {
	Turns []Turn
}

type PromptOption func(*PromptOptions)

// WithTurns passes the accumulated conversation history for the call.
func WithTurns(turns ...Turn) PromptOption {
	return func(o *PromptOptions) {
		o.Turns = turns
	}
}
