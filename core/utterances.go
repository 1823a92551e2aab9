package orchestration

// Default utterances for the outbound scheduling agent. All of them are
// overridable through orchestrator options.
const (
	defaultGreeting = "Hello! This is your dental clinic. Are you available to schedule an appointment?"

	// Spoken when the caller's recording was silent or unintelligible. Not
	// counted as a turn.
	defaultClarification = "Sorry, I didn't catch that. Could you please repeat?"

	// Spoken when no recording arrived before the no-input timeout. Not
	// counted as a turn.
	defaultReprompt = "Sorry, I didn't hear anything. Are you still there?"

	// Spoken in place of a generated reply when a pipeline stage fails.
	defaultFallback = "I'm sorry, I'm having trouble hearing you. Could you please say that again?"

	// Terminal apology when even fallback synthesis fails and no pre-recorded
	// fallback audio is registered.
	defaultCallBackLater = "Sorry, we are having technical difficulties. Please call back later. Goodbye."

	defaultClosing = "Thank you for your time. Goodbye."
)
