package orchestration

import (
	"context"
	"time"

	"github.com/dialcare/callvoice/core/artifacts"
	"github.com/dialcare/callvoice/core/conversationlog"
	"github.com/dialcare/callvoice/core/respond"
	"github.com/dialcare/callvoice/core/speechtotext"
	"github.com/dialcare/callvoice/core/texttospeech"
)

// Transcriber converts one recorded utterance into text. Silent audio yields
// an empty transcript rather than an error where the backend allows it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts ...speechtotext.TranscriptionOption) (string, error)
}

// ReplyGenerator produces the agent's next utterance from the conversation
// history and the latest caller utterance. Stateless between calls: the full
// history is passed every time.
type ReplyGenerator interface {
	Generate(ctx context.Context, utterance string, opts ...respond.PromptOption) (*respond.Reply, error)
}

// SpeechSynthesizer converts utterance text into playable audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error)
}

// ArtifactStore manages transient call audio with retention and in-use
// tracking.
type ArtifactStore interface {
	Create(kind artifacts.Kind, audio []byte) (string, error)
	Retrieve(id string) ([]byte, error)
	Pin(id string)
	Unpin(id string)
	Reap() int
}

// ConversationLog is the durable, append-only transcript store. Writes are
// idempotent on (callID, turn, speaker).
type ConversationLog interface {
	Append(ctx context.Context, entry conversationlog.Entry) error
	History(ctx context.Context, callID string) ([]conversationlog.Entry, error)
}

type OrchestratorOption func(*Orchestrator)

func WithTranscriber(client Transcriber) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.transcriber = client }
}

func WithReplyGenerator(client ReplyGenerator) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.generator = client }
}

func WithSpeechSynthesizer(client SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.synthesizer = client }
}

func WithArtifactStore(store ArtifactStore) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.artifacts = store }
}

func WithConversationLog(log ConversationLog) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.log = log }
}

// WithGreeting overrides the opening utterance spoken on call answer.
func WithGreeting(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.deps.config.greeting = text
		}
	}
}

// WithGreetingAudio plays a pre-recorded artifact as the greeting instead of
// a telephony-voiced utterance.
func WithGreetingAudio(artifactID string) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.config.greetingAudioID = artifactID }
}

func WithClosingUtterance(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.deps.config.closing = text
		}
	}
}

func WithFallbackUtterance(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.deps.config.fallback = text
		}
	}
}

func WithClarificationUtterance(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.deps.config.clarification = text
		}
	}
}

func WithRepromptUtterance(text string) OrchestratorOption {
	return func(o *Orchestrator) {
		if text != "" {
			o.deps.config.reprompt = text
		}
	}
}

// WithFallbackAudio registers a pre-recorded artifact played when even
// fallback synthesis fails. Without it the terminal fallback is a
// telephony-voiced Say step.
func WithFallbackAudio(artifactID string) OrchestratorOption {
	return func(o *Orchestrator) { o.deps.config.fallbackAudioID = artifactID }
}

// WithMaxTurns caps completed caller/agent exchanges before the
// conversation is closed with the closing utterance.
func WithMaxTurns(maxTurns int) OrchestratorOption {
	return func(o *Orchestrator) {
		if maxTurns > 0 {
			o.deps.config.maxTurns = maxTurns
		}
	}
}

// WithIdleTimeout sets how long a session may sit without telephony events
// before the reaper force-ends it.
func WithIdleTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.deps.config.idleTimeout = timeout
		}
	}
}

// WithReapInterval sets how often the background reaper scans idle sessions
// and expired artifacts.
func WithReapInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.deps.config.reapInterval = interval
		}
	}
}

// WithStageTimeouts bounds each pipeline stage independently. A timed-out
// stage is treated exactly like a failed one.
func WithStageTimeouts(transcription, generation, synthesis time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if transcription > 0 {
			o.deps.config.transcriptionTimeout = transcription
		}
		if generation > 0 {
			o.deps.config.generationTimeout = generation
		}
		if synthesis > 0 {
			o.deps.config.synthesisTimeout = synthesis
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.deps.now = now
		}
	}
}

type config struct {
	greeting        string
	greetingAudioID string
	clarification   string
	reprompt        string
	fallback        string
	callBackLater   string
	closing         string
	fallbackAudioID string

	maxTurns     int
	idleTimeout  time.Duration
	reapInterval time.Duration

	transcriptionTimeout time.Duration
	generationTimeout    time.Duration
	synthesisTimeout     time.Duration
}

func defaultConfig() config {
	return config{
		greeting:      defaultGreeting,
		clarification: defaultClarification,
		reprompt:      defaultReprompt,
		fallback:      defaultFallback,
		callBackLater: defaultCallBackLater,
		closing:       defaultClosing,

		maxTurns:     10,
		idleTimeout:  2 * time.Minute,
		reapInterval: 30 * time.Second,

		transcriptionTimeout: 10 * time.Second,
		generationTimeout:    10 * time.Second,
		synthesisTimeout:     10 * time.Second,
	}
}
