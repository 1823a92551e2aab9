package orchestration

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dialcare/callvoice/core/artifacts"
	"github.com/dialcare/callvoice/core/conversationlog"
	"github.com/dialcare/callvoice/core/respond"
)

// State names one position in a call session's lifecycle.
type State string

const (
	StateGreeting          State = "greeting"
	StateAwaitingRecording State = "awaiting_recording"
	StateProcessing        State = "processing"
	StateResponding        State = "responding"
	StateEnded             State = "ended"
)

// sessionDeps bundles the adapters, stores and configuration a session uses
// to run its pipeline. The session composes adapter calls; the orchestrator
// only maps events to sessions.
type sessionDeps struct {
	transcriber Transcriber
	generator   ReplyGenerator
	synthesizer SpeechSynthesizer
	artifacts   ArtifactStore
	log         ConversationLog

	config config
	now    func() time.Time
}

// session is the in-memory state machine for one active call. Events for the
// call are serialized on eventMu for the whole transition; mu guards the
// fields so that call-ended and idle-reap can cancel an in-flight pipeline
// without waiting behind it.
type session struct {
	callID string

	eventMu sync.Mutex

	mu             sync.Mutex
	state          State
	turn           int
	history        []respond.Turn
	createdAt      time.Time
	lastActivityAt time.Time
	cancelPipeline context.CancelFunc
	pinned         []string
}

func newSession(callID string, now time.Time) *session {
	return &session{
		callID:         callID,
		state:          StateGreeting,
		createdAt:      now,
		lastActivityAt: now,
	}
}

// SessionSnapshot is a point-in-time view of one call session.
type SessionSnapshot struct {
	CallID         string
	State          State
	Turn           int
	History        []respond.Turn
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func (s *session) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]respond.Turn, len(s.history))
	copy(history, s.history)

	return SessionSnapshot{
		CallID:         s.callID,
		State:          s.state,
		Turn:           s.turn,
		History:        history,
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivityAt,
	}
}

// begin emits the greeting and leaves the session waiting for the caller's
// first recording. The greeting joins the in-memory history so the generator
// sees it, but is not written to the conversation log: log entries exist only
// for completed turns.
func (s *session) begin(deps *sessionDeps) Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, respond.Turn{Role: respond.RoleAgent, Text: deps.config.greeting})

	var opening Step = SayStep{Text: deps.config.greeting}
	if deps.config.greetingAudioID != "" {
		opening = PlayStep{ArtifactID: deps.config.greetingAudioID}
	}
	instruction := InstructionOf(opening, RecordStep{})

	s.state = StateAwaitingRecording
	s.lastActivityAt = deps.now()
	s.repinLocked(deps, instruction.ArtifactIDs())
	return instruction
}

// reset returns the session to a fresh pre-greeting state, cancelling any
// in-flight pipeline. Used when the telephony layer re-answers a call that
// is still active on our side.
func (s *session) reset(deps *sessionDeps) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelPipeline != nil {
		s.cancelPipeline()
		s.cancelPipeline = nil
	}
	s.repinLocked(deps, nil)

	now := deps.now()
	s.state = StateGreeting
	s.turn = 0
	s.history = nil
	s.createdAt = now
	s.lastActivityAt = now
}

// end transitions the session to Ended, cancelling any in-flight pipeline
// and releasing pinned artifacts. Pins are released even when the session
// already ended on its own: a self-closed session keeps its closing reply
// pinned until the telephony layer confirms the call is over, and this
// eviction is what hands that artifact back to the reaper. Returns false if
// it already ended.
func (s *session) end(deps *sessionDeps) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelPipeline != nil {
		s.cancelPipeline()
		s.cancelPipeline = nil
	}
	s.repinLocked(deps, nil)

	if s.state == StateEnded {
		return false
	}
	s.state = StateEnded
	return true
}

func (s *session) idle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivityAt) >= timeout
}

// reprompt handles the no-input timeout: re-ask without touching the turn
// counter, the history or the log.
func (s *session) reprompt(deps *sessionDeps) Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return Hangup()
	}
	s.lastActivityAt = deps.now()
	s.repinLocked(deps, nil)
	return InstructionOf(SayStep{Text: deps.config.reprompt}, RecordStep{})
}

// pipelineOutcome carries what the Processing stage produced into the
// Responding transition.
type pipelineOutcome struct {
	callerText       string
	replyText        string
	artifactID       string
	useFallbackAudio bool
	// countTurn is set only when a real caller/agent exchange completed
	// (including the fallback-utterance path); clarification re-prompts
	// leave the turn counter, history and log untouched.
	countTurn   bool
	shouldClose bool
}

// processRecording runs the transcribe→generate→synthesize pipeline for one
// recording-ready event and emits the next telephony instruction. The caller
// holds eventMu.
func (s *session) processRecording(ctx context.Context, deps *sessionDeps, recordingID string) Instruction {
	ctx, span := tracer.Start(ctx, "process recording", trace.WithAttributes(
		attribute.String("call.id", s.callID),
		attribute.String("artifact.id", recordingID),
	))
	defer span.End()

	s.mu.Lock()
	switch s.state {
	case StateEnded:
		s.mu.Unlock()
		return Hangup()
	case StateAwaitingRecording:
	default:
		state := s.state
		s.mu.Unlock()
		logger.Warn("recording event in unexpected state", "call", s.callID, "state", string(state))
		return s.reprompt(deps)
	}
	s.state = StateProcessing
	s.lastActivityAt = deps.now()

	pipelineCtx, cancel := context.WithCancel(ctx)
	s.cancelPipeline = cancel
	history := make([]respond.Turn, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()
	defer cancel()

	outcome := s.runPipeline(pipelineCtx, deps, recordingID, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPipeline = nil
	if s.state == StateEnded {
		// The caller hung up or the session was reaped mid-pipeline. Discard
		// the result; any artifact it produced stays unpinned for the reaper.
		span.AddEvent("pipeline result discarded: session ended")
		return Hangup()
	}
	s.state = StateResponding
	return s.respondLocked(ctx, deps, outcome)
}

// runPipeline executes the sequential pipeline stages, converting every
// stage failure into the fallback utterance path so the caller is never left
// in silence.
func (s *session) runPipeline(ctx context.Context, deps *sessionDeps, recordingID string, history []respond.Turn) pipelineOutcome {
	span := trace.SpanFromContext(ctx)

	audio, err := deps.retrieveArtifact(recordingID)
	if err != nil {
		// An expired or unknown recording is treated as silence rather than
		// surfaced to the telephony layer.
		span.RecordError(err)
		logger.Warn("recording artifact unavailable", "call", s.callID, "artifact", recordingID, "error", err)
		return s.packageReply(ctx, deps, pipelineOutcome{replyText: deps.config.clarification})
	}

	transcript, err := deps.transcribe(ctx, audio)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.packageReply(ctx, deps, pipelineOutcome{replyText: deps.config.fallback})
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		// Silent or unintelligible audio: clarification re-prompt, and the
		// generator is never invoked with empty input.
		span.AddEvent("empty transcript")
		return s.packageReply(ctx, deps, pipelineOutcome{replyText: deps.config.clarification})
	}

	reply, err := deps.generate(ctx, history, transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.packageReply(ctx, deps, pipelineOutcome{
			callerText: transcript,
			replyText:  deps.config.fallback,
			countTurn:  true,
		})
	}

	return s.packageReply(ctx, deps, pipelineOutcome{
		callerText:  transcript,
		replyText:   reply.Text,
		countTurn:   true,
		shouldClose: reply.ShouldClose,
	})
}

// packageReply synthesizes the outgoing utterance into a playable artifact.
// If the reply won't synthesize, the fixed apology gets one attempt; past
// that, the utterance degrades to the registered pre-recorded fallback audio
// or to a telephony-voiced Say step, so a spoken response always goes out.
func (s *session) packageReply(ctx context.Context, deps *sessionDeps, outcome pipelineOutcome) pipelineOutcome {
	span := trace.SpanFromContext(ctx)

	audio, err := deps.synthesize(ctx, outcome.replyText)
	if err != nil && outcome.replyText != deps.config.fallback {
		if retried, retryErr := deps.synthesize(ctx, deps.config.fallback); retryErr == nil {
			outcome.replyText = deps.config.fallback
			outcome.shouldClose = false
			audio, err = retried, nil
		}
	}
	if err == nil {
		id, createErr := deps.createArtifact(artifacts.KindSynthesizedReply, audio)
		if createErr == nil {
			outcome.artifactID = id
			return outcome
		}
		err = createErr
	}

	span.RecordError(err)
	logger.Warn("failed to prepare reply audio", "call", s.callID, "error", err)

	if deps.config.fallbackAudioID != "" {
		outcome.useFallbackAudio = true
		outcome.replyText = deps.config.callBackLater
		outcome.shouldClose = true
	}
	return outcome
}

// respondLocked applies a pipeline outcome: append history, write log
// entries, advance the turn counter, and emit the playback instruction.
// Caller holds s.mu.
func (s *session) respondLocked(ctx context.Context, deps *sessionDeps, outcome pipelineOutcome) Instruction {
	steps := []Step{}
	switch {
	case outcome.useFallbackAudio:
		steps = append(steps, PlayStep{ArtifactID: deps.config.fallbackAudioID})
	case outcome.artifactID != "":
		steps = append(steps, PlayStep{ArtifactID: outcome.artifactID})
	default:
		steps = append(steps, SayStep{Text: outcome.replyText})
	}

	if outcome.countTurn {
		now := deps.now()
		s.history = append(s.history,
			respond.Turn{Role: respond.RoleCaller, Text: outcome.callerText},
			respond.Turn{Role: respond.RoleAgent, Text: outcome.replyText},
		)
		deps.appendLog(ctx, conversationlog.Entry{
			CallID:    s.callID,
			Turn:      s.turn,
			Speaker:   conversationlog.SpeakerCaller,
			Text:      outcome.callerText,
			Timestamp: now,
		})
		deps.appendLog(ctx, conversationlog.Entry{
			CallID:     s.callID,
			Turn:       s.turn,
			Speaker:    conversationlog.SpeakerAgent,
			Text:       outcome.replyText,
			ArtifactID: outcome.artifactID,
			Timestamp:  now,
		})
		s.turn++
	}

	closing := outcome.shouldClose
	if !closing && outcome.countTurn && s.turn >= deps.config.maxTurns {
		steps = append(steps, SayStep{Text: deps.config.closing})
		closing = true
	}

	if closing {
		steps = append(steps, HangupStep{})
		s.state = StateEnded
	} else {
		steps = append(steps, RecordStep{})
		s.state = StateAwaitingRecording
	}
	s.lastActivityAt = deps.now()

	instruction := InstructionOf(steps...)
	s.repinLocked(deps, instruction.ArtifactIDs())
	return instruction
}

// repinLocked swaps the artifacts pinned for this session's last emitted
// instruction. Caller holds s.mu.
func (s *session) repinLocked(deps *sessionDeps, ids []string) {
	if deps.artifacts == nil {
		s.pinned = ids
		return
	}
	for _, id := range ids {
		deps.artifacts.Pin(id)
	}
	for _, id := range s.pinned {
		deps.artifacts.Unpin(id)
	}
	s.pinned = ids
}
