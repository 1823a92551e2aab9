// Package orchestration drives outbound voice calls turn by turn. It maps
// telephony events onto per-call sessions, runs the record→transcribe→
// generate→synthesize pipeline for each caller utterance, and answers every
// event with an instruction for the telephony layer to execute.
package orchestration

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator owns the session table and the background reaper. Adapters
// and stores are wired in through options; a zero-option orchestrator still
// answers every event, degrading to telephony-voiced fallback utterances.
type Orchestrator struct {
	deps sessionDeps

	sessionsMu sync.Mutex
	sessions   map[string]*session

	startOnce sync.Once
	closeOnce sync.Once
	closeCh   chan struct{}
	done      chan struct{}
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sessions: map[string]*session{},
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	o.deps.config = defaultConfig()
	o.deps.now = time.Now

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the background reaper that force-ends idle sessions and
// collects expired artifacts. Safe to call once; subsequent calls are no-ops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		go o.reapLoop(ctx)
	})
}

// Close stops the reaper and ends every active session. The orchestrator
// must not be used after Close.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closeCh)

		o.sessionsMu.Lock()
		sessions := make([]*session, 0, len(o.sessions))
		for _, s := range o.sessions {
			sessions = append(sessions, s)
		}
		o.sessions = map[string]*session{}
		o.sessionsMu.Unlock()

		for _, s := range sessions {
			if s.end(&o.deps) {
				logger.Info("call session ended", "call", s.callID, "reason", "orchestrator closed")
			}
		}

		o.startOnce.Do(func() { close(o.done) })
		<-o.done
	})
}

// OnCallAnswered handles the telephony answer event for callID. A fresh
// session greets the caller and starts recording; a duplicate answer for a
// still-active call resets that session rather than leaking a second one.
func (o *Orchestrator) OnCallAnswered(ctx context.Context, callID string) Instruction {
	ctx, span := tracer.Start(ctx, "call answered", trace.WithAttributes(
		attribute.String("call.id", callID),
	))
	defer span.End()

	o.sessionsMu.Lock()
	s, exists := o.sessions[callID]
	if !exists {
		s = newSession(callID, o.deps.now())
		o.sessions[callID] = s
	}
	o.sessionsMu.Unlock()

	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	if exists {
		logger.Warn("duplicate answer event, resetting session", "call", callID, "error", ErrDuplicateCall)
		span.RecordError(ErrDuplicateCall)
		span.AddEvent("session reset")
		s.reset(&o.deps)
	}

	logger.Info("call answered", "call", callID)
	return s.begin(&o.deps)
}

// OnRecordingReady handles a finished caller recording, identified by its
// artifact ID, and runs the full response pipeline. Events for unknown
// calls are answered with a hangup instruction rather than an error: the
// telephony layer may deliver recordings after the call already ended.
func (o *Orchestrator) OnRecordingReady(ctx context.Context, callID, artifactID string) Instruction {
	ctx, span := tracer.Start(ctx, "recording ready", trace.WithAttributes(
		attribute.String("call.id", callID),
		attribute.String("artifact.id", artifactID),
	))
	defer span.End()

	s, ok := o.lookup(callID)
	if !ok {
		logger.Warn("recording for unknown call", "call", callID, "artifact", artifactID)
		span.AddEvent("unknown call")
		return Hangup()
	}

	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	return s.processRecording(ctx, &o.deps, artifactID)
}

// OnRecordingTimeout handles the no-input case: the caller said nothing
// within the recording window. The session re-prompts without consuming a
// turn.
func (o *Orchestrator) OnRecordingTimeout(ctx context.Context, callID string) Instruction {
	_, span := tracer.Start(ctx, "recording timeout", trace.WithAttributes(
		attribute.String("call.id", callID),
	))
	defer span.End()

	s, ok := o.lookup(callID)
	if !ok {
		logger.Warn("recording timeout for unknown call", "call", callID)
		return Hangup()
	}

	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	logger.Info("no caller input, re-prompting", "call", callID)
	return s.reprompt(&o.deps)
}

// OnCallEnded handles the caller (or carrier) hanging up. Any in-flight
// pipeline for the call is cancelled immediately and its result discarded.
func (o *Orchestrator) OnCallEnded(ctx context.Context, callID string) {
	_, span := tracer.Start(ctx, "call ended", trace.WithAttributes(
		attribute.String("call.id", callID),
	))
	defer span.End()

	o.sessionsMu.Lock()
	s, ok := o.sessions[callID]
	delete(o.sessions, callID)
	o.sessionsMu.Unlock()

	if !ok {
		logger.Warn("end event for unknown call", "call", callID)
		return
	}
	if s.end(&o.deps) {
		logger.Info("call session ended", "call", callID, "reason", "caller hangup")
	}
}

// Session returns a point-in-time snapshot of the session for callID.
func (o *Orchestrator) Session(callID string) (SessionSnapshot, error) {
	s, ok := o.lookup(callID)
	if !ok {
		return SessionSnapshot{}, ErrUnknownCall
	}
	return s.snapshot(), nil
}

func (o *Orchestrator) lookup(callID string) (*session, bool) {
	o.sessionsMu.Lock()
	defer o.sessionsMu.Unlock()
	s, ok := o.sessions[callID]
	return s, ok
}

func (o *Orchestrator) reapLoop(ctx context.Context) {
	defer close(o.done)

	ticker := time.NewTicker(o.deps.config.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.closeCh:
			return
		case <-ticker.C:
			o.reapOnce()
		}
	}
}

// reapOnce force-ends sessions idle past the configured timeout and sweeps
// expired artifacts. Sessions that ended on their own are evicted here as
// well; their closing instruction has long been consumed by then.
func (o *Orchestrator) reapOnce() {
	now := o.deps.now()

	o.sessionsMu.Lock()
	var expired []*session
	for callID, s := range o.sessions {
		if s.idle(now, o.deps.config.idleTimeout) {
			expired = append(expired, s)
			delete(o.sessions, callID)
		}
	}
	o.sessionsMu.Unlock()

	for _, s := range expired {
		if s.end(&o.deps) {
			logger.Info("call session ended", "call", s.callID, "reason", "idle timeout")
		}
	}

	if o.deps.artifacts != nil {
		if n := o.deps.artifacts.Reap(); n > 0 {
			logger.Info("reaped expired artifacts", "count", n)
		}
	}
}
