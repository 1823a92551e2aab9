package orchestration

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCall marks an event for a call that has no live session,
	// e.g. one already evicted by the idle reaper.
	ErrUnknownCall = errors.New("no session for call")
	// ErrDuplicateCall marks an answered-event for a call that already has a
	// live session. The session is reset rather than failed.
	ErrDuplicateCall = errors.New("session already active for call")

	errNotConfigured = errors.New("adapter not configured")
)

// Stage identifies a pipeline stage for failure tagging.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSynthesis     Stage = "synthesis"
)

// StageError wraps an adapter failure or timeout with the stage it occurred
// in. Stage errors are recovered locally into fallback utterances and never
// reach the telephony layer.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
