package orchestration

import (
	"context"
	"fmt"

	"github.com/dialcare/callvoice/core/artifacts"
	"github.com/dialcare/callvoice/core/conversationlog"
	"github.com/dialcare/callvoice/core/respond"
)

// Nil-guarded facades over the configured adapters. Each applies the
// per-stage deadline and wraps failures in a StageError so callers can tell
// which stage broke.

func (d *sessionDeps) transcribe(ctx context.Context, audio []byte) (string, error) {
	if d.transcriber == nil {
		return "", &StageError{Stage: StageTranscription, Err: errNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, d.config.transcriptionTimeout)
	defer cancel()

	transcript, err := d.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", &StageError{Stage: StageTranscription, Err: err}
	}
	return transcript, nil
}

func (d *sessionDeps) generate(ctx context.Context, history []respond.Turn, utterance string) (*respond.Reply, error) {
	if d.generator == nil {
		return nil, &StageError{Stage: StageGeneration, Err: errNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, d.config.generationTimeout)
	defer cancel()

	reply, err := d.generator.Generate(ctx, utterance, respond.WithTurns(history...))
	if err != nil {
		return nil, &StageError{Stage: StageGeneration, Err: err}
	}
	if reply == nil {
		return nil, &StageError{Stage: StageGeneration, Err: fmt.Errorf("generator returned no reply")}
	}
	return reply, nil
}

func (d *sessionDeps) synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.synthesizer == nil {
		return nil, &StageError{Stage: StageSynthesis, Err: errNotConfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, d.config.synthesisTimeout)
	defer cancel()

	audio, err := d.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesis, Err: err}
	}
	return audio, nil
}

func (d *sessionDeps) retrieveArtifact(id string) ([]byte, error) {
	if d.artifacts == nil {
		return nil, errNotConfigured
	}
	return d.artifacts.Retrieve(id)
}

func (d *sessionDeps) createArtifact(kind artifacts.Kind, audio []byte) (string, error) {
	if d.artifacts == nil {
		return "", errNotConfigured
	}
	return d.artifacts.Create(kind, audio)
}

// appendLog writes one transcript entry. Log failures never interrupt a
// call; they are reported and the call carries on.
func (d *sessionDeps) appendLog(ctx context.Context, entry conversationlog.Entry) {
	if d.log == nil {
		return
	}
	if err := d.log.Append(ctx, entry); err != nil {
		logger.Warn("failed to append conversation log entry",
			"call", entry.CallID,
			"turn", entry.Turn,
			"speaker", string(entry.Speaker),
			"error", err,
		)
	}
}
