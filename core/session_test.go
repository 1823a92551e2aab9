package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/dialcare/callvoice/core/conversationlog"
	"github.com/dialcare/callvoice/core/respond"
)

func TestSynthesisFailureFallsBackToSpokenText(t *testing.T) {
	store := newTestStore(t)

	o := NewOrchestrator(
		WithArtifactStore(store),
		WithTranscriber(&transcriberStub{
			transcribe: func(context.Context, []byte) (string, error) { return "yes", nil },
		}),
		WithReplyGenerator(&generatorStub{
			generate: func(context.Context, string, respond.PromptOptions) (*respond.Reply, error) {
				return &respond.Reply{Text: "when suits you?"}, nil
			},
		}),
		WithSpeechSynthesizer(&synthesizerStub{
			synthesize: func(context.Context, string) ([]byte, error) {
				return nil, errors.New("voice backend down")
			},
		}),
	)

	o.OnCallAnswered(context.Background(), "call-1")
	instruction := o.OnRecordingReady(context.Background(), "call-1", storeRecording(t, store, "x"))

	say, ok := instruction.Steps[0].(SayStep)
	if !ok || say.Text != "when suits you?" {
		t.Fatalf("expected the reply spoken by the telephony voice, got %v", instruction.Steps[0])
	}

	snapshot, _ := o.Session("call-1")
	if snapshot.Turn != 1 {
		t.Fatalf("expected the turn to still count, got %d", snapshot.Turn)
	}
}

func TestSynthesisFailureRetriesWithApology(t *testing.T) {
	store := newTestStore(t)
	log := conversationlog.NewMemoryLog()

	o := NewOrchestrator(
		WithArtifactStore(store),
		WithConversationLog(log),
		WithTranscriber(&transcriberStub{
			transcribe: func(context.Context, []byte) (string, error) { return "yes", nil },
		}),
		WithReplyGenerator(&generatorStub{
			generate: func(context.Context, string, respond.PromptOptions) (*respond.Reply, error) {
				return &respond.Reply{Text: "when suits you?"}, nil
			},
		}),
		WithSpeechSynthesizer(&synthesizerStub{
			synthesize: func(_ context.Context, text string) ([]byte, error) {
				if text != defaultFallback {
					return nil, errors.New("voice rejected text")
				}
				return []byte("audio:" + text), nil
			},
		}),
	)

	o.OnCallAnswered(context.Background(), "call-1")
	instruction := o.OnRecordingReady(context.Background(), "call-1", storeRecording(t, store, "x"))

	playStep, ok := instruction.Steps[0].(PlayStep)
	if !ok {
		t.Fatalf("expected apology playback, got %v", instruction.Steps[0])
	}
	audio, _ := store.Retrieve(playStep.ArtifactID)
	if string(audio) != "audio:"+defaultFallback {
		t.Fatalf("expected synthesized apology, got %q", audio)
	}

	entries, _ := log.History(context.Background(), "call-1")
	if len(entries) != 2 || entries[1].Text != defaultFallback {
		t.Fatalf("expected apology logged as the agent turn, got %v", entries)
	}
}

func TestSynthesisFailureUsesFallbackAudio(t *testing.T) {
	store := newTestStore(t)
	log := conversationlog.NewMemoryLog()

	o := NewOrchestrator(
		WithArtifactStore(store),
		WithConversationLog(log),
		WithFallbackAudio("prerecorded-1"),
		WithTranscriber(&transcriberStub{
			transcribe: func(context.Context, []byte) (string, error) { return "yes", nil },
		}),
		WithReplyGenerator(&generatorStub{
			generate: func(context.Context, string, respond.PromptOptions) (*respond.Reply, error) {
				return &respond.Reply{Text: "when suits you?"}, nil
			},
		}),
		WithSpeechSynthesizer(&synthesizerStub{
			synthesize: func(context.Context, string) ([]byte, error) {
				return nil, errors.New("voice backend down")
			},
		}),
	)

	o.OnCallAnswered(context.Background(), "call-1")
	instruction := o.OnRecordingReady(context.Background(), "call-1", storeRecording(t, store, "x"))

	playStep, ok := instruction.Steps[0].(PlayStep)
	if !ok || playStep.ArtifactID != "prerecorded-1" {
		t.Fatalf("expected pre-recorded fallback playback, got %v", instruction.Steps[0])
	}
	if !instruction.EndsCall() {
		t.Fatalf("expected the fallback audio path to end the call, got %v", instruction.Steps)
	}

	entries, _ := log.History(context.Background(), "call-1")
	if len(entries) != 2 || entries[1].Text != defaultCallBackLater {
		t.Fatalf("expected the call-back utterance logged as the agent turn, got %v", entries)
	}
}

func TestGreetingAudioPlaysInsteadOfSay(t *testing.T) {
	o := NewOrchestrator(WithGreetingAudio("greeting-1"))

	instruction := o.OnCallAnswered(context.Background(), "call-1")

	playStep, ok := instruction.Steps[0].(PlayStep)
	if !ok || playStep.ArtifactID != "greeting-1" {
		t.Fatalf("expected pre-recorded greeting playback, got %v", instruction.Steps[0])
	}
	if _, ok := instruction.Steps[1].(RecordStep); !ok {
		t.Fatalf("expected record step after greeting, got %v", instruction.Steps[1])
	}
}
