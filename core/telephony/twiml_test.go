package telephony

import (
	"strings"
	"testing"

	orchestration "github.com/dialcare/callvoice/core"
)

func TestRenderGreetingDocument(t *testing.T) {
	renderer := NewRenderer(WithAudioBaseURL("https://example.com/audio"))

	document, err := renderer.Render(orchestration.InstructionOf(
		orchestration.SayStep{Text: "Hello! This is your dental clinic."},
		orchestration.RecordStep{},
	))
	if err != nil {
		t.Fatalf("expected render to succeed, got %v", err)
	}

	twiml := string(document)
	if !strings.HasPrefix(twiml, "<?xml") {
		t.Fatalf("expected xml header, got %q", twiml)
	}
	if !strings.Contains(twiml, `<Say voice="alice" language="en-US">Hello! This is your dental clinic.</Say>`) {
		t.Fatalf("expected say verb, got %q", twiml)
	}
	if !strings.Contains(twiml, `<Record`) || !strings.Contains(twiml, `maxLength="30"`) {
		t.Fatalf("expected record verb with max length, got %q", twiml)
	}
	if !strings.Contains(twiml, `action="/voice?source=record"`) {
		t.Fatalf("expected marked record action, got %q", twiml)
	}
	if !strings.Contains(twiml, `trim="trim-silence"`) || !strings.Contains(twiml, `playBeep="true"`) {
		t.Fatalf("expected record attributes, got %q", twiml)
	}
}

func TestRenderPlaybackAndHangup(t *testing.T) {
	renderer := NewRenderer(WithAudioBaseURL("https://example.com/audio/"))

	document, err := renderer.Render(orchestration.InstructionOf(
		orchestration.PlayStep{ArtifactID: "artifact-1"},
		orchestration.HangupStep{},
	))
	if err != nil {
		t.Fatalf("expected render to succeed, got %v", err)
	}

	twiml := string(document)
	if !strings.Contains(twiml, `<Play>https://example.com/audio/artifact-1</Play>`) {
		t.Fatalf("expected play verb with full audio URL, got %q", twiml)
	}
	if !strings.Contains(twiml, "<Hangup") {
		t.Fatalf("expected hangup verb, got %q", twiml)
	}
}

func TestRenderHonoursVoiceOptions(t *testing.T) {
	renderer := NewRenderer(
		WithVoice("Polly.Joanna"),
		WithLanguage("en-GB"),
		WithActionURL("https://example.com/voice"),
		WithMaxRecordingSeconds(10),
	)

	document, err := renderer.Render(orchestration.InstructionOf(
		orchestration.SayStep{Text: "Goodbye."},
		orchestration.RecordStep{},
	))
	if err != nil {
		t.Fatalf("expected render to succeed, got %v", err)
	}

	twiml := string(document)
	if !strings.Contains(twiml, `voice="Polly.Joanna"`) || !strings.Contains(twiml, `language="en-GB"`) {
		t.Fatalf("expected voice options, got %q", twiml)
	}
	if !strings.Contains(twiml, `action="https://example.com/voice?source=record"`) {
		t.Fatalf("expected action with source marker, got %q", twiml)
	}
	if !strings.Contains(twiml, `maxLength="10"`) {
		t.Fatalf("expected overridden max length, got %q", twiml)
	}
}
