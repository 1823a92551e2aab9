// Package telephony adapts a Twilio-style webhook telephony provider to the
// call orchestrator: it parses provider callbacks into typed events, fetches
// finished caller recordings into the artifact store, and renders orchestrator
// instructions back into TwiML.
package telephony

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type Kind string

const (
	KindCallAnswered     Kind = "call_answered"
	KindRecordingReady   Kind = "recording_ready"
	KindRecordingTimeout Kind = "recording_timeout"
	KindCallEnded        Kind = "call_ended"
)

// Event is one telephony callback, normalized away from provider form
// encoding.
type Event interface {
	Kind() Kind
	CallID() string
}

type Base struct {
	kind   Kind
	callID string
}

func NewBase(kind Kind, callID string) Base {
	return Base{kind: kind, callID: callID}
}

func (b Base) Kind() Kind     { return b.kind }
func (b Base) CallID() string { return b.callID }

type CallAnsweredEvent struct {
	Base
	Caller string
}

type RecordingReadyEvent struct {
	Base
	RecordingURL string
	Duration     time.Duration
}

type RecordingTimeoutEvent struct {
	Base
}

type CallEndedEvent struct {
	Base
	Status string
}

// terminalStatuses are the provider call states after which no further voice
// webhooks arrive for the call.
var terminalStatuses = map[string]struct{}{
	"completed": {},
	"busy":      {},
	"failed":    {},
	"no-answer": {},
	"canceled":  {},
}

// ParseForm classifies one webhook form into an event. Precedence follows
// the provider's callback shape: a recording URL marks a finished recording,
// a terminal call status marks the end of the call, and anything else is the
// initial answer callback.
func ParseForm(form url.Values) (Event, error) {
	callID := form.Get("CallSid")
	if callID == "" {
		return nil, fmt.Errorf("webhook form carries no CallSid")
	}

	if recordingURL := form.Get("RecordingUrl"); recordingURL != "" {
		seconds, _ := strconv.Atoi(form.Get("RecordingDuration"))
		return RecordingReadyEvent{
			Base:         NewBase(KindRecordingReady, callID),
			RecordingURL: recordingURL,
			Duration:     time.Duration(seconds) * time.Second,
		}, nil
	}

	if status := form.Get("CallStatus"); status != "" {
		if _, terminal := terminalStatuses[status]; terminal {
			return CallEndedEvent{
				Base:   NewBase(KindCallEnded, callID),
				Status: status,
			}, nil
		}
	}

	return CallAnsweredEvent{
		Base:   NewBase(KindCallAnswered, callID),
		Caller: form.Get("From"),
	}, nil
}
