package telephony

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	orchestration "github.com/dialcare/callvoice/core"
)

// CallHandler answers telephony events with the next playback instruction.
type CallHandler interface {
	OnCallAnswered(ctx context.Context, callID string) orchestration.Instruction
	OnRecordingReady(ctx context.Context, callID, artifactID string) orchestration.Instruction
	OnRecordingTimeout(ctx context.Context, callID string) orchestration.Instruction
	OnCallEnded(ctx context.Context, callID string)
}

// errorDocument is served when a webhook cannot be handled at all; the
// caller hears an apology instead of dead air.
const errorDocument = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>Sorry, there was an error with this call. Goodbye.</Say><Hangup></Hangup></Response>`

// Webhooks serves the provider's voice and status callbacks, translating
// them into orchestrator events and answering with TwiML.
type Webhooks struct {
	handler  CallHandler
	fetcher  *RecordingFetcher
	renderer *Renderer
}

type WebhookOption func(*Webhooks)

// WithRecordingFetcher wires the downloader that turns provider recording
// URLs into stored artifacts. Without it, recording callbacks degrade to the
// clarification path.
func WithRecordingFetcher(fetcher *RecordingFetcher) WebhookOption {
	return func(w *Webhooks) { w.fetcher = fetcher }
}

func WithRenderer(renderer *Renderer) WebhookOption {
	return func(w *Webhooks) { w.renderer = renderer }
}

func NewWebhooks(handler CallHandler, opts ...WebhookOption) *Webhooks {
	w := &Webhooks{
		handler:  handler,
		renderer: NewRenderer(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register mounts the webhook routes on mux: the voice callback (answer and
// recording events share one endpoint, as the provider posts both to the
// configured voice URL) and the call status callback.
func (w *Webhooks) Register(mux *http.ServeMux) {
	mux.Handle("POST "+defaultActionPath,
		otelhttp.NewHandler(http.HandlerFunc(w.handleVoice), "telephony voice webhook"))
	mux.Handle("POST "+defaultActionPath+"/status",
		otelhttp.NewHandler(http.HandlerFunc(w.handleStatus), "telephony status webhook"))
}

func (w *Webhooks) handleVoice(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		span.RecordError(err)
		writeDocument(rw, []byte(errorDocument))
		return
	}

	event, err := ParseForm(r.PostForm)
	if err != nil {
		span.RecordError(err)
		logger.Warn("unusable voice webhook", "error", err)
		writeDocument(rw, []byte(errorDocument))
		return
	}
	span.SetAttributes(
		attribute.String("call.id", event.CallID()),
		attribute.String("event.kind", string(event.Kind())),
	)

	var instruction orchestration.Instruction
	switch ev := event.(type) {
	case RecordingReadyEvent:
		instruction = w.handler.OnRecordingReady(ctx, ev.CallID(), w.fetchRecording(ctx, ev))
	case CallEndedEvent:
		w.handler.OnCallEnded(ctx, ev.CallID())
		instruction = orchestration.Hangup()
	case CallAnsweredEvent:
		// The Record verb posts back to this endpoint with a source marker;
		// such a callback without a recording means the caller said nothing.
		if r.URL.Query().Get(recordSourceParam) == recordSourceValue {
			instruction = w.handler.OnRecordingTimeout(ctx, ev.CallID())
		} else {
			instruction = w.handler.OnCallAnswered(ctx, ev.CallID())
		}
	default:
		instruction = orchestration.Hangup()
	}

	document, err := w.renderer.Render(instruction)
	if err != nil {
		span.RecordError(err)
		logger.Warn("failed to render twiml", "call", event.CallID(), "error", err)
		writeDocument(rw, []byte(errorDocument))
		return
	}
	writeDocument(rw, document)
}

func (w *Webhooks) handleStatus(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		span.RecordError(err)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := ParseForm(r.PostForm)
	if err != nil {
		span.RecordError(err)
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	if ended, ok := event.(CallEndedEvent); ok {
		span.SetAttributes(
			attribute.String("call.id", ended.CallID()),
			attribute.String("call.status", ended.Status),
		)
		w.handler.OnCallEnded(ctx, ended.CallID())
	}
	rw.WriteHeader(http.StatusNoContent)
}

// fetchRecording downloads the finished recording into the artifact store.
// On failure it returns an empty artifact ID so the orchestrator takes its
// clarification path instead of the webhook failing.
func (w *Webhooks) fetchRecording(ctx context.Context, ev RecordingReadyEvent) string {
	if w.fetcher == nil {
		logger.Warn("no recording fetcher configured", "call", ev.CallID())
		return ""
	}
	id, err := w.fetcher.Fetch(ctx, ev.RecordingURL)
	if err != nil {
		logger.Warn("failed to fetch recording", "call", ev.CallID(), "error", err)
		return ""
	}
	return id
}

func writeDocument(rw http.ResponseWriter, document []byte) {
	rw.Header().Set("Content-Type", "application/xml")
	rw.WriteHeader(http.StatusOK)
	rw.Write(document)
}
