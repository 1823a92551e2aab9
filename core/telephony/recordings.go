package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dialcare/callvoice/core/artifacts"
)

const maxRecordingBytes = 32 << 20

// ArtifactCreator is the slice of the artifact store the fetcher needs.
type ArtifactCreator interface {
	Create(kind artifacts.Kind, audio []byte) (string, error)
}

// RecordingFetcher downloads a finished caller recording from the telephony
// provider and files it into the artifact store.
type RecordingFetcher struct {
	client     *http.Client
	store      ArtifactCreator
	accountSID string
	authToken  string
}

type FetcherOption func(*RecordingFetcher)

// WithCredentials overrides the provider API credentials read from
// TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN.
func WithCredentials(accountSID, authToken string) FetcherOption {
	return func(f *RecordingFetcher) {
		f.accountSID = accountSID
		f.authToken = authToken
	}
}

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *RecordingFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func NewRecordingFetcher(store ArtifactCreator, opts ...FetcherOption) *RecordingFetcher {
	f := &RecordingFetcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		store:      store,
		accountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		authToken:  strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the recording behind recordingURL and stores it, returning
// the new artifact's ID. Provider recording URLs are tried with the format
// suffixes the API accepts before giving up.
func (f *RecordingFetcher) Fetch(ctx context.Context, recordingURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch recording", trace.WithAttributes(
		attribute.String("recording.url", recordingURL),
	))
	defer span.End()

	authenticated := f.useAuth(recordingURL)
	candidates := []string{recordingURL}
	if authenticated {
		candidates = []string{
			recordingURL + ".wav",
			recordingURL + ".mp3",
			recordingURL + "?Download=true",
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		audio, err := f.download(ctx, candidate, authenticated)
		if err != nil {
			lastErr = err
			continue
		}

		id, err := f.store.Create(artifacts.KindIncomingRecording, audio)
		if err != nil {
			return "", fmt.Errorf("failed to store recording: %w", err)
		}
		span.SetAttributes(attribute.String("artifact.id", id))
		return id, nil
	}

	return "", fmt.Errorf("failed to download recording: %w", lastErr)
}

func (f *RecordingFetcher) download(ctx context.Context, url string, authenticated bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recording request: %w", err)
	}
	if authenticated {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording fetch returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read recording body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("recording body was empty")
	}
	return audio, nil
}

func (f *RecordingFetcher) useAuth(url string) bool {
	return strings.Contains(url, "api.twilio.com") && f.accountSID != "" && f.authToken != ""
}
