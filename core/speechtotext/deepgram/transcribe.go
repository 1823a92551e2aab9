// Package deepgram transcribes recorded call audio through the Deepgram
// prerecorded REST API.
package deepgram

import (
	"bytes"
	"context"
	"fmt"
	"os"

	listenapi "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dialcare/callvoice/core/speechtotext"
)

const (
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// TranscriptionClient is a batch transcription client for whole recorded
// utterances. Silent or unintelligible audio yields an empty transcript, not
// an error.
type TranscriptionClient struct {
	api *listenapi.Client
}

// NewTranscriptionClient creates a client authenticated through the
// DEEPGRAM_API_KEY environment variable.
func NewTranscriptionClient() (*TranscriptionClient, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	restClient := listen.NewREST(apiKey, &clientinterfaces.ClientOptions{})
	return &TranscriptionClient{api: listenapi.New(restClient)}, nil
}

// Transcribe submits one recorded utterance and returns its transcript.
func (c *TranscriptionClient) Transcribe(ctx context.Context, audio []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe recording")
	defer span.End()

	options := speechtotext.TranscriptionOptions{
		Model:    defaultModel,
		Language: defaultLanguage,
	}
	for _, opt := range opts {
		opt(&options)
	}
	span.SetAttributes(
		attribute.String("request.model", options.Model),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	if len(audio) == 0 {
		return "", nil
	}

	response, err := c.api.FromStream(ctx, bytes.NewReader(audio), &clientinterfaces.PreRecordedTranscriptionOptions{
		Model:       options.Model,
		Language:    options.Language,
		SmartFormat: true,
		Punctuate:   true,
	})
	if err != nil {
		err = fmt.Errorf("failed to transcribe audio: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if response == nil || len(response.Results.Channels) == 0 ||
		len(response.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}

	return response.Results.Channels[0].Alternatives[0].Transcript, nil
}
