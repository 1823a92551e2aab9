// Package google synthesizes agent utterances with the Google Cloud
// Text-to-Speech API.
package google

import (
	"context"
	"fmt"

	googletts "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dialcare/callvoice/core/texttospeech"
)

const (
	defaultVoice        = "en-US-Neural2-F"
	defaultLanguageCode = "en-US"
)

// SynthesisClient converts utterance text into playable MP3 audio.
type SynthesisClient struct {
	api *googletts.Client
}

// NewSynthesisClient creates a client using ambient Google application
// credentials.
func NewSynthesisClient(ctx context.Context) (*SynthesisClient, error) {
	api, err := googletts.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	return &SynthesisClient{api: api}, nil
}

// Synthesize renders text as MP3 audio bytes.
func (c *SynthesisClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := texttospeech.SynthesisOptions{
		Voice:        defaultVoice,
		LanguageCode: defaultLanguageCode,
	}
	for _, opt := range opts {
		opt(&options)
	}
	span.SetAttributes(
		attribute.String("request.voice", options.Voice),
		attribute.Int("request.text_length", len(text)),
	)

	audioConfig := &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3}
	if options.SpeakingRate > 0 {
		audioConfig.SpeakingRate = options.SpeakingRate
	}

	response, err := c.api.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: options.LanguageCode,
			Name:         options.Voice,
		},
		AudioConfig: audioConfig,
	})
	if err != nil {
		err = fmt.Errorf("failed to synthesize speech: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return response.AudioContent, nil
}

// Close releases the underlying API connection.
func (c *SynthesisClient) Close() error {
	return c.api.Close()
}
