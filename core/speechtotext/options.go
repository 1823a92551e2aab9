// Package speechtotext defines the transcription contract between the call
// orchestrator and a speech-to-text adapter.
package speechtotext

type TranscriptionOptions struct {
	Model    string
	Language string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
