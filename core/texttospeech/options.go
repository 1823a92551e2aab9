// Package texttospeech defines the synthesis contract between the call
// orchestrator and a text-to-speech adapter.
package texttospeech

type SynthesisOptions struct {
	Voice        string
	LanguageCode string
	SpeakingRate float64
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Voice = voice
	}
}

func WithLanguageCode(languageCode string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.LanguageCode = languageCode
	}
}

func WithSpeakingRate(rate float64) SynthesisOption {
	return func(o *SynthesisOptions) {
		if rate > 0 {
			o.SpeakingRate = rate
		}
	}
}
