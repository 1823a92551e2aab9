package telephony

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	orchestration "github.com/dialcare/callvoice/core"
)

const (
	defaultVoice         = "alice"
	defaultLanguage      = "en-US"
	defaultActionPath    = "/voice"
	defaultMaxRecordSecs = 30

	// recordSourceParam marks the Record verb's action URL so a callback
	// without a recording can be told apart from the initial answer webhook.
	recordSourceParam = "source"
	recordSourceValue = "record"
)

type say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type record struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
	Trim      string   `xml:"trim,attr,omitempty"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Renderer turns orchestrator instructions into TwiML documents.
type Renderer struct {
	audioBaseURL string
	actionURL    string
	voice        string
	language     string
	maxRecordSec int
}

type RendererOption func(*Renderer)

// WithAudioBaseURL sets the public base URL under which synthesized
// artifacts are served; Play verbs reference <base>/<artifactID>.
func WithAudioBaseURL(base string) RendererOption {
	return func(r *Renderer) { r.audioBaseURL = strings.TrimRight(base, "/") }
}

// WithActionURL sets the webhook URL recordings are posted back to.
func WithActionURL(action string) RendererOption {
	return func(r *Renderer) { r.actionURL = action }
}

func WithVoice(voice string) RendererOption {
	return func(r *Renderer) { r.voice = voice }
}

func WithLanguage(language string) RendererOption {
	return func(r *Renderer) { r.language = language }
}

// WithMaxRecordingSeconds caps the length of one caller utterance.
func WithMaxRecordingSeconds(seconds int) RendererOption {
	return func(r *Renderer) {
		if seconds > 0 {
			r.maxRecordSec = seconds
		}
	}
}

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		actionURL:    defaultActionPath,
		voice:        defaultVoice,
		language:     defaultLanguage,
		maxRecordSec: defaultMaxRecordSecs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render serializes one instruction into a TwiML document.
func (r *Renderer) Render(instruction orchestration.Instruction) ([]byte, error) {
	resp := response{}
	for _, step := range instruction.Steps {
		switch s := step.(type) {
		case orchestration.SayStep:
			resp.Verbs = append(resp.Verbs, say{Voice: r.voice, Language: r.language, Text: s.Text})
		case orchestration.PlayStep:
			resp.Verbs = append(resp.Verbs, play{URL: r.audioURL(s.ArtifactID)})
		case orchestration.RecordStep:
			resp.Verbs = append(resp.Verbs, record{
				Action:    r.recordActionURL(),
				Method:    "POST",
				MaxLength: r.maxRecordSec,
				PlayBeep:  true,
				Trim:      "trim-silence",
			})
		case orchestration.HangupStep:
			resp.Verbs = append(resp.Verbs, hangup{})
		default:
			return nil, fmt.Errorf("unsupported instruction step %T", step)
		}
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func (r *Renderer) audioURL(artifactID string) string {
	if r.audioBaseURL == "" {
		return artifactID
	}
	return r.audioBaseURL + "/" + artifactID
}

func (r *Renderer) recordActionURL() string {
	action, err := url.Parse(r.actionURL)
	if err != nil {
		return r.actionURL
	}
	query := action.Query()
	query.Set(recordSourceParam, recordSourceValue)
	action.RawQuery = query.Encode()
	return action.String()
}
