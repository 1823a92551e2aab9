package google

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/dialcare/callvoice/core/texttospeech/google"

var tracer = otel.Tracer(scopeName)
