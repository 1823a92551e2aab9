package deepgram

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/dialcare/callvoice/core/speechtotext/deepgram"

var tracer = otel.Tracer(scopeName)
