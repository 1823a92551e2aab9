package openai

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/dialcare/callvoice/core/respond/openai"

var tracer = otel.Tracer(scopeName)
