package artifacts

import (
	"errors"
	"net/http"
	"path"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Handler returns an http.Handler that serves artifact audio bytes for the
// telephony layer's playback fetch. The final path segment is the artifact
// ID; unknown or already-reaped artifacts produce 404 so the caller can skip
// playback and proceed to hangup gracefully.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "serve artifact audio")
		defer span.End()

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := path.Base(r.URL.Path)
		span.SetAttributes(attribute.String("artifact.id", id))

		info, err := s.Info(id)
		if err != nil {
			span.SetStatus(codes.Error, "artifact not found")
			http.NotFound(w, r)
			return
		}

		audio, err := s.Retrieve(id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", info.Kind.ContentType())
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write(audio); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	})
}
