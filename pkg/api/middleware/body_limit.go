package middleware

import (
	"net/http"
)

// BodySizeLimit rejects requests whose declared length exceeds maxBytes and
// caps the body reader for the rest, including chunked uploads. Graph
// payloads are large, so the limit is configurable rather than fixed.
func BodySizeLimit(maxBytes int64, writeErr ErrorWriter) func(http.Handler) http.Handler {
	writeErr = orPlain(writeErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErr(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
