// Package middleware provides the HTTP middleware of the graphmetrics API.
//
//   - recovery.go: panic recovery
//   - logging.go: request logging through the structured logger
//   - cors.go: Cross-Origin Resource Sharing
//   - security_headers.go: response hardening headers
//   - body_limit.go: request body size limit
//   - request_id.go: X-Request-ID propagation
//   - metrics.go: Prometheus request metrics
//
// Every middleware has the shape func(http.Handler) http.Handler, so they
// chain by nesting:
//
//	handler := middleware.PanicRecovery(logger, writeErr)(mux)
//	handler = middleware.RequestID()(handler)
//	handler = middleware.Logging(logger)(handler)
//	handler = middleware.CORS(middleware.DefaultCORSConfig())(handler)
package middleware

import "net/http"

// ErrorWriter writes an error response in the API's error format
type ErrorWriter func(w http.ResponseWriter, status int, message string)

// plainError is used when no ErrorWriter is given
func plainError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

func orPlain(ew ErrorWriter) ErrorWriter {
	if ew == nil {
		return plainError
	}
	return ew
}
