package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// Logging creates middleware that logs each request with its status and
// latency. It also places a request-scoped logger in the context, so it must
// run inside RequestID to pick up the id.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger
			if id := GetRequestID(r); id != "" {
				reqLogger = logger.With(logging.RequestID(id))
			}
			r = r.WithContext(logging.NewContext(r.Context(), reqLogger))

			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.Path(r.URL.Path),
				logging.Int("status", sw.statusCode),
				logging.Latency(time.Since(start)),
			}
			if sw.statusCode >= http.StatusInternalServerError {
				reqLogger.Warn("http request", fields...)
			} else {
				reqLogger.Debug("http request", fields...)
			}
		})
	}
}
