package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/eventops/server/internal/auth"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// requestInfo is filled in by inner middleware so the access log can report
// facts resolved after it started.
type requestInfo struct {
	userID string
}

const requestInfoKey contextKey = "request_info"

func noteUser(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
}

// RequestLogging writes one access log line per request using the request
// logger set up by CorrelationID. Health probes are logged at debug.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		info := &requestInfo{}

		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

		logger := LoggerFromContext(r.Context())
		event := logger.Info()
		switch {
		case rw.status >= 500:
			event = logger.Error()
		case r.URL.Path == "/healthz" || r.URL.Path == "/readyz":
			event = logger.Debug()
		}
		if info.userID != "" {
			event = event.Str("user_id", info.userID)
		} else if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			event = event.Str("user_id", identity.ID)
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Int("bytes", rw.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
