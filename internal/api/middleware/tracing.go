package middleware

import (
	"net/http"

	"github.com/eventops/server/internal/auth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/eventops/server/internal/api"

// Tracing starts a server span per request, continuing any W3C trace
// context found in the headers. The span is named after the raw path until
// TagRoute renames it to the matched route.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
				semconv.HTTPScheme(schemeFromRequest(r)),
				semconv.NetHostName(r.Host),
			),
		)
		defer span.End()

		ww := &tracingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))

		// CorrelationID usually runs inside this middleware; its ID is only
		// visible on the response by now.
		requestID := GetRequestID(ctx)
		if requestID == "" {
			requestID = w.Header().Get("X-Request-ID")
		}
		if requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		span.SetAttributes(semconv.HTTPStatusCode(ww.statusCode))
		if ww.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(ww.statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

// TagRoute renames the request span to "METHOD pattern" and records the
// route and the caller's identity. It runs after routing, where the
// pattern is known.
func TagRoute(method, pattern string) func(http.Handler) http.Handler {
	name := method + " " + pattern
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if span.IsRecording() {
				span.SetName(name)
				span.SetAttributes(semconv.HTTPRoute(pattern))
				if identity, ok := auth.IdentityFromContext(r.Context()); ok {
					span.SetAttributes(attribute.String("enduser.id", identity.ID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tracingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *tracingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func schemeFromRequest(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
