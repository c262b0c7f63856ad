package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that never reached a route handler:
// gate rejections, 404s and 405s. Raw paths are never used as labels.
const unmatchedRoute = "unmatched"

var sizeBuckets = prometheus.ExponentialBuckets(100, 10, 6)

// HTTP metrics, labelled by route pattern ("GET /api/v1/events/{id}").
var (
	HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route"},
	)

	HTTPRequestsInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	HTTPRequestSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request body size in bytes",
			Buckets:   sizeBuckets,
		},
		[]string{"route"},
	)

	HTTPResponseSize = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   sizeBuckets,
		},
		[]string{"route"},
	)
)

type routeKey struct{}

// routeSlot is shared between HTTPMiddleware and the route handler, which
// sees a copied request further down the chain.
type routeSlot struct {
	route string
}

// RouteLabel marks the request as served by route. Handlers wrapped by it
// report under that label instead of "unmatched".
func RouteLabel(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
				slot.route = route
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// HTTPMiddleware records request count, latency and sizes.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		slot := &routeSlot{route: unmatchedRoute}
		wrapped := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), routeKey{}, slot)))

		route := slot.route
		HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(wrapped.status())).Inc()
		HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if r.ContentLength > 0 {
			HTTPRequestSize.WithLabelValues(route).Observe(float64(r.ContentLength))
		}
		HTTPResponseSize.WithLabelValues(route).Observe(float64(wrapped.bytesWritten))
	})
}
