package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddlewareLabelsByRoute(t *testing.T) {
	const route = "GET /api/v1/events/{id}"
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(route, "200"))

	inner := RouteLabel(route)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	// the route handler sees a copied request, as it does behind the gate
	copying := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner.ServeHTTP(w, r.WithContext(r.Context()))
	})

	for _, id := range []string{"6f1c2a9e-3b7d-4c1e-9a55-0d3c6b2e8f10", "01HYX3KQW7ERTV9XNBM2P8QJZF"} {
		HTTPMiddleware(copying).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events/"+id, nil))
	}

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(route, "200")); got != before+2 {
		t.Fatalf("expected two requests under %q, got %v -> %v", route, before, got)
	}
}

func TestHTTPMiddlewareUnmatched(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(unmatchedRoute, "401"))

	HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/no-such-thing/42", nil))

	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(unmatchedRoute, "401")); got != before+1 {
		t.Fatalf("expected rejected request under %q, got %v -> %v", unmatchedRoute, before, got)
	}
}

func TestRouteLabelWithoutMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	RouteLabel("GET /healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.status() != http.StatusCreated {
		t.Fatalf("expected first status 201, got %d", rw.status())
	}
}
