package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testCookie = "eventops_session"

func testTokens() *auth.TokenService {
	return auth.NewTokenService([]byte("gate-test-secret"), time.Hour, "eventops-test")
}

func testAllowList() *AllowList {
	return NewAllowList(
		AllowRule{Method: http.MethodPost, Path: "/api/v1/auth/login"},
		AllowRule{Method: http.MethodPost, Path: "/api/v1/auth/register"},
		AllowRule{Method: http.MethodGet, Path: "/api/v1/events", ReadOnly: true},
		AllowRule{Method: http.MethodGet, Path: "/api/v1/events/{id}", ReadOnly: true},
		AllowRule{Path: "/healthz"},
	)
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			w.Header().Set("X-Identity", identity.ID)
			w.Header().Set("X-Token-Source", string(TokenSourceFromContext(r.Context())))
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAllowList_Matching(t *testing.T) {
	allow := testAllowList()

	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"exact", http.MethodPost, "/api/v1/auth/login", true},
		{"trailing slash", http.MethodPost, "/api/v1/auth/login/", true},
		{"mounted under prefix", http.MethodPost, "/ops/api/v1/auth/login", true},
		{"partial segment is not a suffix", http.MethodPost, "/api/v1/auth/xlogin", false},
		{"wrong method", http.MethodGet, "/api/v1/auth/login", false},
		{"public read GET", http.MethodGet, "/api/v1/events", true},
		{"public read HEAD", http.MethodHead, "/api/v1/events", true},
		{"public read wildcard", http.MethodGet, "/api/v1/events/abc", true},
		{"write on public read path", http.MethodPost, "/api/v1/events", false},
		{"delete on public read path", http.MethodDelete, "/api/v1/events/abc", false},
		{"deeper path not allowed", http.MethodGet, "/api/v1/events/abc/items", false},
		{"any method rule", http.MethodPost, "/healthz", true},
		{"protected path", http.MethodGet, "/api/v1/staff", false},
		{"root", http.MethodGet, "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allow.Allows(tt.method, tt.path))
		})
	}
}

func TestAllowList_EmptyPatternsIgnored(t *testing.T) {
	allow := NewAllowList(AllowRule{Path: ""}, AllowRule{Path: "/"})
	assert.Empty(t, allow.Rules())
	assert.False(t, allow.Allows(http.MethodGet, "/anything"))

	var nilList *AllowList
	assert.False(t, nilList.Allows(http.MethodGet, "/healthz"))
}

func TestAuthenticate_MissingToken(t *testing.T) {
	handler := Authenticate(testTokens(), testAllowList(), testCookie, "production")(identityEcho())
	before := testutil.ToFloat64(metrics.AuthDecisions.WithLabelValues("authenticate", "missing_token"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","status":401}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthDecisions.WithLabelValues("authenticate", "missing_token")))
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	handler := Authenticate(testTokens(), testAllowList(), testCookie, "production")(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired session","status":401}`, rec.Body.String())
}

func TestAuthenticate_TokenFromOtherSecretRejected(t *testing.T) {
	other := auth.NewTokenService([]byte("another-secret"), time.Hour, "eventops-test")
	token, _, err := other.Issue(auth.Identity{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	handler := Authenticate(testTokens(), testAllowList(), testCookie, "test")(identityEcho())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail"`, "test environment exposes detail")
}

func TestAuthenticate_BearerThenCookie(t *testing.T) {
	tokens := testTokens()
	headerToken, _, err := tokens.Issue(auth.Identity{ID: "from-header", Email: "h@example.com"})
	require.NoError(t, err)
	cookieToken, _, err := tokens.Issue(auth.Identity{ID: "from-cookie", Email: "c@example.com"})
	require.NoError(t, err)

	handler := Authenticate(tokens, testAllowList(), testCookie, "test")(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookieToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-header", rec.Header().Get("X-Identity"))
	assert.Equal(t, string(auth.TokenSourceHeader), rec.Header().Get("X-Token-Source"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: cookieToken})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-cookie", rec.Header().Get("X-Identity"))
	assert.Equal(t, string(auth.TokenSourceCookie), rec.Header().Get("X-Token-Source"))
}

func TestAuthenticate_AllowListedRoutes(t *testing.T) {
	tokens := testTokens()
	handler := Authenticate(tokens, testAllowList(), testCookie, "test")(identityEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// an invalid token does not block a public route
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Identity"))

	// a valid one is still resolved
	token, _, err := tokens.Issue(auth.Identity{ID: "u7", Email: "u7@example.com"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "u7", rec.Header().Get("X-Identity"))

	// writes to a public-read path still need a token
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Has(ctx context.Context, userID string, perm auth.Permission) (bool, error) {
	args := m.Called(ctx, userID, perm)
	return args.Bool(0), args.Error(1)
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ID: userID}))
	}
	return req
}

func TestRequirePermission(t *testing.T) {
	checker := &mockChecker{}
	checker.On("Has", mock.Anything, "u1", auth.PermStaffRead).Return(false, nil).Once()
	checker.On("Has", mock.Anything, "u1", auth.PermStaffRead).Return(true, nil).Once()
	handler := RequirePermission(checker, auth.PermStaffRead, "production")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("u1"))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden","status":403}`, rec.Body.String())

	// the grant takes effect on the next request: decisions are not cached
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("u1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	checker.AssertNumberOfCalls(t, "Has", 2)
}

func TestRequirePermission_NoIdentity(t *testing.T) {
	checker := &mockChecker{}
	handler := RequirePermission(checker, auth.PermStaffRead, "production")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	checker.AssertNotCalled(t, "Has", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequirePermission_StorageError(t *testing.T) {
	checker := &mockChecker{}
	checker.On("Has", mock.Anything, "u1", auth.PermStaffRead).Return(false, errors.New("connection refused"))
	handler := RequirePermission(checker, auth.PermStaffRead, "production")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("u1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	checker.AssertExpectations(t)
}

func TestRequireAuthenticated(t *testing.T) {
	handler := RequireAuthenticated("production")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ID: "u1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
