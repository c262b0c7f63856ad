package middleware

import (
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/gorilla/csrf"
)

// CSRFHeader carries the token on unsafe cookie-authenticated requests.
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection guards requests whose session came from the auth cookie
// using the gorilla/csrf double-submit pattern. Bearer-authenticated and
// anonymous requests pass through untouched since the browser never attaches
// those credentials on its own.
//
// Place it after Authenticate so the token source is known. Clients fetch a
// token from GET /api/v1/auth/csrf and echo it in X-CSRF-Token.
func CSRFProtection(authKey []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if TokenSourceFromContext(r.Context()) != auth.TokenSourceCookie {
				next.ServeHTTP(w, r)
				return
			}
			if !secure && r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	logger.Warn().
		Err(csrf.FailureReason(r)).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg("csrf validation failed")
	problem.WriteBody(w, problem.Body{Error: "CSRF token validation failed", Status: http.StatusForbidden})
}

// CSRFToken returns the token for the current cookie session, or "" when
// the request is not cookie-authenticated.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
