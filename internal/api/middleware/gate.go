package middleware

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	stageAuthenticate = "authenticate"
	stageAuthorize    = "authorize"
)

// AllowRule exempts matching requests from authentication.
type AllowRule struct {
	// Method restricts the rule to one method; "" matches any. GET rules
	// also match HEAD.
	Method string
	// Path is a slash-separated pattern; a {name} segment matches any
	// non-empty segment.
	Path string
	// ReadOnly limits the rule to GET and HEAD whatever Method says.
	ReadOnly bool
}

type compiledRule struct {
	rule     AllowRule
	segments []string
}

// AllowList holds the routes that skip authentication. A rule matches a
// request path either exactly or as a segment-aligned suffix, so the API
// keeps working when mounted under an extra prefix.
type AllowList struct {
	rules []compiledRule
}

func NewAllowList(rules ...AllowRule) *AllowList {
	list := &AllowList{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		segments := splitPath(rule.Path)
		if len(segments) == 0 {
			continue
		}
		rule.Method = strings.ToUpper(rule.Method)
		list.rules = append(list.rules, compiledRule{rule: rule, segments: segments})
	}
	return list
}

// Rules returns the configured rules.
func (a *AllowList) Rules() []AllowRule {
	if a == nil {
		return nil
	}
	out := make([]AllowRule, 0, len(a.rules))
	for _, c := range a.rules {
		out = append(out, c.rule)
	}
	return out
}

// Allows reports whether method and urlPath match any rule.
func (a *AllowList) Allows(method, urlPath string) bool {
	if a == nil {
		return false
	}
	segments := splitPath(urlPath)
	for _, c := range a.rules {
		if !methodMatches(c.rule, method) {
			continue
		}
		if matchSuffix(c.segments, segments) {
			return true
		}
	}
	return false
}

func methodMatches(rule AllowRule, method string) bool {
	read := method == http.MethodGet || method == http.MethodHead
	if rule.ReadOnly && !read {
		return false
	}
	switch rule.Method {
	case "":
		return true
	case http.MethodGet:
		return read
	default:
		return rule.Method == method
	}
}

// matchSuffix reports whether pattern equals path or its last segments.
func matchSuffix(pattern, segments []string) bool {
	if len(segments) < len(pattern) {
		return false
	}
	tail := segments[len(segments)-len(pattern):]
	for i, p := range pattern {
		if isWildcard(p) {
			if tail[i] == "" {
				return false
			}
			continue
		}
		if p != tail[i] {
			return false
		}
	}
	return true
}

func isWildcard(segment string) bool {
	return len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}'
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
}

// TokenVerifier resolves a session token to an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type gateKey string

const tokenSourceKey gateKey = "tokenSource"

// TokenSourceFromContext reports where the request's session token came from.
func TokenSourceFromContext(ctx context.Context) auth.TokenSource {
	source, _ := ctx.Value(tokenSourceKey).(auth.TokenSource)
	return source
}

// Authenticate resolves the caller's identity from the Bearer header or the
// session cookie, in that order, and attaches it to the request context.
//
// Requests matching allow pass through; a valid token on such a request is
// still resolved so handlers can see who is calling. Every other request
// without a token gets 401 "Unauthorized" and one with a bad or expired token
// gets 401 "Invalid or expired session".
func Authenticate(tokens TokenVerifier, allow *AllowList, cookieName, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := auth.TokenFromRequest(r, cookieName)

			if allow.Allows(r.Method, r.URL.Path) {
				if token != "" {
					if identity, err := tokens.Verify(token); err == nil {
						r = r.WithContext(withIdentity(r.Context(), identity, source))
					}
				}
				metrics.AuthDecisions.WithLabelValues(stageAuthenticate, "public").Inc()
				next.ServeHTTP(w, r)
				return
			}

			if token == "" {
				metrics.AuthDecisions.WithLabelValues(stageAuthenticate, "missing_token").Inc()
				problem.Write(w, r, http.StatusUnauthorized, problem.MsgUnauthorized, nil, env)
				return
			}

			identity, err := tokens.Verify(token)
			if err != nil {
				metrics.AuthDecisions.WithLabelValues(stageAuthenticate, "invalid_token").Inc()
				problem.Write(w, r, http.StatusUnauthorized, problem.MsgInvalidSession, err, env)
				return
			}

			metrics.AuthDecisions.WithLabelValues(stageAuthenticate, "allowed").Inc()
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, source)))
		})
	}
}

func withIdentity(ctx context.Context, identity auth.Identity, source auth.TokenSource) context.Context {
	ctx = auth.WithIdentity(ctx, identity)
	ctx = context.WithValue(ctx, tokenSourceKey, source)
	noteUser(ctx, identity.ID)

	logger := LoggerFromContext(ctx).With().Str("user_id", identity.ID).Logger()
	ctx = logger.WithContext(ctx)

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", identity.ID))
	return ctx
}

// PermissionChecker answers whether a user holds a permission.
type PermissionChecker interface {
	Has(ctx context.Context, userID string, perm auth.Permission) (bool, error)
}

// RequirePermission lets the request through only when the authenticated
// identity holds perm. The lookup is made on every request.
func RequirePermission(checker PermissionChecker, perm auth.Permission, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				metrics.AuthDecisions.WithLabelValues(stageAuthorize, "missing_token").Inc()
				problem.Write(w, r, http.StatusUnauthorized, problem.MsgUnauthorized, nil, env)
				return
			}

			allowed, err := checker.Has(r.Context(), identity.ID, perm)
			if err != nil {
				metrics.AuthDecisions.WithLabelValues(stageAuthorize, "error").Inc()
				problem.Write(w, r, http.StatusInternalServerError, "Internal server error", err, env)
				return
			}
			if !allowed {
				metrics.AuthDecisions.WithLabelValues(stageAuthorize, "forbidden").Inc()
				LoggerFromContext(r.Context()).Info().
					Str("permission", perm.String()).
					Str("path", r.URL.Path).
					Msg("permission denied")
				problem.Write(w, r, http.StatusForbidden, problem.MsgForbidden, domain.ErrAuthorizationDenied, env)
				return
			}

			metrics.AuthDecisions.WithLabelValues(stageAuthorize, "allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without an identity. Routes that
// need a session but no particular permission use it so a suffix match on
// the allow-list can never expose them.
func RequireAuthenticated(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.IdentityFromContext(r.Context()); !ok {
				metrics.AuthDecisions.WithLabelValues(stageAuthorize, "missing_token").Inc()
				problem.Write(w, r, http.StatusUnauthorized, problem.MsgUnauthorized, nil, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
