package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventops/server/internal/api/handlers"
	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/app"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/metrics"
	"github.com/rs/zerolog"
)

// RouterOptions carries what the router needs beyond configuration.
type RouterOptions struct {
	Services *app.Services
	Tokens   *auth.TokenService
	// Health may be nil; a checker for in-memory storage is used then.
	Health    *handlers.HealthChecker
	Logger    zerolog.Logger
	Version   string
	GitCommit string
	BuildDate string
}

// Router is the HTTP entry point. Close releases the rate limiter.
type Router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	routes  []Route
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Routes returns the route table the router was built from.
func (rt *Router) Routes() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

func (rt *Router) Close() {
	rt.limiter.Stop()
}

// NewRouter builds the route table, registers it on a ServeMux and wraps
// it in the shared middleware chain.
func NewRouter(cfg config.Config, opts RouterOptions) (*Router, error) {
	if opts.Services == nil {
		return nil, errors.New("router: services are required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("router: token service is required")
	}
	svc := opts.Services
	env := cfg.Environment

	health := opts.Health
	if health == nil {
		health = handlers.NewHealthChecker(nil, nil, opts.Version, opts.GitCommit)
	}

	h := routeHandlers{
		auth:      handlers.NewAuthHandler(svc.Users, svc.Access, opts.Tokens, cfg.Auth.CookieName, cfg.Server.RequireHTTPS, env),
		access:    handlers.NewAccessHandler(svc.Access, env),
		users:     handlers.NewUsersHandler(svc.Users, env),
		history:   handlers.NewHistoryHandler(svc.Recorder, env),
		events:    handlers.NewEventsHandler(svc.Events, env),
		staff:     handlers.NewStaffHandler(svc.Staff, env),
		equipment: handlers.NewEquipmentHandler(svc.Equipment, env),
		calendar:  handlers.NewCalendarHandler(svc.Calendar, env),
		dashboard: handlers.NewDashboardHandler(svc.Dashboard, env),
		health:    health,
		version:   VersionHandler(BuildInfo{Version: opts.Version, GitCommit: opts.GitCommit, BuildDate: opts.BuildDate}, env),
	}

	// The document handlers are filled in once the table exists.
	doc := &openAPIDocument{}
	h.openapi = doc.JSONHandler()
	h.openyaml = doc.YAMLHandler()
	routes := routeTable(h)
	if err := doc.build(routes, opts.Version, cfg.Auth.CookieName); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	mux := http.NewServeMux()
	for _, route := range routes {
		mux.Handle(route.Method+" "+route.Pattern, wrapRoute(route, svc.Access, limiter, env))
	}

	csrfKey, err := auth.DeriveCSRFKey([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		limiter.Stop()
		return nil, fmt.Errorf("router: derive csrf key: %w", err)
	}

	var handler http.Handler = mux
	handler = middleware.CSRFProtection(csrfKey, cfg.Server.RequireHTTPS)(handler)
	handler = middleware.Authenticate(opts.Tokens, allowList(routes), cfg.Auth.CookieName, env)(handler)
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.CORS(cfg.CORS, opts.Logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Server.RequireHTTPS)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(handler)
	handler = middleware.CorrelationID(opts.Logger)(handler)
	handler = middleware.Tracing(handler)

	return &Router{handler: handler, limiter: limiter, routes: routes}, nil
}

// wrapRoute applies the per-route chain: span and metric labels, rate limit
// tier, limiter, then the identity or permission check.
func wrapRoute(route Route, checker middleware.PermissionChecker, limiter *middleware.RateLimiter, env string) http.Handler {
	handler := route.Handler
	switch route.Access.Level {
	case LevelPermission:
		handler = middleware.RequirePermission(checker, route.Access.Permission, env)(handler)
	case LevelAuthenticated:
		handler = middleware.RequireAuthenticated(env)(handler)
	}
	handler = limiter.Middleware(handler)
	if route.RateTier != "" {
		handler = middleware.WithRateLimitTierHandler(route.RateTier)(handler)
	}
	handler = metrics.RouteLabel(route.Method + " " + route.Pattern)(handler)
	return middleware.TagRoute(route.Method, route.Pattern)(handler)
}
