package api

import (
	"net/http"

	"github.com/eventops/server/internal/api/handlers"
	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/metrics"
)

// AccessLevel says what a route demands of the caller.
type AccessLevel int

const (
	// LevelPublic routes skip authentication for every method they serve.
	LevelPublic AccessLevel = iota
	// LevelPublicRead routes skip authentication for GET and HEAD only.
	LevelPublicRead
	// LevelAuthenticated routes need a valid session.
	LevelAuthenticated
	// LevelPermission routes need a valid session holding Access.Permission.
	LevelPermission
)

// Access is a route's requirement.
type Access struct {
	Level      AccessLevel
	Permission auth.Permission
}

var (
	Public        = Access{Level: LevelPublic}
	PublicRead    = Access{Level: LevelPublicRead}
	Authenticated = Access{Level: LevelAuthenticated}
)

// Requires demands a valid session holding perm.
func Requires(perm auth.Permission) Access {
	return Access{Level: LevelPermission, Permission: perm}
}

// IsPublic reports whether the route is on the authentication allow-list.
func (a Access) IsPublic() bool {
	return a.Level == LevelPublic || a.Level == LevelPublicRead
}

func (a Access) String() string {
	switch a.Level {
	case LevelPublic:
		return "public"
	case LevelPublicRead:
		return "public-read"
	case LevelAuthenticated:
		return "authenticated"
	default:
		return "permission:" + a.Permission.String()
	}
}

// Route is one entry of the route table. The allow-list, the per-route
// permission checks and the OpenAPI document are all derived from it.
type Route struct {
	Method  string
	Pattern string
	Access  Access
	// RateTier overrides the limiter tier; "" picks public or authenticated
	// from the caller. Probes and scrapes use TierExempt.
	RateTier middleware.RateLimitTier
	Tag      string
	Summary  string
	Handler  http.Handler
}

// routeHandlers groups the endpoint implementations referenced by the table.
type routeHandlers struct {
	auth      *handlers.AuthHandler
	access    *handlers.AccessHandler
	users     *handlers.UsersHandler
	history   *handlers.HistoryHandler
	events    *handlers.EventsHandler
	staff     *handlers.StaffHandler
	equipment *handlers.EquipmentHandler
	calendar  *handlers.CalendarHandler
	dashboard *handlers.DashboardHandler
	health    *handlers.HealthChecker
	version   http.Handler
	openapi   http.Handler
	openyaml  http.Handler
}

func routeTable(h routeHandlers) []Route {
	fn := func(f http.HandlerFunc) http.Handler { return f }

	return []Route{
		{Method: http.MethodGet, Pattern: "/healthz", Access: Public, RateTier: middleware.TierExempt, Tag: "system", Summary: "Liveness probe", Handler: handlers.Healthz()},
		{Method: http.MethodGet, Pattern: "/readyz", Access: Public, RateTier: middleware.TierExempt, Tag: "system", Summary: "Readiness probe", Handler: h.health.Readyz()},
		{Method: http.MethodGet, Pattern: "/metrics", Access: Public, RateTier: middleware.TierExempt, Tag: "system", Summary: "Prometheus metrics", Handler: metrics.Handler()},
		{Method: http.MethodGet, Pattern: "/version", Access: Public, Tag: "system", Summary: "Build information", Handler: h.version},
		{Method: http.MethodGet, Pattern: "/api/v1/openapi.json", Access: Public, Tag: "system", Summary: "OpenAPI document (JSON)", Handler: h.openapi},
		{Method: http.MethodGet, Pattern: "/api/v1/openapi.yaml", Access: Public, Tag: "system", Summary: "OpenAPI document (YAML)", Handler: h.openyaml},

		{Method: http.MethodPost, Pattern: "/api/v1/auth/register", Access: Public, RateTier: middleware.TierLogin, Tag: "auth", Summary: "Create an account and start a session", Handler: fn(h.auth.Register)},
		{Method: http.MethodPost, Pattern: "/api/v1/auth/login", Access: Public, RateTier: middleware.TierLogin, Tag: "auth", Summary: "Start a session", Handler: fn(h.auth.Login)},
		{Method: http.MethodPost, Pattern: "/api/v1/auth/logout", Access: Public, Tag: "auth", Summary: "Clear the session cookie", Handler: fn(h.auth.Logout)},
		{Method: http.MethodGet, Pattern: "/api/v1/auth/me", Access: Authenticated, Tag: "auth", Summary: "Current account and permissions", Handler: fn(h.auth.Me)},
		{Method: http.MethodPatch, Pattern: "/api/v1/auth/me", Access: Authenticated, Tag: "auth", Summary: "Update own profile", Handler: fn(h.auth.UpdateMe)},
		{Method: http.MethodPut, Pattern: "/api/v1/auth/me/password", Access: Authenticated, Tag: "auth", Summary: "Change own password", Handler: fn(h.auth.ChangePassword)},
		{Method: http.MethodGet, Pattern: "/api/v1/auth/csrf", Access: Authenticated, Tag: "auth", Summary: "CSRF token for cookie sessions", Handler: fn(h.auth.CSRF)},

		{Method: http.MethodGet, Pattern: "/api/v1/access/permissions", Access: Authenticated, Tag: "access", Summary: "Permission vocabulary", Handler: fn(h.access.Vocabulary)},
		{Method: http.MethodGet, Pattern: "/api/v1/access/presets", Access: Authenticated, Tag: "access", Summary: "Role presets", Handler: fn(h.access.Presets)},
		{Method: http.MethodGet, Pattern: "/api/v1/access/me", Access: Authenticated, Tag: "access", Summary: "Own permission set", Handler: fn(h.access.Mine)},
		{Method: http.MethodGet, Pattern: "/api/v1/access/users/{id}/permissions", Access: Requires(auth.PermAccessManage), Tag: "access", Summary: "A user's permission set", Handler: fn(h.access.GetUser)},
		{Method: http.MethodPut, Pattern: "/api/v1/access/users/{id}/permissions", Access: Requires(auth.PermAccessManage), Tag: "access", Summary: "Replace a user's permission set", Handler: fn(h.access.SetUser)},
		{Method: http.MethodPost, Pattern: "/api/v1/access/users/{id}/preset", Access: Requires(auth.PermAccessManage), Tag: "access", Summary: "Apply a role preset to a user", Handler: fn(h.access.ApplyPreset)},
		{Method: http.MethodGet, Pattern: "/api/v1/users", Access: Requires(auth.PermAccessManage), Tag: "access", Summary: "List accounts", Handler: fn(h.users.List)},
		{Method: http.MethodGet, Pattern: "/api/v1/users/{id}", Access: Requires(auth.PermAccessManage), Tag: "access", Summary: "Get an account", Handler: fn(h.users.Get)},

		{Method: http.MethodGet, Pattern: "/api/v1/history", Access: Requires(auth.PermHistoryRead), Tag: "history", Summary: "Change history, newest first", Handler: fn(h.history.List)},

		{Method: http.MethodGet, Pattern: "/api/v1/events", Access: PublicRead, Tag: "events", Summary: "List events", Handler: fn(h.events.List)},
		{Method: http.MethodGet, Pattern: "/api/v1/events/{id}", Access: PublicRead, Tag: "events", Summary: "Get an event", Handler: fn(h.events.Get)},
		{Method: http.MethodPost, Pattern: "/api/v1/events", Access: Requires(auth.PermEventsWrite), Tag: "events", Summary: "Create an event", Handler: fn(h.events.Create)},
		{Method: http.MethodPatch, Pattern: "/api/v1/events/{id}", Access: Requires(auth.PermEventsWrite), Tag: "events", Summary: "Update an event", Handler: fn(h.events.Update)},
		{Method: http.MethodDelete, Pattern: "/api/v1/events/{id}", Access: Requires(auth.PermEventsWrite), Tag: "events", Summary: "Delete an event", Handler: fn(h.events.Delete)},

		{Method: http.MethodGet, Pattern: "/api/v1/staff", Access: Requires(auth.PermStaffRead), Tag: "staff", Summary: "List staff", Handler: fn(h.staff.List)},
		{Method: http.MethodGet, Pattern: "/api/v1/staff/{id}", Access: Requires(auth.PermStaffRead), Tag: "staff", Summary: "Get a staff member", Handler: fn(h.staff.Get)},
		{Method: http.MethodPost, Pattern: "/api/v1/staff", Access: Requires(auth.PermStaffWrite), Tag: "staff", Summary: "Add a staff member", Handler: fn(h.staff.Create)},
		{Method: http.MethodPatch, Pattern: "/api/v1/staff/{id}", Access: Requires(auth.PermStaffWrite), Tag: "staff", Summary: "Update a staff member", Handler: fn(h.staff.Update)},
		{Method: http.MethodDelete, Pattern: "/api/v1/staff/{id}", Access: Requires(auth.PermStaffWrite), Tag: "staff", Summary: "Remove a staff member", Handler: fn(h.staff.Delete)},

		{Method: http.MethodGet, Pattern: "/api/v1/equipment", Access: Requires(auth.PermEquipmentRead), Tag: "equipment", Summary: "List equipment", Handler: fn(h.equipment.List)},
		{Method: http.MethodGet, Pattern: "/api/v1/equipment/{id}", Access: Requires(auth.PermEquipmentRead), Tag: "equipment", Summary: "Get an equipment item", Handler: fn(h.equipment.Get)},
		{Method: http.MethodPost, Pattern: "/api/v1/equipment", Access: Requires(auth.PermEquipmentWrite), Tag: "equipment", Summary: "Add an equipment item", Handler: fn(h.equipment.Create)},
		{Method: http.MethodPatch, Pattern: "/api/v1/equipment/{id}", Access: Requires(auth.PermEquipmentWrite), Tag: "equipment", Summary: "Update an equipment item", Handler: fn(h.equipment.Update)},
		{Method: http.MethodDelete, Pattern: "/api/v1/equipment/{id}", Access: Requires(auth.PermEquipmentWrite), Tag: "equipment", Summary: "Remove an equipment item", Handler: fn(h.equipment.Delete)},

		{Method: http.MethodGet, Pattern: "/api/v1/calendar", Access: Requires(auth.PermCalendarRead), Tag: "calendar", Summary: "Events grouped by day", Handler: fn(h.calendar.Schedule)},
		{Method: http.MethodGet, Pattern: "/api/v1/dashboard", Access: Requires(auth.PermDashboardRead), Tag: "dashboard", Summary: "Counts and upcoming events", Handler: fn(h.dashboard.Summary)},
	}
}

// allowList derives the authentication allow-list from the table.
func allowList(routes []Route) *middleware.AllowList {
	rules := make([]middleware.AllowRule, 0, len(routes))
	for _, rt := range routes {
		if !rt.Access.IsPublic() {
			continue
		}
		rules = append(rules, middleware.AllowRule{
			Method:   rt.Method,
			Path:     rt.Pattern,
			ReadOnly: rt.Access.Level == LevelPublicRead,
		})
	}
	return middleware.NewAllowList(rules...)
}
