package handlers

import (
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/access"
)

// AccessHandler exposes the permission vocabulary, presets and per-user
// permission sets.
type AccessHandler struct {
	Service *access.Service
	Env     string
}

func NewAccessHandler(service *access.Service, env string) *AccessHandler {
	return &AccessHandler{Service: service, Env: env}
}

type permissionsResponse struct {
	UserID      string            `json:"userId"`
	Permissions []auth.Permission `json:"permissions"`
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type applyPresetRequest struct {
	Preset string `json:"preset"`
}

func (h *AccessHandler) Vocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": auth.VocabularyInfo()})
}

func (h *AccessHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": auth.Presets()})
}

// Mine returns the caller's own permission set.
func (h *AccessHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		problem.FromError(w, r, domain.ErrAuthenticationRequired, h.Env)
		return
	}
	h.respond(w, r, identity.ID)
}

// GetUser answers 404 for ids that cannot name an account.
func (h *AccessHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := access.CanonicalUserID(pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	h.respond(w, r, userID)
}

func (h *AccessHandler) respond(w http.ResponseWriter, r *http.Request, userID string) {
	perms, err := h.Service.GetForIdentity(r.Context(), userID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponse{UserID: userID, Permissions: perms})
}

// SetUser replaces a user's whole permission set. Unknown keys are dropped.
func (h *AccessHandler) SetUser(w http.ResponseWriter, r *http.Request) {
	var req setPermissionsRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}
	if req.Permissions == nil {
		problem.FromError(w, r, domain.NewValidationError("permissions", "is required"), h.Env)
		return
	}

	userID, err := access.CanonicalUserID(pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	perms, err := h.Service.SetForIdentity(r.Context(), userID, req.Permissions)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponse{UserID: userID, Permissions: perms})
}

// ApplyPreset replaces a user's permission set with a preset's.
func (h *AccessHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req applyPresetRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}

	userID, err := access.CanonicalUserID(pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	perms, err := h.Service.ApplyPreset(r.Context(), userID, req.Preset)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponse{UserID: userID, Permissions: perms})
}
