package handlers

import (
	"net/http"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/users"
)

type UsersHandler struct {
	Service *users.Service
	Env     string
}

func NewUsersHandler(service *users.Service, env string) *UsersHandler {
	return &UsersHandler{Service: service, Env: env}
}

// List returns accounts matching ?q= by email or display name.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	items, total, err := h.Service.List(r.Context(), users.ListFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	limit, offset, _ = domain.NormalizePage(limit, offset, users.DefaultListLimit, users.MaxListLimit)
	writeJSON(w, http.StatusOK, newPage(items, total, limit, offset))
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
