package handlers

import (
	"net/http"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/staff"
)

type StaffHandler struct {
	Service *staff.Service
	Env     string
}

func NewStaffHandler(service *staff.Service, env string) *StaffHandler {
	return &StaffHandler{Service: service, Env: env}
}

// List supports active, q, limit and offset.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	limit, offset, err := queryPage(r)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	items, total, err := h.Service.List(r.Context(), staff.Filters{
		Active: active,
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	limit, offset, _ = domain.NormalizePage(limit, offset, staff.DefaultListLimit, staff.MaxListLimit)
	writeJSON(w, http.StatusOK, newPage(items, total, limit, offset))
}

func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params staff.CreateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	member, err := h.Service.Create(r.Context(), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+member.ID)
	writeJSON(w, http.StatusCreated, member)
}

func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params staff.UpdateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	member, err := h.Service.Update(r.Context(), pathParam(r, "id"), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), pathParam(r, "id")); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
