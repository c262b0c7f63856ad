package handlers

import (
	"net/http"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/equipment"
)

type EquipmentHandler struct {
	Service *equipment.Service
	Env     string
}

func NewEquipmentHandler(service *equipment.Service, env string) *EquipmentHandler {
	return &EquipmentHandler{Service: service, Env: env}
}

// List supports status, category, eventId, limit and offset.
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := queryPage(r)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	query := r.URL.Query()
	items, total, err := h.Service.List(r.Context(), equipment.Filters{
		Status:   equipment.Status(strings.ToLower(strings.TrimSpace(query.Get("status")))),
		Category: strings.TrimSpace(query.Get("category")),
		EventID:  strings.TrimSpace(query.Get("eventId")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	limit, offset, _ = domain.NormalizePage(limit, offset, equipment.DefaultListLimit, equipment.MaxListLimit)
	writeJSON(w, http.StatusOK, newPage(items, total, limit, offset))
}

func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params equipment.CreateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	item, err := h.Service.Create(r.Context(), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params equipment.UpdateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	item, err := h.Service.Update(r.Context(), pathParam(r, "id"), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), pathParam(r, "id")); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
