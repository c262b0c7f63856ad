package handlers

import (
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/events"
)

type EventsHandler struct {
	Service *events.Service
	Env     string
}

func NewEventsHandler(service *events.Service, env string) *EventsHandler {
	return &EventsHandler{Service: service, Env: env}
}

// List supports status, q, from, to, limit and offset.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, page, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	result, err := h.Service.List(r.Context(), filters, page)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	limit, offset, _ := domain.NormalizePage(page.Limit, page.Offset, events.DefaultListLimit, events.MaxListLimit)
	writeJSON(w, http.StatusOK, newPage(result.Events, result.Total, limit, offset))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params events.CreateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	event, err := h.Service.Create(r.Context(), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+event.ID)
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params events.UpdateParams
	if !decodeJSON(w, r, &params, h.Env) {
		return
	}

	event, err := h.Service.Update(r.Context(), pathParam(r, "id"), params)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), pathParam(r, "id")); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
