package handlers

import (
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/dashboard"
)

type DashboardHandler struct {
	Service *dashboard.Service
	Env     string
}

func NewDashboardHandler(service *dashboard.Service, env string) *DashboardHandler {
	return &DashboardHandler{Service: service, Env: env}
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context())
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
