package handlers

import (
	"net/http"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain/calendar"
)

type CalendarHandler struct {
	Service *calendar.Service
	Env     string
}

func NewCalendarHandler(service *calendar.Service, env string) *CalendarHandler {
	return &CalendarHandler{Service: service, Env: env}
}

// Schedule groups events by day between ?from= and ?to=. Both accept
// RFC 3339, plain dates or relative phrases such as "next monday".
func (h *CalendarHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	schedule, err := h.Service.Schedule(r.Context(), query.Get("from"), query.Get("to"))
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}
