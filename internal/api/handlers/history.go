package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/history"
)

type HistoryHandler struct {
	Recorder *history.Recorder
	Env      string
}

func NewHistoryHandler(recorder *history.Recorder, env string) *HistoryHandler {
	return &HistoryHandler{Recorder: recorder, Env: env}
}

type historyResponse struct {
	Items  []history.Entry `json:"items"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// historyFilterKeys are the query parameters List understands. Anything else
// is rejected so a misspelt filter never widens the result to the whole trail.
var historyFilterKeys = map[string]bool{
	"entityType": true,
	"entityId":   true,
	"actorId":    true,
	"action":     true,
	"limit":      true,
	"offset":     true,
}

// List returns change history, newest first. Supported query parameters are
// entityType, entityId, actorId, action, limit and offset.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if err := rejectUnknownFilters(query); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	filter := history.Filter{
		EntityType: strings.TrimSpace(query.Get("entityType")),
		EntityID:   strings.TrimSpace(query.Get("entityId")),
		ActorID:    strings.TrimSpace(query.Get("actorId")),
	}

	if raw := strings.TrimSpace(query.Get("action")); raw != "" {
		action, ok := history.ParseAction(raw)
		if !ok {
			problem.FromError(w, r, domain.NewValidationError("action", "must be one of: create update delete"), h.Env)
			return
		}
		filter.Action = action
	}

	var err error
	if filter.Limit, filter.Offset, err = queryPage(r); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	normalized, err := history.NormalizeFilter(filter)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	entries, err := h.Recorder.List(r.Context(), normalized)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Items:  entries,
		Limit:  normalized.Limit,
		Offset: normalized.Offset,
	})
}

func rejectUnknownFilters(query url.Values) error {
	var unknown map[string]string
	for key := range query {
		if historyFilterKeys[key] {
			continue
		}
		if unknown == nil {
			unknown = map[string]string{}
		}
		unknown[key] = "unknown filter"
	}
	if unknown == nil {
		return nil
	}
	return &domain.ValidationError{Message: "unknown filter", Fields: unknown}
}
