// Package problem writes the JSON error body shared by every endpoint:
// {"error": "...", "status": n, "detail"?: "...", "fields"?: {...}}.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventops/server/internal/domain"
	"github.com/rs/zerolog"
)

const contentType = "application/json"

// Messages used by the auth gate.
const (
	MsgUnauthorized   = "Unauthorized"
	MsgInvalidSession = "Invalid or expired session"
	MsgForbidden      = "Forbidden"
)

type Body struct {
	Error  string            `json:"error"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type Option func(*Body)

func WithDetail(detail string) Option {
	return func(b *Body) {
		b.Detail = detail
	}
}

func WithFields(fields map[string]string) Option {
	return func(b *Body) {
		b.Fields = fields
	}
}

// ShowsDetail reports whether env exposes internal error text to clients.
func ShowsDetail(env string) bool {
	return env == "development" || env == "test"
}

// Write renders an error response. err is logged (5xx at error level, 4xx
// at warn) and, outside production, echoed as detail.
func Write(w http.ResponseWriter, r *http.Request, status int, message string, err error, env string, opts ...Option) {
	body := Body{Error: message, Status: status}
	for _, opt := range opts {
		opt(&body)
	}

	if !ShowsDetail(env) {
		body.Detail = ""
	} else if body.Detail == "" && err != nil {
		body.Detail = err.Error()
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}

	WriteBody(w, body)
}

// WriteBody encodes body with its status code.
func WriteBody(w http.ResponseWriter, body Body) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error","status":500}`))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(body.Status)
	_, _ = w.Write(payload)
}

// FromError maps an error from the domain taxonomy to its HTTP response.
func FromError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		message := ve.Message
		if message == "" {
			message = "validation failed"
		}
		Write(w, r, http.StatusBadRequest, message, err, env, WithFields(ve.Fields))
	case errors.Is(err, domain.ErrAuthenticationRequired):
		Write(w, r, http.StatusUnauthorized, MsgUnauthorized, err, env)
	case errors.Is(err, domain.ErrInvalidCredentials):
		Write(w, r, http.StatusUnauthorized, "Invalid email or password", err, env)
	case errors.Is(err, domain.ErrAuthorizationDenied):
		Write(w, r, http.StatusForbidden, MsgForbidden, err, env)
	case errors.Is(err, domain.ErrNotFound):
		Write(w, r, http.StatusNotFound, "Not found", err, env)
	case errors.Is(err, domain.ErrConflict):
		Write(w, r, http.StatusConflict, "Conflict", err, env)
	default:
		Write(w, r, http.StatusInternalServerError, "Internal server error", err, env)
	}
}
