package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventops/server/internal/api/middleware"
	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/domain"
	"github.com/eventops/server/internal/domain/access"
	"github.com/eventops/server/internal/domain/users"
	"github.com/eventops/server/internal/metrics"
)

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, time.Time, error)
}

// AuthHandler serves registration, login and the caller's own account.
type AuthHandler struct {
	Users        *users.Service
	Access       *access.Service
	Tokens       TokenIssuer
	CookieName   string
	SecureCookie bool
	Env          string
}

func NewAuthHandler(usersService *users.Service, accessService *access.Service, tokens TokenIssuer, cookieName string, secureCookie bool, env string) *AuthHandler {
	return &AuthHandler{
		Users:        usersService,
		Access:       accessService,
		Tokens:       tokens,
		CookieName:   cookieName,
		SecureCookie: secureCookie,
		Env:          env,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token       string            `json:"token"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	User        users.User        `json:"user"`
	Permissions []auth.Permission `json:"permissions"`
}

type meResponse struct {
	User        users.User        `json:"user"`
	Permissions []auth.Permission `json:"permissions"`
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	Phone       *string `json:"phone"`
	JobTitle    *string `json:"jobTitle"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}

	user, err := h.Users.Register(r.Context(), users.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	h.startSession(w, r, http.StatusCreated, user)
}

// Login exchanges credentials for a session token. The token is returned in
// the body and set as an HttpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || domain.IsValidation(err) {
			metrics.LoginAttempts.WithLabelValues("failure").Inc()
		} else {
			metrics.LoginAttempts.WithLabelValues("error").Inc()
		}
		problem.FromError(w, r, err, h.Env)
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	h.startSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, user users.User) {
	token, expiresAt, err := h.Tokens.Issue(auth.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, "Internal server error", err, h.Env)
		return
	}

	perms, err := h.Access.GetForIdentity(r.Context(), user.ID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, status, sessionResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        user,
		Permissions: perms,
	})
}

// Logout clears the session cookie. Tokens are stateless, so a copied token
// stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's account and permissions.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		problem.FromError(w, r, domain.ErrAuthenticationRequired, h.Env)
		return
	}

	user, err := h.Users.Get(r.Context(), identity.ID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	perms, err := h.Access.GetForIdentity(r.Context(), identity.ID)
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user, Permissions: perms})
}

// UpdateMe applies a partial profile update to the caller's account.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		problem.FromError(w, r, domain.ErrAuthenticationRequired, h.Env)
		return
	}

	var req profileRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}

	user, err := h.Users.UpdateProfile(r.Context(), identity.ID, users.ProfileUpdate{
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		JobTitle:    req.JobTitle,
	})
	if err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		problem.FromError(w, r, domain.ErrAuthenticationRequired, h.Env)
		return
	}

	var req passwordRequest
	if !decodeJSON(w, r, &req, h.Env) {
		return
	}

	if err := h.Users.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		problem.FromError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRF returns the token cookie-authenticated clients must echo in the
// X-CSRF-Token header on unsafe requests.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: middleware.CSRFToken(r)})
}
