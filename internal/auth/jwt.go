package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime applies when no lifetime is configured.
const DefaultTokenLifetime = 24 * time.Hour

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload embedded in a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 session tokens.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokenService creates a token service. The lifetime is rounded down to
// whole seconds; a non-positive lifetime falls back to DefaultTokenLifetime.
func NewTokenService(secret []byte, lifetime time.Duration, issuer string) *TokenService {
	lifetime = lifetime.Truncate(time.Second)
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{
		secret:   secret,
		lifetime: lifetime,
		issuer:   issuer,
		now:      time.Now,
	}
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity and returns it with its expiry.
func (s *TokenService) Issue(identity Identity) (string, time.Time, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return "", time.Time{}, ErrInvalidToken
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.lifetime)
	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify validates signature, algorithm, issuer and expiry. Every failure
// collapses to ErrInvalidToken (or ErrMissingToken for an empty input) so
// callers can treat them uniformly as unauthenticated.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// TokenFromHeader extracts the token from an "Authorization: Bearer <token>" value.
func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// TokenSource records where a request's token came from.
type TokenSource string

const (
	TokenSourceNone   TokenSource = ""
	TokenSourceHeader TokenSource = "header"
	TokenSourceCookie TokenSource = "cookie"
)

// TokenFromRequest returns the bearer token if present, otherwise the value
// of the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) (string, TokenSource) {
	if r == nil {
		return "", TokenSourceNone
	}
	if token, err := TokenFromHeader(r.Header.Get("Authorization")); err == nil && token != "" {
		return token, TokenSourceHeader
	}
	if cookieName == "" {
		return "", TokenSourceNone
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", TokenSourceNone
	}
	return strings.TrimSpace(cookie.Value), TokenSourceCookie
}
