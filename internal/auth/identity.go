package auth

import "context"

// Identity is the authenticated principal resolved from a session token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by the auth gate, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, false
	}
	return identity, true
}

// ActorID returns the id of the identity in ctx, or nil for an
// unauthenticated or system-initiated call.
func ActorID(ctx context.Context) *string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	id := identity.ID
	return &id
}
