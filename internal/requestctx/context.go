// Package requestctx provides request-scoped values set by middleware.
package requestctx

import "context"

// Principal identifies the authenticated caller of a request: the corp key
// (organizational tenant) it belongs to and the RBAC role its API key maps to.
type Principal struct {
	CorpKey string
	Role    string
}

type contextKey struct{}

var principalKey = &contextKey{}

// SetPrincipal stores the authenticated principal in the context.
func SetPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal from context. ok is false when no
// middleware set one (unauthenticated paths).
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
