package access

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the Principal in the given context
func WithPrincipalContext(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok
}

// GetRouterPrincipal extracts the Principal from the router context
func GetRouterPrincipal(ctx router.Context, key string) (*Principal, bool) {
	if key == "" {
		key = "principal"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	principal, ok := raw.(*Principal)
	return principal, ok
}
