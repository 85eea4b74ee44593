// Package sessionware resolves an authenticated principal from either the
// encrypted session cookie or an Authorization bearer header, cookie first.
// Interfaces are mirrored rather than imported so the root package can wire
// this middleware without a cycle.
package sessionware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
)

// ErrMissingCredentials is surfaced when a request carries neither carrier.
var ErrMissingCredentials = errors.New("missing authentication credentials")

// Principal mirrors the resolved identity from the access package.
type Principal interface {
	Subject() string
	Role() string
	IsMember() bool
	HasRole(role string) bool
}

// Resolver mirrors access.SessionResolver: given the raw cookie value and the
// raw Authorization header, recover a principal or fail.
type Resolver interface {
	Resolve(cookieValue, authorization string) (Principal, error)
}

type Config struct {
	// Resolver is required.
	Resolver Resolver

	// CookieName is the session cookie to read. Defaults to DefaultCookieName.
	CookieName string

	// ContextKey is the router locals key the principal is stored under.
	ContextKey string

	// RequiredRoles is an any-of set checked after successful resolution.
	RequiredRoles []string

	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// ContextEnricher propagates the principal into the standard context.
	ContextEnricher func(ctx context.Context, principal Principal) context.Context
}

// DefaultCookieName is deliberately unusual ASCII to avoid clashing with
// application cookies.
const DefaultCookieName = "__access_session"

// New creates the session resolution middleware.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			cookieValue := ctx.Cookies(cfg.CookieName)
			authorization := ctx.GetString(router.HeaderAuthorization, "")

			principal, err := cfg.Resolver.Resolve(cookieValue, authorization)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := checkRoles(principal, cfg.RequiredRoles); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, principal)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// checkRoles runs strictly after resolution; an empty set admits any
// authenticated principal.
func checkRoles(principal Principal, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	for _, role := range roles {
		if principal.HasRole(role) {
			return nil
		}
	}

	return fmt.Errorf("access denied: required role %q not found", strings.Join(roles, "|"))
}

// IsAuthorizationError reports whether an error came from the role check
// rather than credential resolution.
func IsAuthorizationError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "access denied")
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("ACCESS: session middleware configuration: Resolver is required.")
	}

	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "principal"
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if IsAuthorizationError(err) {
				return c.Status(router.StatusForbidden).SendString("insufficient permissions")
			}
			return c.Status(router.StatusUnauthorized).SendString("invalid or missing credentials")
		}
	}

	return cfg
}
