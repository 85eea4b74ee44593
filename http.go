package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-access/middleware/sessionware"
)

// SessionCookieDuration is the browser lifetime of the sealed session cookie.
const SessionCookieDuration = 24 * time.Hour

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// RouteAuthenticator owns the cookie side of authentication: it logs
// principals in and out by setting or clearing the sealed session cookie, and
// builds the protected-route middleware.
type RouteAuthenticator struct {
	auth         Authenticator
	resolver     *SessionResolver
	cookieName   string
	contextKey   string
	secure       bool
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewHTTPAuthenticator builds the route authenticator from config.
func NewHTTPAuthenticator(auther Authenticator, resolver *SessionResolver, cfg Config) *RouteAuthenticator {
	cookieName := cfg.GetCookieName()
	if cookieName == "" {
		cookieName = sessionware.DefaultCookieName
	}

	contextKey := cfg.GetContextKey()
	if contextKey == "" {
		contextKey = "principal"
	}

	a := &RouteAuthenticator{
		auth:       auther,
		resolver:   resolver,
		cookieName: cookieName,
		contextKey: contextKey,
		secure:     cfg.GetSecureCookies(),
		Logger:     defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

// CookieName returns the configured session cookie name.
func (a *RouteAuthenticator) CookieName() string {
	return a.cookieName
}

// Login authenticates the payload and, on success, sets the sealed session
// cookie and answers with the token and user snapshot.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	result, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setSessionCookie(ctx, result.Sealed)

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// Logout clears the session cookie. There is no server side revocation; the
// token simply ages out.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	a.clearSessionCookie(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

// Protected builds middleware resolving the principal (cookie first, then
// bearer) and enforcing an any-of role set.
func (a *RouteAuthenticator) Protected(roles ...string) router.MiddlewareFunc {
	return sessionware.New(sessionware.Config{
		Resolver:      middlewareResolver{a.resolver},
		CookieName:    a.cookieName,
		ContextKey:    a.contextKey,
		RequiredRoles: roles,
		ErrorHandler:  a.authErrHandler,
		ContextEnricher: func(ctx context.Context, p sessionware.Principal) context.Context {
			if principal, ok := p.(*Principal); ok {
				return WithPrincipalContext(ctx, principal)
			}
			return ctx
		},
	})
}

func (a *RouteAuthenticator) setSessionCookie(c router.Context, val string) {
	c.Cookie(a.sessionCookie(val, time.Now().Add(SessionCookieDuration)))
}

func (a *RouteAuthenticator) clearSessionCookie(c router.Context) {
	c.Cookie(a.sessionCookie("", time.Now().Add(-time.Hour*24*365)))
}

func (a *RouteAuthenticator) sessionCookie(val string, expires time.Time) *router.Cookie {
	sameSite := "Lax"
	if a.secure {
		// cross-site embeds need the cookie on third party requests
		sameSite = "None"
	}

	return &router.Cookie{
		Name:     a.cookieName,
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: sameSite,
	}
}

func (a *RouteAuthenticator) authErrHandler(c router.Context, err error) error {
	if sessionware.IsAuthorizationError(err) {
		return a.ErrorHandler(c, ErrForbidden)
	}
	return a.ErrorHandler(c, err)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"Request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	response := NewErrorResponse(richErr)
	return c.JSON(response.Status, response)
}

// middlewareResolver adapts *SessionResolver to the mirrored sessionware
// interface.
type middlewareResolver struct {
	inner *SessionResolver
}

func (m middlewareResolver) Resolve(cookieValue, authorization string) (sessionware.Principal, error) {
	principal, err := m.inner.Resolve(cookieValue, authorization)
	if err != nil {
		return nil, err
	}
	return principal, nil
}
