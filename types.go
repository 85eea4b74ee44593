package access

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the environment-level knobs for tokens and sessions
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	// GetAdminTokenExpiration is the admin token lifetime in hours
	GetAdminTokenExpiration() int
	// GetMemberTokenExpiration is the member token lifetime in hours
	GetMemberTokenExpiration() int
	GetSessionSecret() string
	GetCookieName() string
	GetContextKey() string
	// GetSecureCookies toggles Secure + SameSite=None cookie attributes;
	// enable in production deployments serving over TLS
	GetSecureCookies() bool
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// IdentityProvider ensures we have a store to retrieve auth identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// PackageFinder resolves purchasable packages; implementations should return
// ErrPackageNotFound for unknown ids.
type PackageFinder interface {
	FindPackageByID(ctx context.Context, id string) (*Package, error)
}

// TokenValidator validates a raw token string into structured claims.
type TokenValidator interface {
	Validate(tokenString string) (*JWTClaims, error)
}

// SessionSealer seals and opens the encrypted session payload carried in the
// browser cookie.
type SessionSealer interface {
	Seal(session *SessionObject) (string, error)
	Open(value string) (*SessionObject, error)
}

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
