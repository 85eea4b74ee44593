package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims carries the registered claims plus the audience discriminator:
// admin tokens set Role, member tokens set Type=member. A token must never
// satisfy both audiences.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole  string `json:"role,omitempty"`
	TokenType string `json:"type,omitempty"`
}

// UserID returns the token subject.
func (c *JWTClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Role returns the admin role claim. Empty for member tokens.
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// IsMember reports whether this token belongs to the member audience.
func (c *JWTClaims) IsMember() bool {
	return c.TokenType == TokenTypeMember
}

// HasRole checks role membership for authorization. The member pseudo-role
// matches only member tokens; admin roles match only non-member tokens.
func (c *JWTClaims) HasRole(role string) bool {
	if role == TokenTypeMember {
		return c.IsMember()
	}
	return !c.IsMember() && c.UserRole == role
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issue time
func (c *JWTClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
