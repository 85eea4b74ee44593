package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessCode is a single-use redemption code binding an anonymous game
// identity to a purchased package.
//
// State machine: unclaimed (used_at null, expires_at holds the registration
// deadline) -> claimed (used_at set once, never unset; expires_at cleared so
// cleanup can never delete a bound code). Claimant identity fields are
// immutable after claim; only name/avatar may be refreshed by the same
// claimant.
type AccessCode struct {
	bun.BaseModel `bun:"table:access_codes,alias:ac"`

	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code              string     `bun:"code,notnull,unique" json:"code,omitempty"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	UsedAt            *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	LastAccessAt      *time.Time `bun:"last_access_at,nullzero" json:"last_access_at,omitempty"`
	ClaimantUID       string     `bun:"claimant_uid" json:"claimant_uid,omitempty"`
	ClaimantName      string     `bun:"claimant_name" json:"claimant_name,omitempty"`
	ClaimantServer    string     `bun:"claimant_server" json:"claimant_server,omitempty"`
	ClaimantAvatarURL string     `bun:"claimant_avatar_url" json:"claimant_avatar_url,omitempty"`
	PackageID         string     `bun:"package_id" json:"package_id,omitempty"`
	PackageName       string     `bun:"package_name" json:"package_name,omitempty"`
	CreatedBy         string     `bun:"created_by" json:"created_by,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Claimed reports whether the code has been bound to a claimant.
func (c *AccessCode) Claimed() bool {
	return c.UsedAt != nil
}

// RegistrationOpen reports whether an unclaimed code may still be claimed.
func (c *AccessCode) RegistrationOpen(now time.Time) bool {
	if c.Claimed() {
		return false
	}
	return c.ExpiresAt != nil && now.Before(*c.ExpiresAt)
}

// Claimant returns the bound identity tuple.
func (c *AccessCode) Claimant() Claimant {
	return Claimant{
		UID:       c.ClaimantUID,
		Name:      c.ClaimantName,
		Server:    c.ClaimantServer,
		AvatarURL: c.ClaimantAvatarURL,
	}
}

// Package returns the denormalized package snapshot captured at claim time.
func (c *AccessCode) Package() Package {
	return Package{ID: c.PackageID, Name: c.PackageName}
}

// Claimant is the end-user identity a code gets bound to.
type Claimant struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Server    string `json:"server"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Equal compares all four fields with exact, case-sensitive equality.
func (c Claimant) Equal(other Claimant) bool {
	return c.UID == other.UID &&
		c.Name == other.Name &&
		c.Server == other.Server &&
		c.AvatarURL == other.AvatarURL
}

// Package is the resolvable snapshot of a purchasable package. Denormalized
// onto the access code at claim time so later package edits never corrupt
// historical claims.
type Package struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenType values distinguish the two token audiences. Admin tokens carry a
// role claim, member tokens carry type=member; the two are never accepted by
// each other's protected routes.
const (
	TokenTypeMember = "member"

	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// AdminUser is a staff account that can log in and mint access codes.
type AdminUser struct {
	bun.BaseModel `bun:"table:admin_users,alias:au"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Role           string     `bun:"role" json:"role,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
