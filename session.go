package access

import "fmt"

// UserSnapshot is the minimal user projection embedded in the sealed session
// so protected requests can render identity without a store round trip.
// Secrets (password hashes, reset tokens) are never part of this view; use
// the privileged repository projections when those are needed.
type UserSnapshot struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SessionObject is the ephemeral session payload: the signed JWT plus the
// user snapshot. It is never persisted server side; logout is cookie clearing
// plus token expiry.
type SessionObject struct {
	Token string       `json:"token"`
	User  UserSnapshot `json:"user"`
}

func (s SessionObject) String() string {
	// deliberately omits the raw token
	return fmt.Sprintf("user=%s role=%s", s.User.ID, s.User.Role)
}

// SnapshotFromIdentity captures the public view of an identity at login time.
func SnapshotFromIdentity(identity Identity) UserSnapshot {
	if identity == nil {
		return UserSnapshot{}
	}
	return UserSnapshot{
		ID:    identity.ID(),
		Email: identity.Email(),
		Name:  identity.Username(),
		Role:  identity.Role(),
	}
}
