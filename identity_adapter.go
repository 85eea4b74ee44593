package access

// AdminIdentity adapts an AdminUser into the Identity interface for token
// generation.
type AdminIdentity struct {
	admin *AdminUser
}

// NewIdentityFromAdmin returns an Identity adapter for the provided admin.
func NewIdentityFromAdmin(admin *AdminUser) Identity {
	if admin == nil {
		return nil
	}
	return AdminIdentity{admin: admin}
}

// ID returns the admin's ID as a string.
func (a AdminIdentity) ID() string {
	if a.admin == nil {
		return ""
	}
	return a.admin.ID.String()
}

// Username returns the admin's username.
func (a AdminIdentity) Username() string {
	if a.admin == nil {
		return ""
	}
	return a.admin.Username
}

// Email returns the admin's email address.
func (a AdminIdentity) Email() string {
	if a.admin == nil {
		return ""
	}
	return a.admin.Email
}

// Role returns the admin's role.
func (a AdminIdentity) Role() string {
	if a.admin == nil {
		return ""
	}
	return a.admin.Role
}
