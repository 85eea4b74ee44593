package access

// roleRank orders the admin roles from least to most privileged. The member
// pseudo-role never appears here; member tokens are a separate audience.
var roleRank = map[string]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleAdmin:  2,
}

// ValidRole checks if the role is one of the predefined admin roles.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// RoleAtLeast checks if role meets the minimum required level. Unknown roles
// never satisfy any minimum.
func RoleAtLeast(role, minRole string) bool {
	current, ok := roleRank[role]
	if !ok {
		return false
	}
	required, ok := roleRank[minRole]
	if !ok {
		return false
	}
	return current >= required
}

// CanMintCodes reports whether the role may create access codes.
func CanMintCodes(role string) bool {
	return RoleAtLeast(role, RoleEditor)
}

// CanListClaims reports whether the role may read the claimed code listing.
func CanListClaims(role string) bool {
	return RoleAtLeast(role, RoleViewer)
}

// AllRoles returns the admin roles in hierarchical order.
func AllRoles() []string {
	return []string{RoleViewer, RoleEditor, RoleAdmin}
}

// IsAtLeast checks the admin role hierarchy. Member tokens carry no admin
// role and never satisfy any minimum.
func (c *JWTClaims) IsAtLeast(minRole string) bool {
	if c.IsMember() {
		return false
	}
	return RoleAtLeast(c.UserRole, minRole)
}
