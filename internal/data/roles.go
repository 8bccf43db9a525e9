package data

type UserRole string

func (u UserRole) String() string {
	return string(u)
}

func (u UserRole) IsValid() bool {
	switch u {
	case ClientUserRole, ProviderUserRole, AdminUserRole:
		return true
	}
	return false
}

const (
	// ClientUserRole books services and pays for them.
	ClientUserRole UserRole = "client"
	// ProviderUserRole delivers services and receives payouts.
	ProviderUserRole UserRole = "provider"
	// AdminUserRole operates the money machinery: approvals, batches, refunds, reconciliation.
	AdminUserRole UserRole = "admin"
)

// GetAllRoles returns all roles available
func GetAllRoles() []UserRole {
	return []UserRole{
		ClientUserRole,
		ProviderUserRole,
		AdminUserRole,
	}
}

// FromUserRoleArrayToStringArray converts an array of UserRole type to an array of string
func FromUserRoleArrayToStringArray(roles []UserRole) []string {
	rolesString := make([]string, 0, len(roles))
	for _, role := range roles {
		rolesString = append(rolesString, role.String())
	}
	return rolesString
}
