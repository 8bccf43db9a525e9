package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_UserRole_IsValid(t *testing.T) {
	testCases := []struct {
		role     UserRole
		expected bool
	}{
		{ClientUserRole, true},
		{ProviderUserRole, true},
		{AdminUserRole, true},
		{UserRole("invalid"), false},
		{UserRole(""), false},
		{UserRole("CLIENT"), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.role.IsValid())
		})
	}
}

func Test_GetAllRoles(t *testing.T) {
	roles := GetAllRoles()
	expectedRoles := []UserRole{
		ClientUserRole,
		ProviderUserRole,
		AdminUserRole,
	}

	assert.Equal(t, len(expectedRoles), len(roles))

	for _, expectedRole := range expectedRoles {
		assert.Contains(t, roles, expectedRole)
	}
}

func Test_FromUserRoleArrayToStringArray(t *testing.T) {
	roles := []UserRole{ClientUserRole, AdminUserRole}
	expected := []string{"client", "admin"}

	result := FromUserRoleArrayToStringArray(roles)
	assert.Equal(t, expected, result)
}
