package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleStudent, true},
		{RoleMentor, true},
		{RoleTeacher, true},
		{Role("admin"), false},
		{Role(""), false},
		{Role("Mentor"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Valid())
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("mentor")
	require.NoError(t, err)
	assert.Equal(t, RoleMentor, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestAuthContext_HasRole(t *testing.T) {
	ac := &AuthContext{Identity: Identity{UserID: 7, Role: RoleMentor}}

	assert.True(t, ac.HasRole(RoleMentor))
	assert.True(t, ac.HasRole(RoleStudent, RoleMentor))
	assert.False(t, ac.HasRole(RoleTeacher))
	assert.False(t, ac.HasRole())

	var nilCtx *AuthContext
	assert.False(t, nilCtx.HasRole(RoleMentor))
}

func TestAuthContext_InGroup(t *testing.T) {
	group := int64(3)
	ac := &AuthContext{Identity: Identity{GroupID: &group}}

	assert.True(t, ac.InGroup(3))
	assert.False(t, ac.InGroup(4))

	noGroup := &AuthContext{}
	assert.False(t, noGroup.InGroup(3))
}
