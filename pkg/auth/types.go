package auth

import "fmt"

// Role is the participant role of a local user within a training group
type Role string

const (
	RoleStudent Role = "student" // Attends slots and leaves feedback
	RoleMentor  Role = "mentor"  // Runs training slots
	RoleTeacher Role = "teacher" // Owns a group
)

// Roles lists every role in a stable order
var Roles = []Role{RoleStudent, RoleMentor, RoleTeacher}

// Valid reports whether r is one of the enumerated roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleTeacher:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string into a Role, rejecting anything outside the enum
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Identity is the decoded session identity forwarded to protected handlers.
// The JSON shape is the one downstream handlers read from the X-User header.
type Identity struct {
	UserID     int64  `json:"userId"`
	Role       Role   `json:"role"`
	TelegramID string `json:"telegramId"`
	GroupID    *int64 `json:"groupId"`
}

// AuthContext holds authenticated request information
type AuthContext struct {
	Identity Identity
}

// HasRole checks if the authenticated user has one of the given roles
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil {
		return false
	}
	for _, r := range roles {
		if ac.Identity.Role == r {
			return true
		}
	}
	return false
}

// InGroup checks if the authenticated user belongs to the given group
func (ac *AuthContext) InGroup(groupID int64) bool {
	if ac == nil || ac.Identity.GroupID == nil {
		return false
	}
	return *ac.Identity.GroupID == groupID
}
