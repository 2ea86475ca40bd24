package directory

import (
	"context"
	"errors"

	"github.com/trainhub/trainhub/pkg/auth"
)

var (
	// ErrUserNotFound is returned when no user is bound to a telegram id
	ErrUserNotFound = errors.New("user not found")
	// ErrGroupNotFound is returned when no group matches an access code
	ErrGroupNotFound = errors.New("group not found")
	// ErrTeacherTaken is returned when a group already has a teacher
	ErrTeacherTaken = errors.New("group already has a teacher")
)

// User is the local user record an external identity resolves to
type User struct {
	ID         int64
	TelegramID string
	Username   *string
	FirstName  *string
	LastName   *string
	PhotoURL   *string
	Role       auth.Role
	GroupID    *int64
}

// Group is a training group joined with an access code
type Group struct {
	ID         int64
	Title      string
	AccessCode string
	TeacherID  *int64
}

// AvailableRoles lists the roles a new member may pick; teacher only while the seat is free
func (g *Group) AvailableRoles() []auth.Role {
	roles := []auth.Role{auth.RoleStudent, auth.RoleMentor}
	if g.TeacherID == nil {
		roles = append(roles, auth.RoleTeacher)
	}
	return roles
}

// Profile carries the display fields copied from a verified identity at registration
type Profile struct {
	TelegramID string
	Username   *string
	FirstName  *string
	LastName   *string
	PhotoURL   *string
}

// Directory resolves a verified external identity to a local user record
type Directory interface {
	// LookupByTelegramID returns ErrUserNotFound when no record exists
	LookupByTelegramID(ctx context.Context, telegramID string) (*User, error)
}

// Registrar creates and updates directory records
type Registrar interface {
	// GroupByAccessCode returns ErrGroupNotFound for unknown codes
	GroupByAccessCode(ctx context.Context, code string) (*Group, error)

	// Register inserts or updates the user bound to profile.TelegramID and assigns role and group
	Register(ctx context.Context, profile Profile, role auth.Role, group *Group) (*User, error)
}

// Store is a Directory that can also register users
type Store interface {
	Directory
	Registrar
}
