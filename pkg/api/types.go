package api

import "github.com/trainhub/trainhub/pkg/auth"

// LoginResponse is returned after a session has been issued
type LoginResponse struct {
	UserID  int64     `json:"userId"`
	Role    auth.Role `json:"role"`
	GroupID *int64    `json:"groupId"`
}

// RegisterRequest is the body of POST /api/auth/register.
// InitDataRaw is used when no "Authorization: tma" header is sent.
type RegisterRequest struct {
	InitDataRaw string `json:"initDataRaw"`
	AccessCode  string `json:"accessCode"`
	Role        string `json:"role"`
}

// ProfileResponse carries the display fields stored at registration
type ProfileResponse struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	PhotoURL  *string `json:"photoUrl"`
}

// RegisterResponse is returned after registration
type RegisterResponse struct {
	LoginResponse
	User ProfileResponse `json:"user"`
}

// ValidateRequest is the body of POST /api/auth/validate
type ValidateRequest struct {
	Code string `json:"code"`
}

// ValidateResponse describes the group behind an access code
type ValidateResponse struct {
	Valid          bool        `json:"valid"`
	GroupID        int64       `json:"groupId,omitempty"`
	GroupTitle     string      `json:"groupTitle,omitempty"`
	AvailableRoles []auth.Role `json:"availableRoles,omitempty"`
	Error          string      `json:"error,omitempty"`
}
