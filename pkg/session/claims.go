package session

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trainhub/trainhub/pkg/auth"
)

// TTL is the lifetime of a session token and its cookie
const TTL = 7 * 24 * time.Hour

// Claims is the signed content of a session token
type Claims struct {
	UserID     int64
	Role       auth.Role
	TelegramID string
	GroupID    *int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Identity projects the claims into the identity forwarded to protected handlers
func (c Claims) Identity() auth.Identity {
	return auth.Identity{
		UserID:     c.UserID,
		Role:       c.Role,
		TelegramID: c.TelegramID,
		GroupID:    c.GroupID,
	}
}

// jwtClaims is the wire form: sub/iat/exp registered claims plus the private ones
type jwtClaims struct {
	Role       auth.Role `json:"role"`
	TelegramID string    `json:"tgId"`
	GroupID    *int64    `json:"groupId"`
	jwt.RegisteredClaims
}

func (c Claims) toJWT() jwtClaims {
	return jwtClaims{
		Role:       c.Role,
		TelegramID: c.TelegramID,
		GroupID:    c.GroupID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(c.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
}

func (jc *jwtClaims) toClaims() (Claims, error) {
	userID, err := strconv.ParseInt(jc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, errInvalidSubject
	}
	if !jc.Role.Valid() {
		return Claims{}, errInvalidRole
	}
	if jc.TelegramID == "" {
		return Claims{}, errMissingTelegramID
	}
	if jc.IssuedAt == nil || jc.ExpiresAt == nil {
		return Claims{}, errMissingTimes
	}

	return Claims{
		UserID:     userID,
		Role:       jc.Role,
		TelegramID: jc.TelegramID,
		GroupID:    jc.GroupID,
		IssuedAt:   jc.IssuedAt.Time,
		ExpiresAt:  jc.ExpiresAt.Time,
	}, nil
}
