package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/directory"
	"github.com/trainhub/trainhub/pkg/initdata"
)

// MinSecretLength is the minimum signing secret size in bytes
const MinSecretLength = 32

var (
	// ErrUserNotFound is returned when the verified identity has no directory record
	ErrUserNotFound = errors.New("user not registered")
	// ErrTokenInvalid is returned for malformed tokens or bad signatures
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrTokenExpired is returned for well-signed tokens past their expiry
	ErrTokenExpired = errors.New("session token expired")

	errInvalidSubject    = errors.New("invalid subject")
	errInvalidRole       = errors.New("invalid role")
	errMissingTelegramID = errors.New("missing telegram id")
	errMissingTimes      = errors.New("missing iat or exp")
)

// Token is a signed session token together with its decoded claims
type Token struct {
	Value  string
	Claims Claims
}

// Issuer signs and decodes session tokens with a server-held HMAC secret
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer; the secret must be at least MinSecretLength bytes
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Issuer{secret: s, ttl: TTL, now: time.Now}, nil
}

// Issue looks up the verified identity in the directory and signs a session for the record.
// Role and group always come from the directory record.
func (i *Issuer) Issue(ctx context.Context, identity initdata.Identity, dir directory.Directory) (*Token, error) {
	user, err := dir.LookupByTelegramID(ctx, identity.TelegramID)
	if errors.Is(err, directory.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("directory record %d has invalid role %q", user.ID, user.Role)
	}

	issuedAt := i.now().Truncate(time.Second)
	claims := Claims{
		UserID:     user.ID,
		Role:       user.Role,
		TelegramID: identity.TelegramID,
		GroupID:    user.GroupID,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(i.ttl),
	}

	value, err := i.Sign(claims)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, Claims: claims}, nil
}

// Sign serializes and signs claims with HS256
func (i *Issuer) Sign(claims Claims) (string, error) {
	if !claims.Role.Valid() {
		return "", fmt.Errorf("cannot sign claims: %w", errInvalidRole)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims.toJWT())
	value, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return value, nil
}

// Decode verifies the signature and expiry of a token and returns its claims
func (i *Issuer) Decode(value string) (Claims, error) {
	if value == "" {
		return Claims{}, ErrTokenInvalid
	}

	var jc jwtClaims
	_, err := jwt.ParseWithClaims(value, &jc, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, err := jc.toClaims()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// Identity decodes a token straight into the forwarded identity
func (i *Issuer) Identity(value string) (auth.Identity, error) {
	claims, err := i.Decode(value)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity(), nil
}
