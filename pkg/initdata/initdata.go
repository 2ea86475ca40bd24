package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxAge bounds how old auth_date may be
	DefaultMaxAge = 24 * time.Hour

	// webAppDataKey is the HMAC key Telegram uses to derive the validation secret
	webAppDataKey = "WebAppData"

	// futureSkew tolerates small clock differences for auth_date in the future
	futureSkew = time.Minute

	fieldHash     = "hash"
	fieldAuthDate = "auth_date"
	fieldUser     = "user"
)

var (
	// ErrMalformed is returned when the payload cannot be parsed or lacks required fields
	ErrMalformed = errors.New("init data malformed")
	// ErrSignatureMismatch is returned when the computed digest differs from the supplied hash
	ErrSignatureMismatch = errors.New("init data signature mismatch")
	// ErrExpired is returned when auth_date is outside the freshness window
	ErrExpired = errors.New("init data expired")
)

// User is the Telegram user object embedded in init data
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Payload is parsed, not yet verified, init data
type Payload struct {
	Fields   map[string]string
	Hash     string
	AuthDate time.Time
	User     *User
}

// Identity is the result of a successful verification.
// Optional profile fields are nil when Telegram did not send them.
type Identity struct {
	TelegramID string
	Username   *string
	FirstName  *string
	LastName   *string
	PhotoURL   *string
	AuthDate   time.Time
}

// Parse decodes raw init data without checking its signature.
// Every key must appear exactly once.
func Parse(raw string) (*Payload, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) != 1 {
			return nil, fmt.Errorf("%w: field %q repeated", ErrMalformed, k)
		}
		fields[k] = v[0]
	}

	hash, ok := fields[fieldHash]
	if !ok || hash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrMalformed)
	}
	delete(fields, fieldHash)

	p := &Payload{Fields: fields, Hash: hash}

	rawDate, ok := fields[fieldAuthDate]
	if !ok {
		return nil, fmt.Errorf("%w: missing auth_date", ErrMalformed)
	}
	secs, err := strconv.ParseInt(rawDate, 10, 64)
	if err != nil || secs <= 0 {
		return nil, fmt.Errorf("%w: invalid auth_date", ErrMalformed)
	}
	p.AuthDate = time.Unix(secs, 0).UTC()

	if rawUser, ok := fields[fieldUser]; ok {
		var u User
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			return nil, fmt.Errorf("%w: invalid user: %v", ErrMalformed, err)
		}
		p.User = &u
	}

	return p, nil
}

// CheckString builds the canonical data-check-string: every field except hash,
// sorted by key, joined as key=value with newlines.
func CheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == fieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// secretKey derives the validation key from the bot token
func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// signature computes the hex HMAC-SHA256 of the check string
func signature(fields map[string]string, botToken string) string {
	mac := hmac.New(sha256.New, secretKey(botToken))
	mac.Write([]byte(CheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and freshness of raw init data and returns the embedded identity
func Verify(raw, botToken string, maxAge time.Duration) (Identity, error) {
	return verifyAt(raw, botToken, maxAge, time.Now())
}

func verifyAt(raw, botToken string, maxAge time.Duration, now time.Time) (Identity, error) {
	p, err := Parse(raw)
	if err != nil {
		return Identity{}, err
	}

	expected := signature(p.Fields, botToken)
	if !hmac.Equal([]byte(expected), []byte(p.Hash)) {
		return Identity{}, ErrSignatureMismatch
	}

	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	age := now.Sub(p.AuthDate)
	if age > maxAge {
		return Identity{}, fmt.Errorf("%w: issued %s ago", ErrExpired, age.Truncate(time.Second))
	}
	if age < -futureSkew {
		return Identity{}, fmt.Errorf("%w: auth_date in the future", ErrMalformed)
	}

	if p.User == nil {
		return Identity{}, fmt.Errorf("%w: missing user", ErrMalformed)
	}
	if p.User.ID <= 0 {
		return Identity{}, fmt.Errorf("%w: invalid user id", ErrMalformed)
	}

	return Identity{
		TelegramID: strconv.FormatInt(p.User.ID, 10),
		Username:   optional(p.User.Username),
		FirstName:  optional(p.User.FirstName),
		LastName:   optional(p.User.LastName),
		PhotoURL:   optional(p.User.PhotoURL),
		AuthDate:   p.AuthDate,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Verifier binds Verify to a bot token and freshness window loaded at start-up
type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewVerifier creates a verifier; maxAge <= 0 selects DefaultMaxAge
func NewVerifier(botToken string, maxAge time.Duration) (*Verifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{botToken: botToken, maxAge: maxAge, now: time.Now}, nil
}

// Verify validates raw init data
func (v *Verifier) Verify(raw string) (Identity, error) {
	return verifyAt(raw, v.botToken, v.maxAge, v.now())
}

// MaxAge returns the configured freshness window
func (v *Verifier) MaxAge() time.Duration {
	return v.maxAge
}
