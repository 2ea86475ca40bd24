package initdata

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-bot-token"

func signed(t *testing.T, user User, authDate time.Time, extra map[string]string) string {
	t.Helper()
	raw, err := Sign(user, authDate, extra, testBotToken)
	require.NoError(t, err)
	return raw
}

// replaceHash swaps the hash value inside raw while leaving every other field untouched
func replaceHash(t *testing.T, raw, hash string) string {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	values.Set("hash", hash)
	return values.Encode()
}

func hashOf(t *testing.T, raw string) string {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return values.Get("hash")
}

func TestVerify_Success(t *testing.T) {
	now := time.Now()
	user := User{ID: 42, FirstName: "Ada", LastName: "Lovelace", Username: "ada", PhotoURL: "https://t.me/i/ada.jpg"}
	raw := signed(t, user, now.Add(-time.Minute), map[string]string{
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"chat_type": "private",
	})

	id, err := Verify(raw, testBotToken, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "42", id.TelegramID)
	require.NotNil(t, id.Username)
	assert.Equal(t, "ada", *id.Username)
	require.NotNil(t, id.FirstName)
	assert.Equal(t, "Ada", *id.FirstName)
	require.NotNil(t, id.LastName)
	assert.Equal(t, "Lovelace", *id.LastName)
	require.NotNil(t, id.PhotoURL)
	assert.Equal(t, "https://t.me/i/ada.jpg", *id.PhotoURL)
	assert.Equal(t, now.Add(-time.Minute).Unix(), id.AuthDate.Unix())
}

func TestVerify_OptionalFieldsAbsent(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now(), nil)

	id, err := Verify(raw, testBotToken, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "42", id.TelegramID)
	assert.Nil(t, id.Username)
	assert.Nil(t, id.FirstName)
	assert.Nil(t, id.LastName)
	assert.Nil(t, id.PhotoURL)
}

func TestVerify_HashCaseMutation(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now(), nil)
	hash := hashOf(t, raw)

	i := strings.IndexAny(hash, "abcdef")
	require.GreaterOrEqual(t, i, 0, "hash has no hex letter: %s", hash)
	mutated := hash[:i] + strings.ToUpper(hash[i:i+1]) + hash[i+1:]

	_, err := Verify(replaceHash(t, raw, mutated), testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = Verify(replaceHash(t, raw, strings.ToUpper(hash)), testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_HashMutation(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now(), nil)
	hash := hashOf(t, raw)
	require.Len(t, hash, 64)

	for i := 0; i < len(hash); i++ {
		mutated := []byte(hash)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}

		_, err := Verify(replaceHash(t, raw, string(mutated)), testBotToken, time.Hour)
		if !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("position %d: expected ErrSignatureMismatch, got %v", i, err)
		}
	}
}

func TestVerify_FieldTampering(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now(), map[string]string{"chat_type": "private"})

	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	values.Set("user", `{"id":43}`)

	_, err = Verify(values.Encode(), testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	values, err = url.ParseQuery(raw)
	require.NoError(t, err)
	values.Set("start_param", "injected")

	_, err = Verify(values.Encode(), testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_WrongBotToken(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now(), nil)

	_, err := Verify(raw, "654321:OTHER", time.Hour)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerify_Expired(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now().Add(-25*time.Hour), nil)

	_, err := Verify(raw, testBotToken, 24*time.Hour)
	assert.ErrorIs(t, err, ErrExpired)

	// A valid signature does not rescue stale data
	_, err = Verify(raw, testBotToken, 0)
	assert.ErrorIs(t, err, ErrExpired, "zero max age falls back to the 24h default")

	_, err = Verify(raw, testBotToken, 48*time.Hour)
	assert.NoError(t, err)
}

func TestVerify_FutureAuthDate(t *testing.T) {
	raw := signed(t, User{ID: 42}, time.Now().Add(time.Hour), nil)

	_, err := Verify(raw, testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrMalformed)

	raw = signed(t, User{ID: 42}, time.Now().Add(10*time.Second), nil)
	_, err = Verify(raw, testBotToken, time.Hour)
	assert.NoError(t, err, "small clock skew is tolerated")
}

func TestVerify_Malformed(t *testing.T) {
	good := signed(t, User{ID: 42}, time.Now(), nil)
	values, err := url.ParseQuery(good)
	require.NoError(t, err)

	noHash := url.Values{}
	for k, v := range values {
		if k != "hash" {
			noHash[k] = v
		}
	}

	twoHashes := url.Values{}
	for k, v := range values {
		twoHashes[k] = append([]string(nil), v...)
	}
	twoHashes.Add("hash", values.Get("hash"))

	noDate := url.Values{}
	for k, v := range values {
		if k != "auth_date" {
			noDate[k] = v
		}
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"bad escape", "user=%zz&hash=00"},
		{"missing hash", noHash.Encode()},
		{"empty hash", "auth_date=1&hash="},
		{"duplicate hash", twoHashes.Encode()},
		{"missing auth_date", noDate.Encode()},
		{"non numeric auth_date", "auth_date=yesterday&hash=00"},
		{"invalid user json", "auth_date=1700000000&user=%7Bnope&hash=00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.raw, testBotToken, time.Hour)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestVerify_MissingUser(t *testing.T) {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":  "AAH",
	}

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", signature(fields, testBotToken))

	_, err := Verify(values.Encode(), testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "missing user")
}

func TestVerify_NonPositiveUserID(t *testing.T) {
	raw := signed(t, User{ID: 0}, time.Now(), nil)

	_, err := Verify(raw, testBotToken, time.Hour)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCheckString(t *testing.T) {
	got := CheckString(map[string]string{
		"user":      `{"id":42}`,
		"auth_date": "1700000000",
		"hash":      "ignored",
		"query_id":  "Q",
	})
	assert.Equal(t, "auth_date=1700000000\nquery_id=Q\nuser={\"id\":42}", got)
}

func TestVerifier(t *testing.T) {
	_, err := NewVerifier("", time.Hour)
	assert.Error(t, err)

	v, err := NewVerifier(testBotToken, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAge, v.MaxAge())

	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return fixed }

	raw := signed(t, User{ID: 42}, fixed.Add(-23*time.Hour), nil)
	id, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", id.TelegramID)

	raw = signed(t, User{ID: 42}, fixed.Add(-24*time.Hour-time.Second), nil)
	_, err = v.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSign_RequiresToken(t *testing.T) {
	_, err := Sign(User{ID: 1}, time.Now(), nil, "")
	assert.Error(t, err)
}
