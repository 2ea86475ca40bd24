package initdata

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Sign produces raw init data for user signed with botToken, the way Telegram would.
// extra fields (query_id, chat_type, ...) are included in the signature.
func Sign(user User, authDate time.Time, extra map[string]string, botToken string) (string, error) {
	if botToken == "" {
		return "", fmt.Errorf("bot token is required")
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user: %w", err)
	}

	fields := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		fields[k] = v
	}
	fields[fieldUser] = string(userJSON)
	fields[fieldAuthDate] = strconv.FormatInt(authDate.Unix(), 10)
	delete(fields, fieldHash)

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set(fieldHash, signature(fields, botToken))

	return values.Encode(), nil
}
