// Package initdata verifies Telegram Mini App init data.
//
// The client forwards window.Telegram.WebApp.initData as
//
//	Authorization: tma query_id=...&user=%7B%22id%22%3A42...%7D&auth_date=1700000000&hash=ab12...
//
// Verification follows the platform algorithm: every field except hash is sorted by key and
// joined as key=value lines; the secret key is HMAC-SHA256("WebAppData", botToken); the
// expected hash is hex(HMAC-SHA256(secret, checkString)) and is compared in constant time.
//
//	v, _ := initdata.NewVerifier(cfg.Auth.BotToken, cfg.Auth.InitDataMaxAge)
//	identity, err := v.Verify(raw)
//	switch {
//	case errors.Is(err, initdata.ErrSignatureMismatch):
//	case errors.Is(err, initdata.ErrExpired):
//	case errors.Is(err, initdata.ErrMalformed):
//	}
//
// Verification is a pure function of the payload, the bot token and the clock.
package initdata
