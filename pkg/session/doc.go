// Package session issues and decodes stateless session tokens.
//
// A session token is an HS256 JWT with the registered claims sub (local user id), iat and
// exp (iat + 7 days) and the private claims role, tgId and groupId. The server keeps no
// session store: validity is decided only by signature and expiry, so a token cannot be
// revoked before it expires.
//
//	issuer, err := session.NewIssuer([]byte(cfg.Auth.SessionSecret))
//	token, err := issuer.Issue(ctx, identity, dir)
//	if errors.Is(err, session.ErrUserNotFound) { ... }
//	session.SetCookie(w, token, session.CookieOptions{Secure: cfg.Auth.SecureCookie})
//
// The cookie is HttpOnly, SameSite=Strict, Path=/ and lives for seven days.
package session
