// Package auth holds the identity vocabulary shared by the trainhub authentication core.
//
// # Overview
//
// A Telegram mini-app user is known locally by a numeric user id, a Role and an optional
// training group. After the authorization gate validates a session token it places an
// AuthContext carrying that Identity into the request context:
//
//	authCtx := middleware.GetAuthContext(r)
//	if !authCtx.HasRole(auth.RoleMentor, auth.RoleTeacher) {
//		httputil.WriteForbidden(w, "insufficient role")
//		return
//	}
//
// # Roles
//
//	RoleStudent - attends training slots
//	RoleMentor  - runs training slots
//	RoleTeacher - owns a group
//
// Roles always come from the user directory, never from client input.
//
// # Security Audit Logging
//
// AuditLogger emits one structured line per authentication decision:
//
//	auditLogger.LogFromRequest(r, auth.ActionLogin, identity.TelegramID, user.ID, auth.StatusSuccess, nil)
//
// # Related Packages
//
//   - pkg/initdata: init data verification
//   - pkg/session: session token issuance and decoding
//   - pkg/middleware: authorization gate
package auth
