package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/trainhub/trainhub/pkg/auth"
	"github.com/trainhub/trainhub/pkg/directory"
	"github.com/trainhub/trainhub/pkg/httputil"
	"github.com/trainhub/trainhub/pkg/initdata"
	"github.com/trainhub/trainhub/pkg/middleware"
	"github.com/trainhub/trainhub/pkg/observability"
	"github.com/trainhub/trainhub/pkg/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// tmaScheme prefixes raw init data in the Authorization header
const tmaScheme = "tma "

const tracerName = "github.com/trainhub/trainhub/pkg/api"

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	verifier  PayloadVerifier
	issuer    SessionIssuer
	directory directory.Store
	metrics   *observability.Metrics
	audit     *auth.AuditLogger
	cookie    session.CookieOptions
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(verifier PayloadVerifier, issuer SessionIssuer, store directory.Store, metrics *observability.Metrics, audit *auth.AuditLogger, cookie session.CookieOptions) *AuthHandlers {
	if audit == nil {
		audit = auth.NewAuditLogger(nil)
	}
	return &AuthHandlers{
		verifier:  verifier,
		issuer:    issuer,
		directory: store,
		metrics:   metrics,
		audit:     audit,
		cookie:    cookie,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.login).Methods("POST")
	router.HandleFunc("/api/auth/register", h.register).Methods("POST")
	router.HandleFunc("/api/auth/validate", h.validate).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.logout).Methods("POST")
	router.HandleFunc("/api/me", h.me).Methods("GET")
}

// tmaPayload extracts raw init data from "Authorization: tma <payload>"
func tmaPayload(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, tmaScheme) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(tmaScheme):])
	return raw, raw != ""
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, initdata.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, initdata.ErrExpired):
		return "expired"
	default:
		return "malformed"
	}
}

// verify checks raw init data, recording the result. On failure a 403 has been written.
func (h *AuthHandlers) verify(w http.ResponseWriter, r *http.Request, endpoint, action, raw string) (initdata.Identity, bool) {
	identity, err := h.verifier.Verify(raw)
	h.metrics.RecordVerification(verificationResult(err))
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("init data rejected")
		_ = h.audit.LogFromRequest(r, action, "", 0, auth.StatusFailure, err)
		h.metrics.RecordAuthRequest(endpoint, "invalid_init_data")
		httputil.WriteForbidden(w, "invalid telegram authorization")
		return initdata.Identity{}, false
	}
	return identity, true
}

// issue signs a session for identity and sets the cookie. On failure an error response has been written.
func (h *AuthHandlers) issue(w http.ResponseWriter, r *http.Request, endpoint, action string, identity initdata.Identity) (*session.Token, bool) {
	logger := observability.FromContext(r.Context()).WithField("telegram_id", identity.TelegramID)

	token, err := h.issuer.Issue(r.Context(), identity, h.directory)
	if errors.Is(err, session.ErrUserNotFound) {
		_ = h.audit.LogFromRequest(r, action, identity.TelegramID, 0, auth.StatusDenied, err)
		h.metrics.RecordAuthRequest(endpoint, "not_registered")
		httputil.WriteForbidden(w, "user not registered")
		return nil, false
	}
	if err != nil {
		logger.WithError(err).Error("failed to issue session")
		_ = h.audit.LogFromRequest(r, action, identity.TelegramID, 0, auth.StatusFailure, err)
		h.metrics.RecordAuthRequest(endpoint, "error")
		httputil.WriteInternalError(w)
		return nil, false
	}

	session.SetCookie(w, token, h.cookie)
	h.metrics.RecordSessionIssued(token.Claims.Role.String())
	h.metrics.RecordAuthRequest(endpoint, "success")
	_ = h.audit.LogFromRequest(r, action, identity.TelegramID, token.Claims.UserID, auth.StatusSuccess, nil)
	return token, true
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.Tracer(tracerName).Start(r.Context(), "auth.login")
	defer span.End()
	r = r.WithContext(ctx)

	raw, ok := tmaPayload(r)
	if !ok {
		h.metrics.RecordAuthRequest("login", "missing_authorization")
		httputil.WriteUnauthorized(w, "missing telegram authorization")
		return
	}

	identity, ok := h.verify(w, r, "login", auth.ActionLogin, raw)
	if !ok {
		span.SetStatus(codes.Error, "init data rejected")
		return
	}

	token, ok := h.issue(w, r, "login", auth.ActionLogin, identity)
	if !ok {
		span.SetStatus(codes.Error, "session not issued")
		return
	}
	span.SetAttributes(attribute.Int64("trainhub.user_id", token.Claims.UserID))

	httputil.WriteSuccess(w, LoginResponse{
		UserID:  token.Claims.UserID,
		Role:    token.Claims.Role,
		GroupID: token.Claims.GroupID,
	})
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.Tracer(tracerName).Start(r.Context(), "auth.register")
	defer span.End()
	r = r.WithContext(ctx)

	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	raw, ok := tmaPayload(r)
	if !ok {
		raw = req.InitDataRaw
	}
	if raw == "" {
		httputil.WriteBadRequest(w, "initDataRaw is required")
		return
	}
	if req.AccessCode == "" {
		httputil.WriteBadRequest(w, "accessCode is required")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid role")
		return
	}

	identity, ok := h.verify(w, r, "register", auth.ActionRegister, raw)
	if !ok {
		span.SetStatus(codes.Error, "init data rejected")
		return
	}

	logger := observability.FromContext(ctx).WithField("telegram_id", identity.TelegramID)

	group, err := h.directory.GroupByAccessCode(ctx, req.AccessCode)
	if errors.Is(err, directory.ErrGroupNotFound) {
		h.metrics.RecordAuthRequest("register", "group_not_found")
		httputil.WriteNotFoundError(w, "group not found")
		return
	}
	if err != nil {
		logger.WithError(err).Error("failed to resolve access code")
		h.metrics.RecordAuthRequest("register", "error")
		httputil.WriteInternalError(w)
		return
	}

	user, err := h.directory.Register(ctx, directory.Profile{
		TelegramID: identity.TelegramID,
		Username:   identity.Username,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		PhotoURL:   identity.PhotoURL,
	}, role, group)
	if errors.Is(err, directory.ErrTeacherTaken) {
		_ = h.audit.LogFromRequest(r, auth.ActionRegister, identity.TelegramID, 0, auth.StatusDenied, err)
		h.metrics.RecordAuthRequest("register", "teacher_taken")
		httputil.WriteConflict(w, "group already has a teacher")
		return
	}
	if err != nil {
		logger.WithError(err).Error("failed to register user")
		h.metrics.RecordAuthRequest("register", "error")
		httputil.WriteInternalError(w)
		return
	}
	span.SetAttributes(
		attribute.Int64("trainhub.user_id", user.ID),
		attribute.Int64("trainhub.group_id", group.ID),
	)

	token, ok := h.issue(w, r, "register", auth.ActionRegister, identity)
	if !ok {
		span.SetStatus(codes.Error, "session not issued")
		return
	}

	httputil.WriteSuccess(w, RegisterResponse{
		LoginResponse: LoginResponse{
			UserID:  token.Claims.UserID,
			Role:    token.Claims.Role,
			GroupID: token.Claims.GroupID,
		},
		User: ProfileResponse{
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
			PhotoURL:  user.PhotoURL,
		},
	})
}

// validate handles POST /api/auth/validate
func (h *AuthHandlers) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := httputil.ParseJSON(r, &req); err != nil || req.Code == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, ValidateResponse{Error: "code is required"})
		return
	}

	group, err := h.directory.GroupByAccessCode(r.Context(), req.Code)
	if errors.Is(err, directory.ErrGroupNotFound) {
		h.metrics.RecordAuthRequest("validate", "group_not_found")
		httputil.WriteJSON(w, http.StatusNotFound, ValidateResponse{})
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to validate access code")
		h.metrics.RecordAuthRequest("validate", "error")
		httputil.WriteJSON(w, http.StatusInternalServerError, ValidateResponse{Error: "internal server error"})
		return
	}

	h.metrics.RecordAuthRequest("validate", "success")
	httputil.WriteSuccess(w, ValidateResponse{
		Valid:          true,
		GroupID:        group.ID,
		GroupTitle:     group.Title,
		AvailableRoles: group.AvailableRoles(),
	})
}

// logout handles POST /api/auth/logout. Tokens stay valid until expiry; only the cookie is cleared.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.cookie)
	_ = h.audit.LogFromRequest(r, auth.ActionLogout, "", 0, auth.StatusSuccess, nil)
	h.metrics.RecordAuthRequest("logout", "success")
	httputil.WriteNoContent(w)
}

// me handles GET /api/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, authCtx.Identity)
}
