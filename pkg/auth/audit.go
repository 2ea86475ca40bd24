package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLog represents a security audit entry for an authentication decision
type AuditLog struct {
	Action       string
	TelegramID   string
	UserID       int64
	IPAddress    string
	UserAgent    string
	Path         string
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// AuditLogger writes security audit entries as structured log lines.
// Entries never contain payloads, hashes or tokens.
type AuditLogger struct {
	logger  *logrus.Logger
	proxies TrustedProxies
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *logrus.Logger) *AuditLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditLogger{logger: logger}
}

// WithTrustedProxies returns a copy that attributes requests through the given proxies
func (al *AuditLogger) WithTrustedProxies(proxies TrustedProxies) *AuditLogger {
	return &AuditLogger{logger: al.logger, proxies: proxies}
}

// LogAction logs an audit event
func (al *AuditLogger) LogAction(ctx context.Context, log *AuditLog) error {
	if log.Action == "" {
		return fmt.Errorf("action is required")
	}
	if log.Status == "" {
		return fmt.Errorf("status is required")
	}

	log.CreatedAt = time.Now()

	fields := logrus.Fields{
		"audit":      true,
		"action":     log.Action,
		"status":     log.Status,
		"ip_address": log.IPAddress,
		"path":       log.Path,
	}
	if log.TelegramID != "" {
		fields["telegram_id"] = log.TelegramID
	}
	if log.UserID != 0 {
		fields["user_id"] = log.UserID
	}
	if log.UserAgent != "" {
		fields["user_agent"] = log.UserAgent
	}
	if log.ErrorMessage != "" {
		fields["error"] = log.ErrorMessage
	}

	entry := al.logger.WithContext(ctx).WithFields(fields).WithTime(log.CreatedAt)
	if log.Status == StatusSuccess {
		entry.Info("audit")
	} else {
		entry.Warn("audit")
	}
	return nil
}

// LogFromRequest creates an audit log from an HTTP request
func (al *AuditLogger) LogFromRequest(r *http.Request, action, telegramID string, userID int64, status string, err error) error {
	log := &AuditLog{
		Action:     action,
		TelegramID: telegramID,
		UserID:     userID,
		IPAddress:  al.proxies.ClientIP(r),
		UserAgent:  r.UserAgent(),
		Path:       r.URL.Path,
		Status:     status,
	}

	if err != nil {
		log.ErrorMessage = err.Error()
	}

	return al.LogAction(r.Context(), log)
}

// Common audit action constants
const (
	ActionLogin             = "auth.login"
	ActionRegister          = "auth.register"
	ActionLogout            = "auth.logout"
	ActionGateDenied        = "gate.denied"
	ActionRateLimitExceeded = "ratelimit.exceeded"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
