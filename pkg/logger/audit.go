package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Username      string // attempted or acting username; never a password
	AdminID       int64
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit records through the application logger
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts, lockouts and logouts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := al.baseAttrs("auth", event.EventType)
	attrs = append(attrs, slog.Bool("success", event.Success))

	if event.Username != "" {
		attrs = append(attrs, slog.String("username", event.Username))
	}
	if event.AdminID != 0 {
		attrs = append(attrs, slog.Int64("admin_id", event.AdminID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogPasswordChange logs password change events
func (al *AuditLogger) LogPasswordChange(adminID int64, ipAddress string, success bool) {
	attrs := al.baseAttrs("password", "password_change")
	attrs = append(attrs,
		slog.Bool("success", success),
		slog.Int64("admin_id", adminID),
	)
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAccountAction logs admin account management performed by actorID
func (al *AuditLogger) LogAccountAction(eventType string, actorID, targetID int64, metadata map[string]string) {
	attrs := al.baseAttrs("account", eventType)
	attrs = append(attrs,
		slog.Int64("actor_id", actorID),
		slog.Int64("target_id", targetID),
	)
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// LogRequestAction logs changes to a service request
func (al *AuditLogger) LogRequestAction(eventType string, requestID int64, actor string, metadata map[string]string) {
	attrs := al.baseAttrs("request", eventType)
	attrs = append(attrs, slog.String("request_id", strconv.FormatInt(requestID, 10)))
	if actor != "" {
		attrs = append(attrs, slog.String("actor", actor))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

func (al *AuditLogger) baseAttrs(auditType, eventType string) []slog.Attr {
	return []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", eventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
}
