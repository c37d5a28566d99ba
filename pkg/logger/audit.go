package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is a security-relevant event on a credential: registration,
// login outcomes, password changes and resets.
type AuditEvent struct {
	EventType     string
	CredentialID  string
	IPAddress     string
	Success       bool
	FailureReason string
}

// AuditLogger emits structured audit records on a dedicated slog logger so
// they can be filtered or shipped separately from application logs.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthEvent records an authentication or account event. Failures log at
// Warn so they stand out in aggregated output.
func (al *AuditLogger) LogAuthEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.CredentialID != "" {
		attrs = append(attrs, slog.String("credential_id", event.CredentialID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
