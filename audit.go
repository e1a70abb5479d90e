package mfauth

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/mfauth/internal/audit"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

const (
	auditLoginSuccess       = "login_success"
	auditLoginFailure       = "login_failure"
	auditLoginMFARequired   = "login_mfa_required"
	auditLoginHoneypot      = "login_honeypot"
	auditLoginRateLimited   = "login_rate_limited"
	auditOTPSuccess         = "otp_success"
	auditOTPFailure         = "otp_failure"
	auditMFAActivated       = "mfa_activated"
	auditMFARotated         = "mfa_rotated"
	auditMFADeactivated     = "mfa_deactivated"
	auditPasswordReset      = "password_reset"
	auditPasswordChanged    = "password_changed"
	auditCredentialsCreated = "credentials_created"
	auditLogout             = "logout"
)

// NewSlogAuditSink writes events through logger.
func NewSlogAuditSink(logger *slog.Logger) AuditSink {
	return audit.NewSlogSink(logger)
}

// NewJSONAuditSink writes one JSON object per line to w.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewChannelAuditSink buffers events in a channel, mostly for tests.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// MultiAuditSink fans events out to every sink in order.
func MultiAuditSink(sinks ...AuditSink) AuditSink {
	return audit.MultiSink(sinks)
}

// instrumentation carries the logger, audit dispatcher and counters shared
// by the services. The zero value is usable and records nothing.
type instrumentation struct {
	logger  *slog.Logger
	audit   *audit.Dispatcher
	metrics *Metrics
}

func (in instrumentation) log() *slog.Logger {
	if in.logger == nil {
		return discardLogger
	}
	return in.logger
}

func (in instrumentation) inc(id MetricID) {
	in.metrics.Inc(id)
}

func (in instrumentation) emit(ctx context.Context, eventType string, userID int64, success bool, err error, meta map[string]string) {
	if in.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if userID != 0 {
		event.UserID = strconv.FormatInt(userID, 10)
	}
	if err != nil {
		event.Error = err.Error()
	}
	in.audit.Emit(ctx, event)
}

var discardLogger = slog.New(slog.DiscardHandler)
