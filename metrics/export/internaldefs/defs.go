package internaldefs

import (
	"github.com/MrEthical07/mfauth"
)

// CounterDef binds a counter ID to its exported name.
type CounterDef struct {
	ID   mfauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram ID to its exported name.
type HistogramDef struct {
	ID   mfauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to a full buffer.
const AuditDroppedName = "mfauth_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: mfauth.MetricLoginSuccess, Name: "mfauth_login_success_total", Help: "Logins that passed the password step."},
	{ID: mfauth.MetricLoginFailure, Name: "mfauth_login_failure_total", Help: "Rejected login credentials."},
	{ID: mfauth.MetricLoginRateLimited, Name: "mfauth_login_rate_limited_total", Help: "Login submissions refused by the address limiter."},
	{ID: mfauth.MetricLoginHoneypot, Name: "mfauth_login_honeypot_total", Help: "Login submissions dropped by the honeypot field."},
	{ID: mfauth.MetricMFARequired, Name: "mfauth_mfa_required_total", Help: "Logins that stopped at the second factor."},
	{ID: mfauth.MetricOTPSuccess, Name: "mfauth_otp_success_total", Help: "Accepted one-time codes."},
	{ID: mfauth.MetricOTPFailure, Name: "mfauth_otp_failure_total", Help: "Rejected one-time codes."},
	{ID: mfauth.MetricOTPRateLimited, Name: "mfauth_otp_rate_limited_total", Help: "One-time code attempts refused by the per-user limiter."},
	{ID: mfauth.MetricMFAActivated, Name: "mfauth_mfa_activated_total", Help: "Second-factor enrollments created."},
	{ID: mfauth.MetricMFARotated, Name: "mfauth_mfa_rotated_total", Help: "Second-factor secrets rotated."},
	{ID: mfauth.MetricMFADeactivated, Name: "mfauth_mfa_deactivated_total", Help: "Second-factor enrollments removed."},
	{ID: mfauth.MetricCredentialsCreated, Name: "mfauth_credentials_created_total", Help: "Registered credentials."},
	{ID: mfauth.MetricRegistrationRateLimited, Name: "mfauth_registration_rate_limited_total", Help: "Registrations refused by the sign-up limiter."},
	{ID: mfauth.MetricPasswordChanged, Name: "mfauth_password_changed_total", Help: "Password changes."},
	{ID: mfauth.MetricPasswordReset, Name: "mfauth_password_reset_total", Help: "Password resets."},
	{ID: mfauth.MetricSessionCreated, Name: "mfauth_session_created_total", Help: "Sessions established."},
	{ID: mfauth.MetricSessionPromoted, Name: "mfauth_session_promoted_total", Help: "Sessions promoted to fully authenticated."},
	{ID: mfauth.MetricSessionDenied, Name: "mfauth_session_denied_total", Help: "Requests refused by the route sensitivity check."},
	{ID: mfauth.MetricLogout, Name: "mfauth_logout_total", Help: "Sessions torn down."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: mfauth.MetricLoginLatency, Name: "mfauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
