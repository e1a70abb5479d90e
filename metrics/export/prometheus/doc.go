// Package prometheus renders mfauth counters in the Prometheus text
// exposition format.
//
// Render emits these counters, in this order:
//
//	mfauth_login_success_total
//	mfauth_login_failure_total
//	mfauth_login_rate_limited_total
//	mfauth_login_honeypot_total
//	mfauth_mfa_required_total
//	mfauth_otp_success_total
//	mfauth_otp_failure_total
//	mfauth_otp_rate_limited_total
//	mfauth_mfa_activated_total
//	mfauth_mfa_rotated_total
//	mfauth_mfa_deactivated_total
//	mfauth_credentials_created_total
//	mfauth_registration_rate_limited_total
//	mfauth_password_changed_total
//	mfauth_password_reset_total
//	mfauth_session_created_total
//	mfauth_session_promoted_total
//	mfauth_session_denied_total
//	mfauth_logout_total
//
// It then emits the histogram mfauth_login_latency_seconds, as
// mfauth_login_latency_seconds_bucket{le="..."} and
// mfauth_login_latency_seconds_count. The last series is
// mfauth_audit_dropped_total, which counts audit events that never reached
// the sink.
//
// The exporter never touches a global registry; mount [PrometheusExporter.Handler]
// wherever metrics are scraped.
package prometheus
