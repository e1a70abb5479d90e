// Package otel publishes mfauth counters as OpenTelemetry observable
// instruments. One callback reads the engine snapshot per collection.
// Callers own the MeterProvider.
//
// Int64ObservableCounter instruments:
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
//	mfauth_audit_dropped_total
//
// The login latency histogram is flattened into Int64ObservableGauge
// instruments holding cumulative counts:
//
//	mfauth_login_latency_seconds_bucket_le_0_005
//	mfauth_login_latency_seconds_bucket_le_0_01
//	mfauth_login_latency_seconds_bucket_le_0_025
//	mfauth_login_latency_seconds_bucket_le_0_05
//	mfauth_login_latency_seconds_bucket_le_0_1
//	mfauth_login_latency_seconds_bucket_le_0_25
//	mfauth_login_latency_seconds_bucket_le_0_5
//	mfauth_login_latency_seconds_bucket_le_inf
//	mfauth_login_latency_seconds_count
package otel
