// Package totp issues TOTP secrets, verifies RFC 6238 codes and renders the
// provisioning payload authenticator apps scan.
//
// Secrets are base32 without padding. Verification accepts the current time
// step and the configured number of adjacent steps, and never returns an
// error for a bad code: it simply reports false.
package totp
