// Package limiters holds per-user attempt limiters for authentication steps.
//
// [TOTPLimiter] bounds failed one-time-code attempts for a user regardless
// of which address they come from. All limiters are nil-safe.
package limiters
