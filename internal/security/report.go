package security

import "time"

// PasswordReport is the Argon2id cost in effect.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarises the security posture of a configured engine.
type Report struct {
	SigningAlgorithm      string
	SessionLifetime       time.Duration
	CookieSecure          bool
	CookieSameSite        string
	Argon2                PasswordReport
	TOTPDigits            int
	TOTPSkew              uint
	LoginRateLimiting     bool
	LoginRateLimitShared  bool
	OTPRateLimiting       bool
	RegistrationThrottled bool
	AuditEnabled          bool
	Warnings              []string
}

// ReportInput is the raw settings a report is derived from.
type ReportInput struct {
	SigningAlgorithm    string
	SessionLifetime     time.Duration
	CookieSecure        bool
	CookieSameSite      string
	Password            PasswordReport
	TOTPDigits          int
	TOTPSkew            uint
	LoginMaxAttempts    int
	LoginWindow         time.Duration
	LoginLimiterEnabled bool
	LocalRateLimit      bool
	OTPLimiterEnabled   bool
	OTPMaxAttempts      int
	RegistrationEnabled bool
	AuditEnabled        bool
}

const (
	maxRecommendedLifetime = 12 * time.Hour
	minRecommendedMemoryKB = 19 * 1024
)

// BuildReport derives the posture and its warnings.
func BuildReport(input ReportInput) Report {
	loginLimiting := input.LoginLimiterEnabled &&
		input.LoginMaxAttempts > 0 &&
		input.LoginWindow > 0

	otpLimiting := input.OTPLimiterEnabled && input.OTPMaxAttempts > 0

	r := Report{
		SigningAlgorithm:      input.SigningAlgorithm,
		SessionLifetime:       input.SessionLifetime,
		CookieSecure:          input.CookieSecure,
		CookieSameSite:        input.CookieSameSite,
		Argon2:                input.Password,
		TOTPDigits:            input.TOTPDigits,
		TOTPSkew:              input.TOTPSkew,
		LoginRateLimiting:     loginLimiting,
		LoginRateLimitShared:  loginLimiting && !input.LocalRateLimit,
		OTPRateLimiting:       otpLimiting,
		RegistrationThrottled: input.RegistrationEnabled,
		AuditEnabled:          input.AuditEnabled,
	}

	if !input.CookieSecure {
		r.Warnings = append(r.Warnings, "session cookie is sent over plain HTTP")
	}
	if input.CookieSameSite == "none" {
		r.Warnings = append(r.Warnings, "session cookie is sent on cross-site requests")
	}
	if input.SessionLifetime > maxRecommendedLifetime {
		r.Warnings = append(r.Warnings, "session lifetime exceeds 12h")
	}
	if input.Password.Memory < minRecommendedMemoryKB {
		r.Warnings = append(r.Warnings, "argon2 memory is below 19 MiB")
	}
	if !loginLimiting {
		r.Warnings = append(r.Warnings, "login rate limiting is off")
	} else if input.LocalRateLimit {
		r.Warnings = append(r.Warnings, "login rate limit is per process")
	}
	if !otpLimiting {
		r.Warnings = append(r.Warnings, "one-time code attempts are unbounded")
	}
	if input.TOTPSkew > 1 {
		r.Warnings = append(r.Warnings, "totp skew accepts more than one step either side")
	}

	return r
}
