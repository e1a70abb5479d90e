package mfauth

import (
	"net/http"

	"github.com/MrEthical07/mfauth/internal/security"
)

// SecurityReport describes the posture of the configured engine. Warnings
// lists the settings that weaken it.
type SecurityReport = security.Report

// SecurityReport derives the posture from the engine configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: "HS256",
		SessionLifetime:  cfg.Session.Lifetime,
		CookieSecure:     cfg.Session.CookieSecure,
		CookieSameSite:   sameSiteName(cfg.Session.CookieSameSite),
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		TOTPDigits:          cfg.TOTP.Digits,
		TOTPSkew:            cfg.TOTP.Skew,
		LoginMaxAttempts:    cfg.RateLimit.MaxAttempts,
		LoginWindow:         cfg.RateLimit.Window,
		LoginLimiterEnabled: cfg.RateLimit.Enabled,
		LocalRateLimit:      e.localLimit,
		OTPLimiterEnabled:   cfg.OTPLimit.Enabled,
		OTPMaxAttempts:      cfg.OTPLimit.MaxAttempts,
		RegistrationEnabled: cfg.Registration.Enabled,
		AuditEnabled:        cfg.Audit.Enabled,
	})
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "lax"
	}
}
