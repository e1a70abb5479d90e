package mfauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth/password"
	"github.com/MrEthical07/mfauth/totp"
)

// Config holds every tunable of the authentication core.
type Config struct {
	Password     PasswordConfig
	TOTP         TOTPConfig
	Session      SessionConfig
	RateLimit    RateLimitConfig
	OTPLimit     OTPLimitConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id costs and the acceptance policy.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	// GeneratedLength is the length of passwords produced by a reset.
	GeneratedLength int
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig holds the one-time code parameters.
type TOTPConfig struct {
	Issuer      string
	Period      uint
	Skew        uint
	Digits      int
	SecretBytes int
	QRSize      int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server-side sessions and the cookie that names them.
type SessionConfig struct {
	// Lifetime is absolute. Sessions are never extended.
	Lifetime       time.Duration
	RedisPrefix    string
	SigningKey     []byte
	Issuer         string
	CookieName     string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

/*
====================================
LIMITS
====================================
*/

// RateLimitConfig bounds login submissions per client address.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	RedisPrefix string
}

// OTPLimitConfig bounds failed one-time codes per user.
type OTPLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
}

// RegistrationConfig bounds sign-ups per email and per client address.
type RegistrationConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
OBSERVABILITY
====================================
*/

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// FlushTimeout bounds how long Engine.Close waits for queued events.
	FlushTimeout time.Duration
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the reference configuration. SigningKey is left
// empty and must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	tc := totp.DefaultConfig()

	return Config{
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
			MinLength:        password.DefaultMinLength,
			GeneratedLength:  password.DefaultGeneratedLength,
		},
		TOTP: TOTPConfig{
			Issuer:      tc.Issuer,
			Period:      tc.Period,
			Skew:        tc.Skew,
			Digits:      tc.Digits,
			SecretBytes: tc.SecretBytes,
			QRSize:      totp.DefaultQRSize,
		},
		Session: SessionConfig{
			Lifetime:       30 * time.Minute,
			RedisPrefix:    "mfs",
			Issuer:         "mfauth",
			CookieName:     "mfauth_session",
			CookiePath:     "/",
			CookieSecure:   true,
			CookieSameSite: http.SameSiteLaxMode,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 10,
			Window:      time.Minute,
			RedisPrefix: "rl:login",
		},
		OTPLimit: OTPLimitConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Cooldown:    time.Minute,
		},
		Registration: RegistrationConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Cooldown:    time.Hour,
		},
		Audit: AuditConfig{
			Enabled:      true,
			BufferSize:   1024,
			DropIfFull:   true,
			FlushTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.SigningKey = cloneBytes(cfg.Session.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.GeneratedLength < c.Password.MinLength {
		return errors.New("Password GeneratedLength must be >= MinLength")
	}
	if c.Password.GeneratedLength > password.MaxGeneratedLength {
		return errors.New("Password GeneratedLength is too large")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.SecretBytes < 10 {
		return errors.New("TOTP SecretBytes must be >= 10")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if len(c.Session.SigningKey) < 32 {
		return errors.New("Session SigningKey must be >= 32 bytes")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must be set")
	}

	// Limits
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window < time.Second {
			return errors.New("RateLimit Window must be >= 1s")
		}
	}
	if c.OTPLimit.Enabled {
		if c.OTPLimit.MaxAttempts <= 0 {
			return errors.New("OTPLimit MaxAttempts must be > 0")
		}
		if c.OTPLimit.Cooldown <= 0 {
			return errors.New("OTPLimit Cooldown must be > 0")
		}
	}
	if c.Registration.Enabled && c.Registration.MaxAttempts <= 0 {
		return errors.New("Registration MaxAttempts must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.FlushTimeout < 0 {
		return errors.New("Audit FlushTimeout must be >= 0")
	}

	return nil
}
