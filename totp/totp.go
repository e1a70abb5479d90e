package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultSecretBytes = 20
	minSecretBytes     = 10
	defaultPeriod      = 30
	defaultSkew        = 1
	defaultDigits      = 6
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrInvalidSecret is returned when a secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid totp secret")

// Config controls code generation and verification.
type Config struct {
	Issuer      string
	Period      uint
	Skew        uint
	Digits      int
	Algorithm   string
	SecretBytes int
}

// DefaultConfig returns RFC 6238 defaults: SHA1, 6 digits, 30 second steps
// and one step of tolerated drift in either direction.
func DefaultConfig() Config {
	return Config{
		Issuer:      "mfauth",
		Period:      defaultPeriod,
		Skew:        defaultSkew,
		Digits:      defaultDigits,
		Algorithm:   "SHA1",
		SecretBytes: defaultSecretBytes,
	}
}

// Engine issues secrets and verifies time-based codes. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	config    Config
	digits    otp.Digits
	algorithm otp.Algorithm
}

// NewEngine validates cfg, filling zero values from [DefaultConfig].
func NewEngine(cfg Config) (*Engine, error) {
	def := DefaultConfig()
	if cfg.Period == 0 {
		cfg.Period = def.Period
	}
	if cfg.Digits == 0 {
		cfg.Digits = def.Digits
	}
	if cfg.SecretBytes == 0 {
		cfg.SecretBytes = def.SecretBytes
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("totp issuer is required")
	}
	if cfg.SecretBytes < minSecretBytes {
		return nil, errors.New("totp secret must be at least 80 bits")
	}
	if cfg.Skew > 3 {
		return nil, errors.New("totp skew must be <= 3")
	}

	var digits otp.Digits
	switch cfg.Digits {
	case 6:
		digits = otp.DigitsSix
	case 8:
		digits = otp.DigitsEight
	default:
		return nil, errors.New("totp digits must be 6 or 8")
	}

	var algorithm otp.Algorithm
	switch strings.ToUpper(cfg.Algorithm) {
	case "SHA1":
		algorithm = otp.AlgorithmSHA1
	case "SHA256":
		algorithm = otp.AlgorithmSHA256
	case "SHA512":
		algorithm = otp.AlgorithmSHA512
	default:
		return nil, errors.New("unsupported totp algorithm")
	}

	return &Engine{config: cfg, digits: digits, algorithm: algorithm}, nil
}

// Issuer returns the configured issuer label.
func (e *Engine) Issuer() string {
	return e.config.Issuer
}

// GenerateSecret returns a fresh base32 secret without padding.
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, e.config.SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth://totp/ URI authenticator apps scan.
// An empty issuer falls back to the configured one.
func (e *Engine) ProvisioningURI(secret, account, issuer string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	if issuer == "" {
		issuer = e.config.Issuer
	}
	if strings.TrimSpace(account) == "" {
		return "", errors.New("totp account label is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      e.config.Period,
		Secret:      raw,
		Digits:      e.digits,
		Algorithm:   e.algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}

	return key.URL(), nil
}

// Verify reports whether code is valid for secret at now, tolerating the
// configured skew. Malformed codes and secrets return false.
func (e *Engine) Verify(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != e.config.Digits || !isNumeric(code) {
		return false
	}
	if _, err := decodeSecret(secret); err != nil {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), e.validateOpts())
	if err != nil {
		return false
	}
	return ok
}

// Code returns the code for secret at t.
func (e *Engine) Code(secret string, t time.Time) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(secret, t.UTC(), e.validateOpts())
}

func (e *Engine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.config.Period,
		Skew:      e.config.Skew,
		Digits:    e.digits,
		Algorithm: e.algorithm,
	}
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if normalized == "" {
		return nil, ErrInvalidSecret
	}
	raw, err := secretEncoding.DecodeString(normalized)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
