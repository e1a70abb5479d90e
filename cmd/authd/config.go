package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/mfauth"
)

type config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	PGConnURL       string        `env:"PG_CONN_URL,required"`
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SessionSecret   string        `env:"SESSION_SECRET,required"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"true"`
	TOTPIssuer      string        `env:"TOTP_ISSUER" envDefault:"mfauth"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled    bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditFlush      time.Duration `env:"AUDIT_FLUSH_TIMEOUT" envDefault:"5s"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// loadConfig reads an optional .env file, then the process environment.
// Variables already set win over the file.
func loadConfig(files ...string) (config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// engineConfig overlays the process settings on the library defaults.
func (c config) engineConfig() mfauth.Config {
	cfg := mfauth.DefaultConfig()
	cfg.Session.SigningKey = []byte(c.SessionSecret)
	cfg.Session.Lifetime = c.SessionTTL
	cfg.Session.CookieSecure = c.CookieSecure
	cfg.TOTP.Issuer = c.TOTPIssuer
	cfg.RateLimit.MaxAttempts = c.LoginRateLimit
	cfg.RateLimit.Window = c.LoginRateWindow
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Audit.FlushTimeout = c.AuditFlush
	return cfg
}

func (c config) slogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
