package mfauth

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/mfauth/internal/audit"
	"github.com/MrEthical07/mfauth/internal/limiters"
	"github.com/MrEthical07/mfauth/internal/rate"
	"github.com/MrEthical07/mfauth/jwt"
	"github.com/MrEthical07/mfauth/password"
	"github.com/MrEthical07/mfauth/session"
	"github.com/MrEthical07/mfauth/totp"
	"github.com/redis/go-redis/v9"
)

// Builder collects the collaborators of an [Engine]. A builder is used
// once; configure it during startup and call [Builder.Build].
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	mfa         MFAStore
	linker      UserLinker

	logger    *slog.Logger
	auditSink AuditSink

	localRateLimit bool
	built          bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithMFAStore(store MFAStore) *Builder {
	b.mfa = store
	return b
}

// WithUserLinker sets the collaborator that binds MFA records to users.
// Without one, MFA activation fails.
func (b *Builder) WithUserLinker(linker UserLinker) *Builder {
	b.linker = linker
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLocalRateLimit keeps login counters in process memory instead of
// Redis. Counts are then per instance.
func (b *Builder) WithLocalRateLimit() *Builder {
	b.localRateLimit = true
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every service.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.mfa == nil {
		return nil, errors.New("mfa store required")
	}

	logger := b.logger
	if logger == nil {
		logger = discardLogger
	}

	obs := instrumentation{
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:      cfg.Audit.Enabled,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			FlushTimeout: cfg.Audit.FlushTimeout,
		}, b.auditSink),
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	creds, err := NewCredentialService(b.credentials, hasher, password.Policy{MinLength: cfg.Password.MinLength}, logger)
	if err != nil {
		return nil, err
	}
	creds.generatedLength = cfg.Password.GeneratedLength
	creds.obs = obs

	// -------- TOTP --------
	engineTOTP, err := totp.NewEngine(totp.Config{
		Issuer:      cfg.TOTP.Issuer,
		Period:      cfg.TOTP.Period,
		Skew:        cfg.TOTP.Skew,
		Digits:      cfg.TOTP.Digits,
		SecretBytes: cfg.TOTP.SecretBytes,
	})
	if err != nil {
		return nil, err
	}
	mfa, err := NewMFAService(b.mfa, b.linker, b.credentials, engineTOTP, logger)
	if err != nil {
		return nil, err
	}
	if cfg.TOTP.QRSize > 0 {
		mfa.qrSize = cfg.TOTP.QRSize
	}
	mfa.obs = obs

	// -------- SESSIONS --------
	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cloneBytes(cfg.Session.SigningKey),
		Issuer:        cfg.Session.Issuer,
	})
	if err != nil {
		return nil, err
	}
	store := session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Lifetime)
	gate, err := NewSessionGate(store, tokens, cfg.Session.Lifetime, logger)
	if err != nil {
		return nil, err
	}
	gate.obs = obs
	if cfg.RateLimit.Enabled {
		rc := rate.Config{
			Prefix: cfg.RateLimit.RedisPrefix,
			Limit:  cfg.RateLimit.MaxAttempts,
			Window: cfg.RateLimit.Window,
		}
		if b.localRateLimit {
			gate.limiter = rate.NewMemory(rc)
		} else {
			gate.limiter = rate.New(b.redis, rc)
		}
	}

	// -------- LOGIN FLOW --------
	auth, err := NewAuthenticationService(creds, mfa, gate, logger)
	if err != nil {
		return nil, err
	}
	auth.obs = obs
	if cfg.OTPLimit.Enabled {
		auth.otpLimiter = limiters.NewTOTPLimiter(b.redis, limiters.TOTPLimiterConfig{
			MaxAttempts: cfg.OTPLimit.MaxAttempts,
			Cooldown:    cfg.OTPLimit.Cooldown,
		})
	}

	engine := &Engine{
		config:      cfg,
		credentials: creds,
		mfa:         mfa,
		auth:        auth,
		gate:        gate,
		sessions:    store,
		localLimit:  b.localRateLimit,
		obs:         obs,
	}
	if cfg.Registration.Enabled {
		engine.registration = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
			EnableEmailThrottle: true,
			EnableIPThrottle:    true,
			MaxAttempts:         cfg.Registration.MaxAttempts,
			Cooldown:            cfg.Registration.Cooldown,
		})
	}

	b.built = true
	return engine, nil
}
