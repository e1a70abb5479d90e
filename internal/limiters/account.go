package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	ErrRegistrationUnavailable = errors.New("registration limiter unavailable")
)

// RegistrationConfig bounds sign-up attempts per email and per client IP.
type RegistrationConfig struct {
	EnableEmailThrottle bool
	EnableIPThrottle    bool
	MaxAttempts         int
	Cooldown            time.Duration
}

// RegistrationLimiter throttles account creation.
type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one registration attempt and returns
// [ErrRegistrationRateLimited] once either budget is exceeded.
func (l *RegistrationLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableEmailThrottle && email != "" {
		if err := l.enforceKey(ctx, "reg:e:"+strings.ToLower(email)); err != nil {
			return err
		}
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceKey(ctx, "reg:ip:"+ip); err != nil {
			return err
		}
	}

	return nil
}

func (l *RegistrationLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := rate.Incr(ctx, l.redis, key, l.config.Cooldown)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationUnavailable, err)
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRegistrationRateLimited
	}

	return nil
}
