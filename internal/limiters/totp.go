package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/mfauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTOTPMaxAttempts = 5
	defaultTOTPCooldown    = time.Minute
)

var (
	ErrTOTPRateLimited = errors.New("totp rate limited")
	ErrTOTPUnavailable = errors.New("totp unavailable")
)

// TOTPLimiterConfig holds configurable thresholds for the TOTP rate limiter.
type TOTPLimiterConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TOTPLimiter counts second-factor attempts per user. A successful
// verification clears the count.
type TOTPLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

// NewTOTPLimiter creates a TOTP rate limiter. Zero-value fields in cfg
// fall back to 5 attempts per minute.
func NewTOTPLimiter(redisClient redis.UniversalClient, cfg TOTPLimiterConfig) *TOTPLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTOTPMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTOTPCooldown
	}
	return &TOTPLimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd}
}

func (l *TOTPLimiter) key(userID int64) string {
	return "otp:" + strconv.FormatInt(userID, 10)
}

// Reserve spends one verification attempt before the code is checked and
// returns [ErrTOTPRateLimited] once more than the configured number of
// attempts have been made inside the cooldown. The counter and its expiry
// are set in one round trip, so concurrent callers cannot overspend.
func (l *TOTPLimiter) Reserve(ctx context.Context, userID int64) error {
	if l == nil {
		return nil
	}
	count, err := rate.Incr(ctx, l.redis, l.key(userID), l.cooldown)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	if count > l.maxAttempts {
		return ErrTOTPRateLimited
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *TOTPLimiter) Reset(ctx context.Context, userID int64) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTOTPUnavailable, err)
	}
	return nil
}
