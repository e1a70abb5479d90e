package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLimit is the attempt budget per window.
	DefaultLimit = 10
	// DefaultWindow is the fixed window length.
	DefaultWindow = time.Minute
)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix string
	Limit  int
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Count     int64
	Remaining int
	Reset     time.Time
}

// fixedWindowScript increments the counter for the current window and arms
// its expiry on the first hit.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

var fixedWindowLua = redis.NewScript(fixedWindowScript)

// Incr atomically increments key and, on the first hit, sets its expiry to
// ttl. Sub-second ttls round up to one second.
func Incr(ctx context.Context, rdb redis.Scripter, key string, ttl time.Duration) (int64, error) {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fixedWindowLua.Run(ctx, rdb, []string{key}, secs).Int64()
}

// Limiter enforces a fixed-window attempt budget per key using Redis
// counters. The count and the expiry are set in one script call.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// New creates a Redis-backed [Limiter].
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg.withDefaults(),
		now:    time.Now,
	}
}

// Allow counts one attempt for key and reports whether it fits the budget.
// A rejected attempt still counts.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	start, reset := windowBounds(l.now(), l.config.Window)
	redisKey := l.config.Prefix + ":" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	count, err := Incr(ctx, l.redis, redisKey, l.config.Window)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return decide(count, l.config.Limit, reset), nil
}

func windowBounds(now time.Time, window time.Duration) (time.Time, time.Time) {
	start := now.Truncate(window)
	return start, start.Add(window)
}

func decide(count int64, limit int, reset time.Time) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Count:     count,
		Remaining: remaining,
		Reset:     reset,
	}
}
