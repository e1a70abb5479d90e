package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
if ARGV[2] ~= "" then
  redis.call("SREM", KEYS[2], ARGV[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store. Sessions expire at their absolute
// ExpiresAt and reads never extend them.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
	now      func() time.Time
}

// NewStore creates a session [Store]. prefix namespaces keys; lifetime
// bounds how long per-user indexes are retained.
func NewStore(rdb redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	if prefix == "" {
		prefix = "mfs"
	}
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Store{
		redis:    rdb,
		prefix:   prefix,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Lifetime is the absolute session lifetime configured for this store.
func (s *Store) Lifetime() time.Duration {
	return s.lifetime
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("%s:u:%d", s.prefix, userID)
}

// Save persists sess until its ExpiresAt. Sessions bound to a user are
// added to that user's index so they can be revoked together.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := sess.Remaining(s.now())
	if ttl <= 0 {
		return ErrNotFound
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		if sess.UserID != 0 {
			userKey := s.userKey(sess.UserID)
			pipe.SAdd(ctx, userKey, sess.ID)
			pipe.Expire(ctx, userKey, s.lifetime)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a session by ID. Missing and expired sessions return
// [ErrNotFound]; expired ones are removed.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID

	if sess.Expired(s.now()) {
		if err := s.deleteSessionAndIndex(ctx, sessionID, sess.UserID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var userID int64
	if sess, decErr := Decode(data); decErr == nil {
		userID = sess.UserID
	}

	return s.deleteSessionAndIndex(ctx, sessionID, userID)
}

// DeleteAllForUser removes every session indexed under userID.
//
// A session saved between the SMEMBERS read and the delete is not captured.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionIDs returns the IDs indexed for userID. Entries may refer to
// sessions that have since expired.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID int64) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, sessionID string, userID int64) error {
	userKey := ""
	indexed := ""
	if userID != 0 {
		userKey = s.userKey(userID)
		indexed = "1"
	} else {
		userKey = s.key(sessionID)
	}

	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), userKey}, sessionID, indexed).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
