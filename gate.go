package mfauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/mfauth/internal/rate"
	"github.com/MrEthical07/mfauth/jwt"
	"github.com/MrEthical07/mfauth/session"
	"github.com/google/uuid"
)

type attemptLimiter interface {
	Allow(ctx context.Context, key string) (rate.Result, error)
}

// SessionGate owns session state. It decides whether a request may reach
// a route, throttles login submissions and creates, promotes and destroys
// sessions.
type SessionGate struct {
	store    SessionStore
	tokens   *jwt.Manager
	limiter  attemptLimiter
	lifetime time.Duration
	now      func() time.Time
	newID    func() string
	obs      instrumentation
}

// NewSessionGate returns a gate without a login limiter. The [Builder]
// attaches one.
func NewSessionGate(store SessionStore, tokens *jwt.Manager, lifetime time.Duration, logger *slog.Logger) (*SessionGate, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	if tokens == nil {
		return nil, errors.New("token manager required")
	}
	if lifetime <= 0 {
		return nil, errors.New("session lifetime must be > 0")
	}
	return &SessionGate{
		store:    store,
		tokens:   tokens,
		lifetime: lifetime,
		now:      time.Now,
		newID:    uuid.NewString,
		obs:      instrumentation{logger: logger},
	}, nil
}

// Lifetime is the absolute session lifetime.
func (g *SessionGate) Lifetime() time.Duration {
	return g.lifetime
}

// AllowLogin counts one login submission from clientIP and returns
// [ErrRateLimited] once the window budget is spent.
func (g *SessionGate) AllowLogin(ctx context.Context, clientIP string) error {
	if g.limiter == nil {
		return nil
	}
	if clientIP == "" {
		clientIP = "unknown"
	}

	res, err := g.limiter.Allow(ctx, clientIP)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !res.Allowed {
		g.obs.inc(MetricLoginRateLimited)
		g.obs.emit(ctx, auditLoginRateLimited, 0, false, ErrRateLimited, nil)
		g.obs.log().WarnContext(ctx, "login rate limited", "client_ip", clientIP, "count", res.Count)
		return ErrRateLimited
	}
	return nil
}

// Authorize checks sess against the sensitivity of class.
func (g *SessionGate) Authorize(sess *session.Session, class RouteClass) error {
	var need session.Stage
	switch class {
	case RoutePublic, RouteLogin:
		return nil
	case RoutePartial:
		need = session.StagePasswordVerified
	case RouteProtected:
		need = session.StageFullyAuthenticated
	default:
		return ErrUnauthorized
	}

	if sess == nil || sess.Expired(g.now()) || !sess.AtLeast(need) {
		g.obs.inc(MetricSessionDenied)
		return ErrUnauthorized
	}
	return nil
}

// Resolve loads the session named by a client token. Missing, expired and
// tampered tokens are [ErrUnauthorized].
func (g *SessionGate) Resolve(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	sess, err := g.store.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// Establish replaces previous with a new session for the user at stage and
// returns it with its signed token. The session id always changes. Nothing
// is stored before the password step, so stage is at least
// StagePasswordVerified.
func (g *SessionGate) Establish(ctx context.Context, previous *session.Session, userID int64, email string, stage session.Stage) (*session.Session, string, error) {
	if previous != nil {
		if err := g.store.Delete(ctx, previous.ID); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	sess := session.New(g.newID(), g.now(), g.lifetime)
	if err := sess.MarkPasswordVerified(userID, email); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if stage == session.StageFullyAuthenticated {
		if err := sess.MarkFullyAuthenticated(); err != nil {
			return nil, "", err
		}
	}

	if err := g.store.Save(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	token, err := g.tokens.Issue(sess.ID, time.Unix(sess.ExpiresAt, 0))
	if err != nil {
		return nil, "", err
	}

	g.obs.inc(MetricSessionCreated)
	return sess, token, nil
}

// Promote moves a password-verified session to fully authenticated. The
// expiry does not move.
func (g *SessionGate) Promote(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return ErrUnauthorized
	}
	if err := sess.MarkFullyAuthenticated(); err != nil {
		return ErrUnauthorized
	}
	if err := g.store.Save(ctx, sess); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	g.obs.inc(MetricSessionPromoted)
	return nil
}

// Teardown destroys sess. It succeeds for nil or already-deleted sessions.
func (g *SessionGate) Teardown(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	if err := g.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	g.obs.inc(MetricLogout)
	g.obs.emit(ctx, auditLogout, sess.UserID, true, nil, nil)
	return nil
}

// RevokeUser destroys every session belonging to userID.
func (g *SessionGate) RevokeUser(ctx context.Context, userID int64) error {
	if err := g.store.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
