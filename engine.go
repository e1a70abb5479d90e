package mfauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth/internal/limiters"
	"github.com/MrEthical07/mfauth/session"
)

// Engine owns one instance of every service and the session gate. Build it
// with [New]; it is safe for concurrent use.
type Engine struct {
	config       Config
	credentials  *CredentialService
	mfa          *MFAService
	auth         *AuthenticationService
	gate         *SessionGate
	sessions     *session.Store
	registration *limiters.RegistrationLimiter
	localLimit   bool
	obs          instrumentation
}

// Registration is the result of [Engine.Register].
type Registration struct {
	UserID int64
	// MFA is set when the caller asked for a second factor at sign-up.
	MFA *EnrollmentQR
}

func (e *Engine) Config() Config { return cloneConfig(e.config) }
func (e *Engine) Credentials() *CredentialService { return e.credentials }
func (e *Engine) MFA() *MFAService { return e.mfa }
func (e *Engine) Authentication() *AuthenticationService { return e.auth }
func (e *Engine) Gate() *SessionGate { return e.gate }
func (e *Engine) Metrics() *Metrics { return e.obs.metrics }

// Register creates credentials for email and returns the owning user. When
// enableMFA is set the user is enrolled immediately and the QR is returned.
// If that enrollment fails the account still exists: the registration is
// returned alongside an error wrapping [ErrEnrollmentIncomplete].
func (e *Engine) Register(ctx context.Context, email, plaintext string, enableMFA bool) (*Registration, error) {
	email = strings.TrimSpace(email)
	if email == "" || plaintext == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if err := e.registration.Enforce(ctx, email, ClientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrRegistrationRateLimited) {
			e.obs.inc(MetricRegistrationRateLimited)
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := e.credentials.CreateCredentials(ctx, email, plaintext); err != nil {
		return nil, err
	}
	userID, err := e.credentials.UserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	out := &Registration{UserID: userID}
	if enableMFA {
		qr, err := e.mfa.Activate(ctx, userID, email)
		if err != nil {
			e.obs.log().WarnContext(ctx, "mfa activation after registration failed", "user_id", userID, "error", err)
			return out, fmt.Errorf("%w: %w", ErrEnrollmentIncomplete, err)
		}
		out.MFA = qr
	}
	return out, nil
}

// Login delegates to [AuthenticationService.Login].
func (e *Engine) Login(ctx context.Context, req LoginRequest, current *session.Session) (*LoginResult, error) {
	return e.auth.Login(ctx, req, current)
}

// VerifyOTP delegates to [AuthenticationService.VerifyOTP].
func (e *Engine) VerifyOTP(ctx context.Context, sess *session.Session, code string) (*session.Session, error) {
	return e.auth.VerifyOTP(ctx, sess, code)
}

// ShowQR returns the provisioning QR for the session user. A
// password-verified session of an enrolled user may not see the secret;
// that would let a password alone replace the second factor.
func (e *Engine) ShowQR(ctx context.Context, sess *session.Session) (*EnrollmentQR, error) {
	if err := e.requireEnrollmentAccess(ctx, sess); err != nil {
		return nil, err
	}
	return e.mfa.BuildEnrollmentQR(ctx, sess.Email, sess.UserID)
}

// ActivateMFA enrolls the session user and returns the bound QR.
func (e *Engine) ActivateMFA(ctx context.Context, sess *session.Session) (*EnrollmentQR, error) {
	if err := e.requireEnrollmentAccess(ctx, sess); err != nil {
		return nil, err
	}
	return e.mfa.Activate(ctx, sess.UserID, sess.Email)
}

func (e *Engine) requireEnrollmentAccess(ctx context.Context, sess *session.Session) error {
	if err := e.gate.Authorize(sess, RoutePartial); err != nil {
		return err
	}
	if sess.Stage == session.StageFullyAuthenticated {
		return nil
	}

	lookup, err := e.mfa.lookupByUserID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if lookup.Enrolled() {
		return fmt.Errorf("%w: complete the second factor first", ErrForbidden)
	}
	return nil
}

// RotateMFA replaces the session user's secret and returns its QR.
func (e *Engine) RotateMFA(ctx context.Context, sess *session.Session) (*EnrollmentQR, error) {
	if err := e.gate.Authorize(sess, RouteProtected); err != nil {
		return nil, err
	}
	secret, err := e.mfa.RotateSecret(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return e.mfa.render(secret, sess.Email)
}

// DeactivateMFA removes the session user's second factor.
func (e *Engine) DeactivateMFA(ctx context.Context, sess *session.Session) error {
	if err := e.gate.Authorize(sess, RouteProtected); err != nil {
		return err
	}
	return e.mfa.Deactivate(ctx, sess.UserID)
}

// ChangePassword sets a new password for the session user.
func (e *Engine) ChangePassword(ctx context.Context, sess *session.Session, newPassword, confirmPassword string) error {
	if err := e.gate.Authorize(sess, RouteProtected); err != nil {
		return err
	}
	return e.credentials.ChangePassword(ctx, sess.UserID, newPassword, confirmPassword)
}

// ResetPassword destroys every session of the session user, including
// sess, then replaces the password with a generated one. The plaintext is
// returned once.
//
// Sessions go first: if they cannot be revoked the old password stays in
// place. Once the new hash is stored the plaintext is always returned.
func (e *Engine) ResetPassword(ctx context.Context, sess *session.Session) (string, error) {
	if err := e.gate.Authorize(sess, RouteProtected); err != nil {
		return "", err
	}
	if err := e.gate.RevokeUser(ctx, sess.UserID); err != nil {
		return "", err
	}
	plaintext, err := e.credentials.ResetPassword(ctx, sess.Email)
	if err != nil {
		return "", err
	}

	// A login with the old password may have landed between the two steps.
	if err := e.gate.RevokeUser(ctx, sess.UserID); err != nil {
		e.obs.log().WarnContext(ctx, "session revocation after reset failed",
			"user_id", sess.UserID, "error", err)
	}
	return plaintext, nil
}

// Logout destroys sess. It never fails for a missing session.
func (e *Engine) Logout(ctx context.Context, sess *session.Session) error {
	return e.gate.Teardown(ctx, sess)
}

// Ping checks the session backend and returns its round trip time.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	return e.sessions.Ping(ctx)
}

// Close flushes pending audit events, waiting at most Audit.FlushTimeout.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.obs.audit != nil {
		e.obs.audit.Close()
	}
}

// AuditDropped reports audit events that never reached the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.obs.audit == nil {
		return 0
	}
	return e.obs.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.obs.metrics.Snapshot()
}
