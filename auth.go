package mfauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth/internal/limiters"
	"github.com/MrEthical07/mfauth/session"
)

// AuthenticationService runs the login state machine: password check, an
// optional one-time code, then a fully authenticated session.
type AuthenticationService struct {
	credentials *CredentialService
	mfa         *MFAService
	gate        *SessionGate
	otpLimiter  *limiters.TOTPLimiter
	obs         instrumentation
}

// NewAuthenticationService wires the login flow. The one-time code limiter
// is attached by the [Builder].
func NewAuthenticationService(credentials *CredentialService, mfa *MFAService, gate *SessionGate, logger *slog.Logger) (*AuthenticationService, error) {
	if credentials == nil || mfa == nil || gate == nil {
		return nil, errors.New("credential service, mfa service and session gate are required")
	}
	return &AuthenticationService{
		credentials: credentials,
		mfa:         mfa,
		gate:        gate,
		obs:         instrumentation{logger: logger},
	}, nil
}

// Login checks the submitted credentials and establishes a session that
// replaces current. Users with a second factor get a password-verified
// session and are sent to the code form. A filled honeypot yields
// [OutcomeIgnored] without reading any store.
func (s *AuthenticationService) Login(ctx context.Context, req LoginRequest, current *session.Session) (*LoginResult, error) {
	start := time.Now()
	defer func() {
		s.obs.metrics.Observe(MetricLoginLatency, time.Since(start))
	}()

	if req.Honeypot != "" {
		s.credentials.verifyDummy()
		s.obs.inc(MetricLoginHoneypot)
		s.obs.emit(ctx, auditLoginHoneypot, 0, false, nil, nil)
		s.obs.log().InfoContext(ctx, "login honeypot triggered", "client_ip", ClientIPFromContext(ctx))
		return &LoginResult{Outcome: OutcomeIgnored}, nil
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	cred, err := s.credentials.Authenticate(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			s.obs.inc(MetricLoginFailure)
			s.obs.emit(ctx, auditLoginFailure, 0, false, err, nil)
		}
		return nil, err
	}

	lookup, err := s.mfa.LookupByEmail(ctx, cred.Email)
	if err != nil {
		return nil, err
	}

	stage := session.StageFullyAuthenticated
	redirect := RedirectDashboard
	outcome := OutcomeComplete
	if lookup.Enrolled() {
		stage = session.StagePasswordVerified
		redirect = RedirectSecondFactor
		outcome = OutcomeAwaitingSecondFactor
	}

	sess, token, err := s.gate.Establish(ctx, current, cred.UserID, cred.Email, stage)
	if err != nil {
		return nil, err
	}

	s.obs.inc(MetricLoginSuccess)
	if outcome == OutcomeAwaitingSecondFactor {
		s.obs.inc(MetricMFARequired)
		s.obs.emit(ctx, auditLoginMFARequired, cred.UserID, true, nil, nil)
	} else {
		s.obs.emit(ctx, auditLoginSuccess, cred.UserID, true, nil, nil)
	}
	s.obs.log().InfoContext(ctx, "login accepted", "user_id", cred.UserID, "session_id", sess.ID, "outcome", outcome.String())

	return &LoginResult{Outcome: outcome, Redirect: redirect, Session: sess, Token: token}, nil
}

// VerifyOTP checks code for the user behind sess and promotes the session
// to fully authenticated. A rejected code leaves the session unchanged.
func (s *AuthenticationService) VerifyOTP(ctx context.Context, sess *session.Session, code string) (*session.Session, error) {
	if sess == nil || !sess.AtLeast(session.StagePasswordVerified) || sess.UserID == 0 {
		return nil, ErrUnauthorized
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}

	record, err := s.mfa.DetailsByUserID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: MFA not set up for this user", ErrForbidden)
		}
		return nil, err
	}

	// The attempt is spent before the code is compared.
	if err := s.otpLimiter.Reserve(ctx, sess.UserID); err != nil {
		return nil, s.otpLimitError(ctx, sess.UserID, err)
	}

	if !s.mfa.VerifyCode(record.Secret, code) {
		s.obs.inc(MetricOTPFailure)
		s.obs.emit(ctx, auditOTPFailure, sess.UserID, false, ErrInvalidCode, map[string]string{"session_id": sess.ID})
		return nil, ErrInvalidCode
	}

	if err := s.otpLimiter.Reset(ctx, sess.UserID); err != nil {
		s.obs.log().WarnContext(ctx, "otp limiter reset failed", "user_id", sess.UserID, "error", err)
	}
	if sess.Stage == session.StageFullyAuthenticated {
		return sess, nil
	}
	if err := s.gate.Promote(ctx, sess); err != nil {
		return nil, err
	}

	s.obs.inc(MetricOTPSuccess)
	s.obs.emit(ctx, auditOTPSuccess, sess.UserID, true, nil, map[string]string{"session_id": sess.ID})
	s.obs.log().InfoContext(ctx, "second factor accepted", "user_id", sess.UserID, "session_id", sess.ID)
	return sess, nil
}

func (s *AuthenticationService) otpLimitError(ctx context.Context, userID int64, err error) error {
	if errors.Is(err, limiters.ErrTOTPRateLimited) {
		s.obs.inc(MetricOTPRateLimited)
		s.obs.log().WarnContext(ctx, "otp rate limited", "user_id", userID)
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
