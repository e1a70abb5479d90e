package session

import (
	"errors"
	"time"
)

// Stage is how far a session has progressed through authentication.
type Stage uint8

const (
	// StageUnauthenticated is a fresh session with no identity attached.
	StageUnauthenticated Stage = iota
	// StagePasswordVerified means the password matched but a second factor
	// is still outstanding.
	StagePasswordVerified
	// StageFullyAuthenticated grants access to protected routes.
	StageFullyAuthenticated
)

func (s Stage) String() string {
	switch s {
	case StageUnauthenticated:
		return "unauthenticated"
	case StagePasswordVerified:
		return "password-verified"
	case StageFullyAuthenticated:
		return "fully-authenticated"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a stage change skips a step.
var ErrInvalidTransition = errors.New("invalid session stage transition")

// Session is the server-side state referenced by a client token.
//
// Timestamps are unix seconds. ExpiresAt is fixed at creation and never
// extended.
type Session struct {
	ID        string
	UserID    int64
	Email     string
	Stage     Stage
	CreatedAt int64
	ExpiresAt int64
}

// New returns an unauthenticated session that expires lifetime after now.
func New(id string, now time.Time, lifetime time.Duration) *Session {
	return &Session{
		ID:        id,
		Stage:     StageUnauthenticated,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	}
}

// Expired reports whether the absolute lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || now.Unix() >= s.ExpiresAt
}

// Remaining returns the time left before expiry.
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}

// MarkPasswordVerified attaches the identity and moves the session to
// [StagePasswordVerified]. It is valid from any stage.
func (s *Session) MarkPasswordVerified(userID int64, email string) error {
	if userID == 0 || email == "" {
		return ErrInvalidTransition
	}
	s.UserID = userID
	s.Email = email
	s.Stage = StagePasswordVerified
	return nil
}

// MarkFullyAuthenticated promotes a password-verified session.
func (s *Session) MarkFullyAuthenticated() error {
	if s.Stage != StagePasswordVerified && s.Stage != StageFullyAuthenticated {
		return ErrInvalidTransition
	}
	if s.UserID == 0 {
		return ErrInvalidTransition
	}
	s.Stage = StageFullyAuthenticated
	return nil
}

// AtLeast reports whether the session has reached stage.
func (s *Session) AtLeast(stage Stage) bool {
	return s != nil && s.Stage >= stage
}
