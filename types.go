package mfauth

import (
	"time"

	"github.com/MrEthical07/mfauth/session"
)

// Credential is the stored email and password hash of one user.
type Credential struct {
	ID           int64
	UserID       int64
	Email        string
	PasswordHash string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// CredentialUpdate lists the mutable credential fields. Nil fields are left
// untouched.
type CredentialUpdate struct {
	PasswordHash *string
	LastLogin    *time.Time
}

// MFARecord holds the TOTP secret bound to a user. UserID is zero until the
// record is linked.
type MFARecord struct {
	ID        int64
	UserID    int64
	Secret    string
	CreatedAt time.Time
}

// MFALookup is the result of checking whether a user has a second factor.
// Absence is a normal outcome, not an error.
type MFALookup struct {
	record *MFARecord
}

// Found wraps an existing enrollment.
func Found(record *MFARecord) MFALookup {
	return MFALookup{record: record}
}

// NotEnrolled is the lookup result for a user without a second factor.
func NotEnrolled() MFALookup {
	return MFALookup{}
}

// Enrolled reports whether a record was found.
func (l MFALookup) Enrolled() bool {
	return l.record != nil
}

// Record returns the enrollment and whether there was one.
func (l MFALookup) Record() (*MFARecord, bool) {
	return l.record, l.record != nil
}

// EnrollmentQR is what a client needs to add the account to an
// authenticator app.
type EnrollmentQR struct {
	QRCodeBase64 string `json:"qr_code"`
	Secret       string `json:"secret"`
	URI          string `json:"uri"`
}

// LoginRequest is one submission of the login form.
type LoginRequest struct {
	Email    string
	Password string
	// Honeypot is a hidden field. Humans leave it empty.
	Honeypot string
}

// LoginOutcome is where a login attempt ended.
type LoginOutcome uint8

const (
	// OutcomeIgnored is a silently dropped submission. No session changes.
	OutcomeIgnored LoginOutcome = iota
	// OutcomeComplete means the session is fully authenticated.
	OutcomeComplete
	// OutcomeAwaitingSecondFactor means a one-time code is still required.
	OutcomeAwaitingSecondFactor
)

func (o LoginOutcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeComplete:
		return "complete"
	case OutcomeAwaitingSecondFactor:
		return "awaiting_second_factor"
	default:
		return "unknown"
	}
}

// LoginResult is returned by a successful or ignored login.
type LoginResult struct {
	Outcome  LoginOutcome
	Redirect string
	Session  *session.Session
	Token    string
}

// RouteClass is the sensitivity of a route group.
type RouteClass uint8

const (
	// RoutePublic needs no session.
	RoutePublic RouteClass = iota
	// RouteLogin is the login submission endpoint. It is rate limited.
	RouteLogin
	// RoutePartial needs at least a password-verified session.
	RoutePartial
	// RouteProtected needs a fully authenticated session.
	RouteProtected
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteLogin:
		return "login"
	case RoutePartial:
		return "partial"
	case RouteProtected:
		return "protected"
	default:
		return "unknown"
	}
}

const (
	// RedirectSecondFactor is where a client goes to enter its code.
	RedirectSecondFactor = "/users/mfa_input"
	// RedirectDashboard is the landing page after full authentication.
	RedirectDashboard = "/dashboard"
	// RedirectLogin is the login page.
	RedirectLogin = "/login"
)
