package mfauth

import (
	"context"

	"github.com/MrEthical07/mfauth/session"
)

// CredentialStore persists credentials. Lookups return [ErrNotFound] on a
// miss and skip soft-deleted rows.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id int64) (*Credential, error)
	FindEmailByUserID(ctx context.Context, userID int64) (string, error)
	// Insert stores a new credential and its owning user. It returns the
	// credential id, or [ErrConflict] when the email is taken.
	Insert(ctx context.Context, email, passwordHash string) (int64, error)
	Update(ctx context.Context, id int64, upd CredentialUpdate) (*Credential, error)
	// Delete soft-deletes the credential.
	Delete(ctx context.Context, id int64) (*Credential, error)
}

// MFAStore persists TOTP records.
type MFAStore interface {
	FindByUserID(ctx context.Context, userID int64) (*MFARecord, error)
	FindByID(ctx context.Context, id int64) (*MFARecord, error)
	// Insert stores an unlinked record and returns its id.
	Insert(ctx context.Context, secret string) (int64, error)
	UpdateSecret(ctx context.Context, userID int64, secret string) (*MFARecord, error)
	// Delete removes the record and clears the user's reference to it.
	Delete(ctx context.Context, id int64) error
}

// UserLinker binds an MFA record to its user.
type UserLinker interface {
	// LinkMFA sets the user's MFA reference if it is empty. It reports
	// false when the user already had one.
	LinkMFA(ctx context.Context, userID, mfaID int64) (bool, error)
}

// SessionStore persists server-side sessions. [session.Store] is the
// Redis implementation.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

var _ SessionStore = (*session.Store)(nil)
