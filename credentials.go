package mfauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth/password"
)

// dummyPassword is hashed once per service so lookups for unknown emails
// spend the same Argon2 work as real ones.
const dummyPassword = "mfauth-timing-equalizer"

// CredentialService validates, hashes and stores passwords.
type CredentialService struct {
	store           CredentialStore
	hasher          *password.Argon2
	policy          password.Policy
	generatedLength int
	dummyHash       string
	now             func() time.Time
	obs             instrumentation
}

// NewCredentialService returns a service over store. policy.MinLength of
// zero means eight characters.
func NewCredentialService(store CredentialStore, hasher *password.Argon2, policy password.Policy, logger *slog.Logger) (*CredentialService, error) {
	if store == nil {
		return nil, errors.New("credential store required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher required")
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	return &CredentialService{
		store:           store,
		hasher:          hasher,
		policy:          policy,
		generatedLength: password.DefaultGeneratedLength,
		dummyHash:       dummy,
		now:             time.Now,
		obs:             instrumentation{logger: logger},
	}, nil
}

func (s *CredentialService) hash(plaintext string) (string, error) {
	if err := s.policy.Check(plaintext); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	encoded, err := s.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return "", err
	}
	return encoded, nil
}

// CreateCredentials hashes plaintext and stores it under email. It returns
// the new credential id.
func (s *CredentialService) CreateCredentials(ctx context.Context, email, plaintext string) (int64, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, fmt.Errorf("%w: email is required", ErrValidation)
	}

	encoded, err := s.hash(plaintext)
	if err != nil {
		return 0, err
	}

	id, err := s.store.Insert(ctx, email, encoded)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: credential insert returned no id", ErrPersistence)
	}

	s.obs.inc(MetricCredentialsCreated)
	s.obs.emit(ctx, auditCredentialsCreated, 0, true, nil, nil)
	return id, nil
}

// Verify reports whether plaintext matches the password stored for email.
// A missing account returns [ErrNotFound] after the same hashing work as a
// real comparison.
func (s *CredentialService) Verify(ctx context.Context, email, plaintext string) (bool, error) {
	cred, err := s.lookup(ctx, email)
	if err != nil {
		return false, err
	}
	return s.hasher.Verify(plaintext, cred.PasswordHash), nil
}

// Authenticate verifies the password, stamps the last login time and
// upgrades the stored hash when its parameters are stale. Every failure
// other than a store outage is reported as [ErrAuthentication].
func (s *CredentialService) Authenticate(ctx context.Context, email, plaintext string) (*Credential, error) {
	cred, err := s.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthentication) {
			return nil, ErrAuthentication
		}
		return nil, err
	}
	if !s.hasher.Verify(plaintext, cred.PasswordHash) {
		return nil, ErrAuthentication
	}

	now := s.now().UTC()
	upd := CredentialUpdate{LastLogin: &now}
	if stale, err := s.hasher.NeedsUpgrade(cred.PasswordHash); err == nil && stale {
		if rehashed, err := s.hasher.Hash(plaintext); err == nil {
			upd.PasswordHash = &rehashed
		}
	}

	updated, err := s.store.Update(ctx, cred.ID, upd)
	if err != nil {
		s.obs.log().WarnContext(ctx, "last login update failed", "user_id", cred.UserID, "error", err)
		return cred, nil
	}
	return updated, nil
}

func (s *CredentialService) lookup(ctx context.Context, email string) (*Credential, error) {
	if strings.TrimSpace(email) == "" {
		s.hasher.Verify(dummyPassword, s.dummyHash)
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(dummyPassword, s.dummyHash)
		}
		return nil, err
	}
	if cred.PasswordHash == "" {
		s.hasher.Verify(dummyPassword, s.dummyHash)
		return nil, ErrAuthentication
	}
	return cred, nil
}

// ResetPassword replaces the password for email with a random one and
// returns the plaintext. The plaintext is not stored or logged.
func (s *CredentialService) ResetPassword(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}

	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	plaintext, err := password.Generate(s.generatedLength)
	if err != nil {
		return "", err
	}
	encoded, err := s.hash(plaintext)
	if err != nil {
		return "", err
	}

	if _, err := s.store.Update(ctx, cred.ID, CredentialUpdate{PasswordHash: &encoded}); err != nil {
		return "", err
	}

	s.obs.inc(MetricPasswordReset)
	s.obs.emit(ctx, auditPasswordReset, cred.UserID, true, nil, nil)
	return plaintext, nil
}

// ChangePassword sets a new password for userID after checking both
// entries match.
func (s *CredentialService) ChangePassword(ctx context.Context, userID int64, newPassword, confirmPassword string) error {
	if userID == 0 {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	encoded, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	email, err := s.store.FindEmailByUserID(ctx, userID)
	if err != nil {
		return err
	}
	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if _, err := s.store.Update(ctx, cred.ID, CredentialUpdate{PasswordHash: &encoded}); err != nil {
		return err
	}

	s.obs.inc(MetricPasswordChanged)
	s.obs.emit(ctx, auditPasswordChanged, userID, true, nil, nil)
	return nil
}

// EmailByUserID returns the email registered for userID.
func (s *CredentialService) EmailByUserID(ctx context.Context, userID int64) (string, error) {
	if userID == 0 {
		return "", fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.store.FindEmailByUserID(ctx, userID)
}

// UserIDByEmail returns the user owning email.
func (s *CredentialService) UserIDByEmail(ctx context.Context, email string) (int64, error) {
	if strings.TrimSpace(email) == "" {
		return 0, fmt.Errorf("%w: email is required", ErrValidation)
	}
	cred, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	return cred.UserID, nil
}

// verifyDummy burns one Argon2 verification without touching a store.
func (s *CredentialService) verifyDummy() {
	s.hasher.Verify(dummyPassword, s.dummyHash)
}
