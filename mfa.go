package mfauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/mfauth/totp"
)

// MFAService manages the TOTP lifecycle of a user: enrollment, code checks,
// rotation and removal.
type MFAService struct {
	store       MFAStore
	linker      UserLinker
	credentials CredentialStore
	engine      *totp.Engine
	qrSize      int
	now         func() time.Time
	obs         instrumentation
}

// NewMFAService wires the service. linker may be nil, in which case
// [MFAService.Activate] is unavailable.
func NewMFAService(store MFAStore, linker UserLinker, credentials CredentialStore, engine *totp.Engine, logger *slog.Logger) (*MFAService, error) {
	if store == nil {
		return nil, errors.New("mfa store required")
	}
	if credentials == nil {
		return nil, errors.New("credential store required")
	}
	if engine == nil {
		return nil, errors.New("totp engine required")
	}
	return &MFAService{
		store:       store,
		linker:      linker,
		credentials: credentials,
		engine:      engine,
		qrSize:      totp.DefaultQRSize,
		now:         time.Now,
		obs:         instrumentation{logger: logger},
	}, nil
}

// CreateEntry stores a record with a fresh secret and returns its id. The
// record is not bound to any user.
func (s *MFAService) CreateEntry(ctx context.Context) (int64, error) {
	secret, err := s.engine.GenerateSecret()
	if err != nil {
		return 0, err
	}
	id, err := s.store.Insert(ctx, secret)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: mfa insert returned no id", ErrPersistence)
	}
	return id, nil
}

// DetailsByUserID returns the user's record. A zero id is [ErrValidation];
// a user without one is [ErrNotFound].
func (s *MFAService) DetailsByUserID(ctx context.Context, userID int64) (*MFARecord, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.store.FindByUserID(ctx, userID)
}

// LookupByEmail reports whether the account behind email has a second
// factor. Only store failures are errors.
func (s *MFAService) LookupByEmail(ctx context.Context, email string) (MFALookup, error) {
	cred, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotEnrolled(), nil
		}
		return NotEnrolled(), err
	}
	return s.lookupByUserID(ctx, cred.UserID)
}

func (s *MFAService) lookupByUserID(ctx context.Context, userID int64) (MFALookup, error) {
	if userID == 0 {
		return NotEnrolled(), nil
	}
	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotEnrolled(), nil
		}
		return NotEnrolled(), err
	}
	return Found(record), nil
}

// BuildEnrollmentQR renders the provisioning QR for accountLabel. When
// userID is non-zero and already enrolled the existing secret is reused, so
// showing the code again does not break a working authenticator.
func (s *MFAService) BuildEnrollmentQR(ctx context.Context, accountLabel string, userID int64) (*EnrollmentQR, error) {
	if accountLabel == "" {
		return nil, fmt.Errorf("%w: account label is required", ErrValidation)
	}

	var secret string
	if userID != 0 {
		lookup, err := s.lookupByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if record, ok := lookup.Record(); ok {
			secret = record.Secret
		}
	}
	if secret == "" {
		fresh, err := s.engine.GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = fresh
	}

	return s.render(secret, accountLabel)
}

func (s *MFAService) render(secret, accountLabel string) (*EnrollmentQR, error) {
	uri, err := s.engine.ProvisioningURI(secret, accountLabel, s.engine.Issuer())
	if err != nil {
		return nil, err
	}
	image, err := totp.QRCodeBase64(uri, s.qrSize)
	if err != nil {
		return nil, err
	}
	return &EnrollmentQR{QRCodeBase64: image, Secret: secret, URI: uri}, nil
}

// VerifyCode checks code against secret at the current time.
func (s *MFAService) VerifyCode(secret, code string) bool {
	return s.engine.Verify(secret, code, s.now())
}

// Activate enrolls userID if needed and returns the QR for the bound
// secret. Calling it again for an enrolled user returns the existing one.
func (s *MFAService) Activate(ctx context.Context, userID int64, accountLabel string) (*EnrollmentQR, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if s.linker == nil {
		return nil, errors.New("mfa activation requires a user linker")
	}

	lookup, err := s.lookupByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record, ok := lookup.Record(); ok {
		return s.render(record.Secret, accountLabel)
	}

	id, err := s.CreateEntry(ctx)
	if err != nil {
		return nil, err
	}
	linked, err := s.linker.LinkMFA(ctx, userID, id)
	if err != nil {
		_ = s.store.Delete(ctx, id)
		return nil, err
	}
	if !linked {
		// Lost a race with a concurrent activation; use the winner.
		_ = s.store.Delete(ctx, id)
	}

	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if linked {
		s.obs.inc(MetricMFAActivated)
		s.obs.emit(ctx, auditMFAActivated, userID, true, nil, nil)
		s.obs.log().InfoContext(ctx, "mfa activated", "user_id", userID)
	}
	return s.render(record.Secret, accountLabel)
}

// RotateSecret replaces the user's secret and returns the new one. A user
// without a record is [ErrValidation].
func (s *MFAService) RotateSecret(ctx context.Context, userID int64) (string, error) {
	if _, err := s.requireRecord(ctx, userID); err != nil {
		return "", err
	}

	secret, err := s.engine.GenerateSecret()
	if err != nil {
		return "", err
	}
	record, err := s.store.UpdateSecret(ctx, userID, secret)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("%w: mfa secret update returned no row", ErrPersistence)
	}

	s.obs.inc(MetricMFARotated)
	s.obs.emit(ctx, auditMFARotated, userID, true, nil, nil)
	return secret, nil
}

// Deactivate removes the user's record. A user without one is
// [ErrValidation].
func (s *MFAService) Deactivate(ctx context.Context, userID int64) error {
	record, err := s.requireRecord(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, record.ID); err != nil {
		return err
	}

	s.obs.inc(MetricMFADeactivated)
	s.obs.emit(ctx, auditMFADeactivated, userID, true, nil, nil)
	s.obs.log().InfoContext(ctx, "mfa deactivated", "user_id", userID)
	return nil
}

func (s *MFAService) requireRecord(ctx context.Context, userID int64) (*MFARecord, error) {
	record, err := s.DetailsByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: mfa is not enabled", ErrValidation)
		}
		return nil, err
	}
	return record, nil
}
