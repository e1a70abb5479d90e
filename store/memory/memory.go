// Package memory holds map-backed implementations of the mfauth store
// contracts. They are meant for tests, examples and single-process tools.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/mfauth"
)

type user struct {
	credentialID int64
	mfaID        int64
}

// Store implements [mfauth.CredentialStore], [mfauth.MFAStore] and
// [mfauth.UserLinker] over one mutex. Returned values are copies.
type Store struct {
	mu sync.RWMutex

	users       map[int64]*user
	credentials map[int64]*mfauth.Credential
	byEmail     map[string]int64
	mfa         map[int64]*mfauth.MFARecord

	nextUser int64
	nextCred int64
	nextMFA  int64

	now func() time.Time
}

var (
	_ mfauth.CredentialStore = CredentialStore{}
	_ mfauth.MFAStore        = MFAStore{}
	_ mfauth.UserLinker      = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[int64]*user),
		credentials: make(map[int64]*mfauth.Credential),
		byEmail:     make(map[string]int64),
		mfa:         make(map[int64]*mfauth.MFARecord),
		now:         time.Now,
	}
}

// Credentials returns the credential half of the store.
func (s *Store) Credentials() CredentialStore { return CredentialStore{s} }

// MFA returns the MFA half of the store.
func (s *Store) MFA() MFAStore { return MFAStore{s} }

// normalize trims surrounding space. Emails compare case-sensitively.
func normalize(email string) string {
	return strings.TrimSpace(email)
}

func copyCredential(c *mfauth.Credential) *mfauth.Credential {
	out := *c
	return &out
}

func copyRecord(r *mfauth.MFARecord) *mfauth.MFARecord {
	out := *r
	return &out
}

// CredentialStore adapts [Store] to [mfauth.CredentialStore]. Both store
// contracts have Insert, FindByID and Delete, so each half gets its own
// method set.
type CredentialStore struct{ s *Store }

// MFAStore adapts [Store] to [mfauth.MFAStore].
type MFAStore struct{ s *Store }

// LinkMFA implements [mfauth.UserLinker].
func (s *Store) LinkMFA(_ context.Context, userID, mfaID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, mfauth.ErrNotFound
	}
	rec, ok := s.mfa[mfaID]
	if !ok {
		return false, mfauth.ErrNotFound
	}
	if u.mfaID != 0 {
		return false, nil
	}
	u.mfaID = mfaID
	rec.UserID = userID
	return true, nil
}

func (c CredentialStore) FindByEmail(_ context.Context, email string) (*mfauth.Credential, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	id, ok := c.s.byEmail[normalize(email)]
	if !ok {
		return nil, mfauth.ErrNotFound
	}
	return c.s.liveCredential(id)
}

func (c CredentialStore) FindByID(_ context.Context, id int64) (*mfauth.Credential, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.liveCredential(id)
}

func (c CredentialStore) FindEmailByUserID(_ context.Context, userID int64) (string, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	u, ok := c.s.users[userID]
	if !ok {
		return "", mfauth.ErrNotFound
	}
	cred, err := c.s.liveCredential(u.credentialID)
	if err != nil {
		return "", err
	}
	return cred.Email, nil
}

func (c CredentialStore) Insert(_ context.Context, email, passwordHash string) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	key := normalize(email)
	if id, ok := c.s.byEmail[key]; ok && c.s.credentials[id].DeletedAt == nil {
		return 0, mfauth.ErrConflict
	}

	c.s.nextUser++
	c.s.nextCred++
	now := c.s.now().UTC()
	cred := &mfauth.Credential{
		ID:           c.s.nextCred,
		UserID:       c.s.nextUser,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.s.credentials[cred.ID] = cred
	c.s.byEmail[key] = cred.ID
	c.s.users[cred.UserID] = &user{credentialID: cred.ID}
	return cred.ID, nil
}

func (c CredentialStore) Update(_ context.Context, id int64, upd mfauth.CredentialUpdate) (*mfauth.Credential, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, err := c.s.liveCredential(id); err != nil {
		return nil, err
	}
	cred := c.s.credentials[id]
	if upd.PasswordHash != nil {
		cred.PasswordHash = *upd.PasswordHash
	}
	if upd.LastLogin != nil {
		t := *upd.LastLogin
		cred.LastLogin = &t
	}
	cred.UpdatedAt = c.s.now().UTC()
	return copyCredential(cred), nil
}

func (c CredentialStore) Delete(_ context.Context, id int64) (*mfauth.Credential, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, err := c.s.liveCredential(id); err != nil {
		return nil, err
	}
	cred := c.s.credentials[id]
	now := c.s.now().UTC()
	cred.DeletedAt = &now
	return copyCredential(cred), nil
}

func (s *Store) liveCredential(id int64) (*mfauth.Credential, error) {
	cred, ok := s.credentials[id]
	if !ok || cred.DeletedAt != nil {
		return nil, mfauth.ErrNotFound
	}
	return copyCredential(cred), nil
}

func (m MFAStore) FindByUserID(_ context.Context, userID int64) (*mfauth.MFARecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	u, ok := m.s.users[userID]
	if !ok || u.mfaID == 0 {
		return nil, mfauth.ErrNotFound
	}
	rec, ok := m.s.mfa[u.mfaID]
	if !ok {
		return nil, mfauth.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m MFAStore) FindByID(_ context.Context, id int64) (*mfauth.MFARecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	rec, ok := m.s.mfa[id]
	if !ok {
		return nil, mfauth.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m MFAStore) Insert(_ context.Context, secret string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.nextMFA++
	m.s.mfa[m.s.nextMFA] = &mfauth.MFARecord{
		ID:        m.s.nextMFA,
		Secret:    secret,
		CreatedAt: m.s.now().UTC(),
	}
	return m.s.nextMFA, nil
}

func (m MFAStore) UpdateSecret(_ context.Context, userID int64, secret string) (*mfauth.MFARecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	u, ok := m.s.users[userID]
	if !ok || u.mfaID == 0 {
		return nil, mfauth.ErrNotFound
	}
	rec := m.s.mfa[u.mfaID]
	rec.Secret = secret
	return copyRecord(rec), nil
}

func (m MFAStore) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	rec, ok := m.s.mfa[id]
	if !ok {
		return nil
	}
	if u, ok := m.s.users[rec.UserID]; ok && u.mfaID == id {
		u.mfaID = 0
	}
	delete(m.s.mfa, id)
	return nil
}
