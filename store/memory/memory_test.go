package memory

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/mfauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	creds := s.Credentials()

	id, err := creds.Insert(ctx, "A@x.com", "hash-1")
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = creds.Insert(ctx, " A@x.com ", "hash-2")
	assert.ErrorIs(t, err, mfauth.ErrConflict)

	_, err = creds.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, mfauth.ErrNotFound, "lookups are case-sensitive")

	got, err := creds.FindByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "A@x.com", got.Email)
	assert.Equal(t, "hash-1", got.PasswordHash)

	email, err := creds.FindEmailByUserID(ctx, got.UserID)
	require.NoError(t, err)
	assert.Equal(t, "A@x.com", email)

	newHash := "hash-3"
	login := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated, err := creds.Update(ctx, id, mfauth.CredentialUpdate{PasswordHash: &newHash, LastLogin: &login})
	require.NoError(t, err)
	assert.Equal(t, "hash-3", updated.PasswordHash)
	require.NotNil(t, updated.LastLogin)
	assert.True(t, updated.LastLogin.Equal(login))

	deleted, err := creds.Delete(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, deleted.DeletedAt)

	_, err = creds.FindByEmail(ctx, "A@x.com")
	assert.ErrorIs(t, err, mfauth.ErrNotFound)
	_, err = creds.FindByID(ctx, id)
	assert.ErrorIs(t, err, mfauth.ErrNotFound)
	_, err = creds.Update(ctx, id, mfauth.CredentialUpdate{PasswordHash: &newHash})
	assert.ErrorIs(t, err, mfauth.ErrNotFound)

	again, err := creds.Insert(ctx, "A@x.com", "hash-4")
	require.NoError(t, err)
	assert.NotEqual(t, id, again)
}

func TestReturnedCredentialIsACopy(t *testing.T) {
	ctx := context.Background()
	creds := New().Credentials()

	id, err := creds.Insert(ctx, "b@x.com", "hash")
	require.NoError(t, err)

	got, err := creds.FindByID(ctx, id)
	require.NoError(t, err)
	got.PasswordHash = "tampered"

	again, err := creds.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hash", again.PasswordHash)
}

func TestMFALinkAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	creds, mfa := s.Credentials(), s.MFA()

	credID, err := creds.Insert(ctx, "c@x.com", "hash")
	require.NoError(t, err)
	cred, err := creds.FindByID(ctx, credID)
	require.NoError(t, err)

	_, err = mfa.FindByUserID(ctx, cred.UserID)
	assert.ErrorIs(t, err, mfauth.ErrNotFound)

	first, err := mfa.Insert(ctx, "SECRET1")
	require.NoError(t, err)
	second, err := mfa.Insert(ctx, "SECRET2")
	require.NoError(t, err)

	linked, err := s.LinkMFA(ctx, cred.UserID, first)
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = s.LinkMFA(ctx, cred.UserID, second)
	require.NoError(t, err)
	assert.False(t, linked, "a user keeps its first record")

	rec, err := mfa.FindByUserID(ctx, cred.UserID)
	require.NoError(t, err)
	assert.Equal(t, first, rec.ID)
	assert.Equal(t, cred.UserID, rec.UserID)

	rotated, err := mfa.UpdateSecret(ctx, cred.UserID, "SECRET3")
	require.NoError(t, err)
	assert.Equal(t, "SECRET3", rotated.Secret)

	require.NoError(t, mfa.Delete(ctx, first))
	_, err = mfa.FindByUserID(ctx, cred.UserID)
	assert.ErrorIs(t, err, mfauth.ErrNotFound)
	_, err = mfa.UpdateSecret(ctx, cred.UserID, "SECRET4")
	assert.ErrorIs(t, err, mfauth.ErrNotFound)

	require.NoError(t, mfa.Delete(ctx, first), "delete is idempotent")
}

func TestLinkUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.MFA().Insert(ctx, "SECRET")
	require.NoError(t, err)

	_, err = s.LinkMFA(ctx, 99, id)
	assert.ErrorIs(t, err, mfauth.ErrNotFound)
}
