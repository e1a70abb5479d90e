package mfauth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/session"
	"github.com/MrEthical07/mfauth/store/memory"
	"github.com/MrEthical07/mfauth/totp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@x.com"
	testPassword = "longpassw0rd"
)

type harness struct {
	engine *mfauth.Engine
	store  *memory.Store
	creds  *countingCredentials
	redis  *miniredis.Miniredis
	codes  *totp.Engine
}

// countingCredentials records how often the credential store is reached.
type countingCredentials struct {
	mfauth.CredentialStore
	calls atomic.Int64
}

func (c *countingCredentials) FindByEmail(ctx context.Context, email string) (*mfauth.Credential, error) {
	c.calls.Add(1)
	return c.CredentialStore.FindByEmail(ctx, email)
}

func (c *countingCredentials) Update(ctx context.Context, id int64, upd mfauth.CredentialUpdate) (*mfauth.Credential, error) {
	c.calls.Add(1)
	return c.CredentialStore.Update(ctx, id, upd)
}

func testConfig() mfauth.Config {
	cfg := mfauth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Session.CookieSecure = false
	cfg.Audit.Enabled = false
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*mfauth.Config)) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	st := memory.New()
	creds := &countingCredentials{CredentialStore: st.Credentials()}
	engine, err := mfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithMFAStore(st.MFA()).
		WithUserLinker(st).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	codes, err := totp.NewEngine(totp.DefaultConfig())
	require.NoError(t, err)

	return &harness{engine: engine, store: st, creds: creds, redis: mr, codes: codes}
}

func (h *harness) register(t *testing.T, email string, withMFA bool) *mfauth.Registration {
	t.Helper()
	reg, err := h.engine.Register(context.Background(), email, testPassword, withMFA)
	require.NoError(t, err)
	return reg
}

func (h *harness) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := h.codes.Code(secret, time.Now())
	require.NoError(t, err)
	return c
}

func wrongCode(right string) string {
	if right == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRegisterThenVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	ok, err := h.engine.Credentials().Verify(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.engine.Credentials().Verify(ctx, testEmail, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, testEmail, false)

	_, err := h.engine.Register(context.Background(), testEmail, testPassword, false)
	assert.ErrorIs(t, err, mfauth.ErrConflict)
}

func TestEmailsMatchExactly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, testEmail, false)

	second, err := h.engine.Register(ctx, "A@x.com", testPassword, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.UserID, second.UserID)

	_, err = h.engine.Register(ctx, " "+testEmail+" ", testPassword, false)
	assert.ErrorIs(t, err, mfauth.ErrConflict)

	_, err = h.engine.Login(ctx, mfauth.LoginRequest{Email: "A@X.COM", Password: testPassword}, nil)
	assert.ErrorIs(t, err, mfauth.ErrAuthentication)
}

// failingMFA rejects every insert.
type failingMFA struct {
	mfauth.MFAStore
}

func (failingMFA) Insert(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("%w: insert refused", mfauth.ErrPersistence)
}

func TestRegisterKeepsAccountWhenMFAActivationFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := memory.New()
	engine, err := mfauth.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(st.Credentials()).
		WithMFAStore(failingMFA{MFAStore: st.MFA()}).
		WithUserLinker(st).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	ctx := context.Background()

	reg, err := engine.Register(ctx, testEmail, testPassword, true)
	assert.ErrorIs(t, err, mfauth.ErrEnrollmentIncomplete)
	assert.ErrorIs(t, err, mfauth.ErrPersistence)
	require.NotNil(t, reg)
	assert.NotZero(t, reg.UserID)
	assert.Nil(t, reg.MFA)

	res, err := engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, mfauth.OutcomeComplete, res.Outcome)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Register(context.Background(), testEmail, "short", false)
	assert.ErrorIs(t, err, mfauth.ErrValidation)
}

func TestRegisterIsThrottledPerEmail(t *testing.T) {
	h := newHarness(t, func(c *mfauth.Config) { c.Registration.MaxAttempts = 2 })
	ctx := mfauth.WithClientIP(context.Background(), "198.51.100.7")

	for i := 0; i < 2; i++ {
		_, err := h.engine.Register(ctx, testEmail, "short", false)
		require.ErrorIs(t, err, mfauth.ErrValidation)
	}
	_, err := h.engine.Register(ctx, testEmail, testPassword, false)
	assert.ErrorIs(t, err, mfauth.ErrRateLimited)
}

func TestCreateEntryCodeRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.engine.MFA().CreateEntry(ctx)
	require.NoError(t, err)
	rec, err := h.store.MFA().FindByID(ctx, id)
	require.NoError(t, err)

	right := h.code(t, rec.Secret)
	assert.True(t, h.engine.MFA().VerifyCode(rec.Secret, right))
	assert.False(t, h.engine.MFA().VerifyCode(rec.Secret, wrongCode(right)))

	other, err := h.codes.GenerateSecret()
	require.NoError(t, err)
	assert.False(t, h.engine.MFA().VerifyCode(other, right), "a code from another secret must not verify")
}

func TestHoneypotSkipsCredentialStore(t *testing.T) {
	h := newHarness(t)
	h.register(t, testEmail, false)
	h.creds.calls.Store(0)

	res, err := h.engine.Login(context.Background(), mfauth.LoginRequest{
		Email:    testEmail,
		Password: testPassword,
		Honeypot: "http://spam.example",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, mfauth.OutcomeIgnored, res.Outcome)
	assert.Nil(t, res.Session)
	assert.Empty(t, res.Token)
	assert.Zero(t, h.creds.calls.Load())
	assert.Equal(t, uint64(1), h.engine.Metrics().Value(mfauth.MetricLoginHoneypot))
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail}, nil)
	assert.ErrorIs(t, err, mfauth.ErrValidation)
	_, err = h.engine.Login(ctx, mfauth.LoginRequest{Password: testPassword}, nil)
	assert.ErrorIs(t, err, mfauth.ErrValidation)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	_, errUnknown := h.engine.Login(ctx, mfauth.LoginRequest{Email: "nobody@x.com", Password: testPassword}, nil)
	_, errWrong := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: "wrong-password"}, nil)

	require.ErrorIs(t, errUnknown, mfauth.ErrAuthentication)
	require.ErrorIs(t, errWrong, mfauth.ErrAuthentication)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginWithoutMFAIsComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, mfauth.OutcomeComplete, res.Outcome)
	assert.Equal(t, mfauth.RedirectDashboard, res.Redirect)
	assert.Equal(t, session.StageFullyAuthenticated, res.Session.Stage)
	assert.Equal(t, reg.UserID, res.Session.UserID)
	assert.NotEmpty(t, res.Token)

	loaded, err := h.engine.Gate().Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.NoError(t, h.engine.Gate().Authorize(loaded, mfauth.RouteProtected))

	cred, err := h.store.Credentials().FindByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.NotNil(t, cred.LastLogin)
}

func TestLoginWithMFARequiresCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, true)
	require.NotNil(t, reg.MFA)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, mfauth.OutcomeAwaitingSecondFactor, res.Outcome)
	assert.Equal(t, mfauth.RedirectSecondFactor, res.Redirect)

	sess, err := h.engine.Gate().Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, session.StagePasswordVerified, sess.Stage)
	assert.ErrorIs(t, h.engine.Gate().Authorize(sess, mfauth.RouteProtected), mfauth.ErrUnauthorized)
	assert.NoError(t, h.engine.Gate().Authorize(sess, mfauth.RoutePartial))

	right := h.code(t, reg.MFA.Secret)
	_, err = h.engine.VerifyOTP(ctx, sess, wrongCode(right))
	assert.ErrorIs(t, err, mfauth.ErrInvalidCode)

	reloaded, err := h.engine.Gate().Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, session.StagePasswordVerified, reloaded.Stage, "a bad code must not promote")

	promoted, err := h.engine.VerifyOTP(ctx, reloaded, right)
	require.NoError(t, err)
	assert.Equal(t, session.StageFullyAuthenticated, promoted.Stage)
	assert.Equal(t, sess.ExpiresAt, promoted.ExpiresAt, "promotion keeps the absolute expiry")

	final, err := h.engine.Gate().Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.NoError(t, h.engine.Gate().Authorize(final, mfauth.RouteProtected))
}

func TestVerifyOTPPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	_, err := h.engine.VerifyOTP(ctx, nil, "123456")
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)

	partial, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StagePasswordVerified)
	require.NoError(t, err)

	_, err = h.engine.VerifyOTP(ctx, partial, "")
	assert.ErrorIs(t, err, mfauth.ErrValidation)

	_, err = h.engine.VerifyOTP(ctx, partial, "123456")
	assert.ErrorIs(t, err, mfauth.ErrForbidden)
	assert.Contains(t, err.Error(), "MFA not set up for this user")
}

func TestOTPFailuresAreRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, true)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)

	right := h.code(t, reg.MFA.Secret)
	for i := 0; i < 5; i++ {
		_, err := h.engine.VerifyOTP(ctx, res.Session, wrongCode(right))
		require.ErrorIs(t, err, mfauth.ErrInvalidCode)
	}

	_, err = h.engine.VerifyOTP(ctx, res.Session, right)
	assert.ErrorIs(t, err, mfauth.ErrRateLimited)

	h.redis.FastForward(time.Minute + time.Second)
	_, err = h.engine.VerifyOTP(ctx, res.Session, h.code(t, reg.MFA.Secret))
	assert.NoError(t, err)
}

func TestConcurrentOTPGuessesRespectBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, true)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	bad := wrongCode(h.code(t, reg.MFA.Secret))

	var rejected, limited atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.VerifyOTP(ctx, res.Session, bad)
			switch {
			case errors.Is(err, mfauth.ErrInvalidCode):
				rejected.Add(1)
			case errors.Is(err, mfauth.ErrRateLimited):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), rejected.Load(), "only the configured budget of codes is compared")
	assert.Equal(t, int64(35), limited.Load())
}

func TestVerifyOTPWithoutEnrollmentSpendsNoBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	partial, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StagePasswordVerified)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := h.engine.VerifyOTP(ctx, partial, "123456")
		require.ErrorIs(t, err, mfauth.ErrForbidden)
	}
	assert.False(t, h.redis.Exists(fmt.Sprintf("otp:%d", reg.UserID)))
}

func TestDeactivateRemovesSecondFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, true)

	full, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StageFullyAuthenticated)
	require.NoError(t, err)
	require.NoError(t, h.engine.DeactivateMFA(ctx, full))

	_, err = h.engine.MFA().DetailsByUserID(ctx, reg.UserID)
	assert.ErrorIs(t, err, mfauth.ErrNotFound)

	lookup, err := h.engine.MFA().LookupByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.False(t, lookup.Enrolled())

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, mfauth.OutcomeComplete, res.Outcome)

	err = h.engine.DeactivateMFA(ctx, full)
	assert.ErrorIs(t, err, mfauth.ErrValidation, "deactivating twice is a validation error")
}

func TestRotateRequiresEnrollment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	full, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StageFullyAuthenticated)
	require.NoError(t, err)

	_, err = h.engine.RotateMFA(ctx, full)
	assert.ErrorIs(t, err, mfauth.ErrValidation)

	first, err := h.engine.ActivateMFA(ctx, full)
	require.NoError(t, err)
	again, err := h.engine.ActivateMFA(ctx, full)
	require.NoError(t, err)
	assert.Equal(t, first.Secret, again.Secret, "activation is idempotent")

	rotated, err := h.engine.RotateMFA(ctx, full)
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, rotated.Secret)
	assert.True(t, strings.HasPrefix(rotated.URI, "otpauth://totp/"))

	rec, err := h.engine.MFA().DetailsByUserID(ctx, reg.UserID)
	require.NoError(t, err)
	assert.Equal(t, rotated.Secret, rec.Secret)
}

func TestPartialSessionCannotReadEnrolledSecret(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, true)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)

	_, err = h.engine.ShowQR(ctx, res.Session)
	assert.ErrorIs(t, err, mfauth.ErrForbidden)
	_, err = h.engine.ActivateMFA(ctx, res.Session)
	assert.ErrorIs(t, err, mfauth.ErrForbidden)
}

func TestShowQRForUnenrolledUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	full, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StageFullyAuthenticated)
	require.NoError(t, err)

	qr, err := h.engine.ShowQR(ctx, full)
	require.NoError(t, err)
	assert.NotEmpty(t, qr.QRCodeBase64)
	assert.NotEmpty(t, qr.Secret)

	_, err = h.engine.MFA().DetailsByUserID(ctx, reg.UserID)
	assert.ErrorIs(t, err, mfauth.ErrNotFound, "showing a QR does not enroll")
}

func TestResetPasswordScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Credentials().ResetPassword(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, mfauth.ErrNotFound)

	h.register(t, testEmail, false)
	fresh, err := h.engine.Credentials().ResetPassword(ctx, testEmail)
	require.NoError(t, err)
	assert.Len(t, fresh, 12)

	ok, err := h.engine.Credentials().Verify(ctx, testEmail, fresh)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.engine.Credentials().Verify(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	first, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	second, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)

	plaintext, err := h.engine.ResetPassword(ctx, first.Session)
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)

	for _, tok := range []string{first.Token, second.Token} {
		_, err := h.engine.Gate().Resolve(ctx, tok)
		assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
	}
}

func TestResetPasswordKeepsOldPasswordWhenSessionsSurvive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)

	h.redis.Close()
	plaintext, err := h.engine.ResetPassword(ctx, res.Session)
	assert.ErrorIs(t, err, mfauth.ErrUnavailable)
	assert.Empty(t, plaintext)

	ok, err := h.engine.Credentials().Verify(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.True(t, ok, "the password must not change while sessions are still live")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := h.register(t, testEmail, false)

	full, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StageFullyAuthenticated)
	require.NoError(t, err)

	err = h.engine.ChangePassword(ctx, full, "another-passw0rd", "mismatch-passw0rd")
	assert.ErrorIs(t, err, mfauth.ErrValidation)

	require.NoError(t, h.engine.ChangePassword(ctx, full, "another-passw0rd", "another-passw0rd"))
	ok, err := h.engine.Credentials().Verify(ctx, testEmail, "another-passw0rd")
	require.NoError(t, err)
	assert.True(t, ok)

	partial, _, err := h.engine.Gate().Establish(ctx, nil, reg.UserID, testEmail, session.StagePasswordVerified)
	require.NoError(t, err)
	err = h.engine.ChangePassword(ctx, partial, "third-passw0rd", "third-passw0rd")
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
}

func TestLoginRotatesSessionID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	first, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	second, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, first.Session)
	require.NoError(t, err)

	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	_, err = h.engine.Gate().Resolve(ctx, first.Token)
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
}

func TestSessionStoredOnlyAfterPasswordStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	sessionKeys := func() int {
		n := 0
		for _, k := range h.redis.Keys() {
			if strings.Contains(k, ":s:") {
				n++
			}
		}
		return n
	}

	_, err := h.engine.Gate().Resolve(ctx, "")
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
	_, err = h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: "wrong-password"}, nil)
	assert.ErrorIs(t, err, mfauth.ErrAuthentication)
	assert.Zero(t, sessionKeys(), "anonymous and failed requests store nothing")

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, session.StageFullyAuthenticated, res.Session.Stage)
	assert.Equal(t, 1, sessionKeys())
}

func TestSessionLifetimeIsAbsolute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30*60), res.Session.ExpiresAt-res.Session.CreatedAt)

	h.redis.FastForward(31 * time.Minute)
	_, err = h.engine.Gate().Resolve(ctx, res.Token)
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, testEmail, false)

	res, err := h.engine.Login(ctx, mfauth.LoginRequest{Email: testEmail, Password: testPassword}, nil)
	require.NoError(t, err)

	require.NoError(t, h.engine.Logout(ctx, res.Session))
	require.NoError(t, h.engine.Logout(ctx, res.Session))
	require.NoError(t, h.engine.Logout(ctx, nil))

	_, err = h.engine.Gate().Resolve(ctx, res.Token)
	assert.ErrorIs(t, err, mfauth.ErrUnauthorized)
}

func TestEleventhLoginAttemptIsRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, h.engine.Gate().AllowLogin(ctx, "203.0.113.9"), "attempt %d", i+1)
	}
	assert.ErrorIs(t, h.engine.Gate().AllowLogin(ctx, "203.0.113.9"), mfauth.ErrRateLimited)
	assert.NoError(t, h.engine.Gate().AllowLogin(ctx, "203.0.113.10"), "other clients keep their budget")
	assert.Equal(t, uint64(1), h.engine.Metrics().Value(mfauth.MetricLoginRateLimited))
}

func TestLocalRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.RateLimit.MaxAttempts = 2
	st := memory.New()
	engine, err := mfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(st.Credentials()).
		WithMFAStore(st.MFA()).
		WithLocalRateLimit().
		Build()
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.Gate().AllowLogin(ctx, "ip"))
	require.NoError(t, engine.Gate().AllowLogin(ctx, "ip"))
	assert.ErrorIs(t, engine.Gate().AllowLogin(ctx, "ip"), mfauth.ErrRateLimited)
	assert.Empty(t, mr.Keys(), "local limiter must not touch redis")
	assert.False(t, engine.SecurityReport().LoginRateLimitShared)
}

func TestSecurityReportFlagsTestSettings(t *testing.T) {
	h := newHarness(t)
	report := h.engine.SecurityReport()

	assert.Equal(t, 30*time.Minute, report.SessionLifetime)
	assert.True(t, report.LoginRateLimiting)
	assert.True(t, report.LoginRateLimitShared)
	assert.True(t, report.OTPRateLimiting)
	assert.Contains(t, report.Warnings, "session cookie is sent over plain HTTP")
	assert.Contains(t, report.Warnings, "argon2 memory is below 19 MiB")
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	_, err := mfauth.New().WithConfig(testConfig()).Build()
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Session.SigningKey = []byte("short")
	_, err = mfauth.New().WithConfig(cfg).Build()
	assert.Error(t, err)
}

func TestAuditEventsReachSink(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := mfauth.NewChannelAuditSink(16)
	st := memory.New()
	engine, err := mfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(st.Credentials()).
		WithMFAStore(st.MFA()).
		WithAuditSink(sink).
		Build()
	require.NoError(t, err)

	ctx := mfauth.WithClientIP(context.Background(), "192.0.2.1")
	_, err = engine.Login(ctx, mfauth.LoginRequest{Email: "nobody@x.com", Password: testPassword}, nil)
	require.ErrorIs(t, err, mfauth.ErrAuthentication)
	engine.Close()

	select {
	case ev := <-sink.Events():
		assert.Equal(t, "login_failure", ev.EventType)
		assert.Equal(t, "192.0.2.1", ev.IP)
		assert.False(t, ev.Success)
	case <-time.After(time.Second):
		t.Fatal("expected an audit event")
	}
}
