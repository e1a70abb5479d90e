package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/session"
	"github.com/MrEthical07/mfauth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *mfauth.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := mfauth.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.RateLimit.MaxAttempts = 2
	cfg.Audit.Enabled = false

	st := memory.New()
	engine, err := mfauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(st.Credentials()).
		WithMFAStore(st.MFA()).
		WithUserLinker(st).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler, mark("rate"), nil, mark("session"), mark("sensitivity"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"rate", "session", "sensitivity"}, order)
}

func TestGetIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, "10.1.2.3", GetIP(r, false), "headers are ignored without a trusted proxy")
	assert.Equal(t, "203.0.113.5", GetIP(r, true))

	r.Header.Set("X-Forwarded-For", "garbage")
	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", GetIP(r, true))

	r.Header.Set("CF-Connecting-IP", "2001:db8::1")
	assert.Equal(t, "2001:db8::1", GetIP(r, true))
}

func TestRateLimitRejectsBeforeHandler(t *testing.T) {
	engine := newEngine(t)
	calls := 0
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}), ClientIP(false), RateLimit(engine.Gate(), nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/auth/authenticate", nil)
		r.RemoteAddr = "192.0.2.50:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 2, calls)
}

func TestSessionAndSensitivity(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()
	gate := engine.Gate()
	cookie := engine.Config().Session.CookieName

	_, partialTok, err := gate.Establish(ctx, nil, 1, "a@x.com", session.StagePasswordVerified)
	require.NoError(t, err)
	_, fullTok, err := gate.Establish(ctx, nil, 2, "b@x.com", session.StageFullyAuthenticated)
	require.NoError(t, err)

	protected := Chain(okHandler, LoadSession(gate, cookie, nil), Sensitivity(gate, mfauth.RouteProtected, nil))
	partial := Chain(okHandler, LoadSession(gate, cookie, nil), Sensitivity(gate, mfauth.RoutePartial, nil))

	tests := []struct {
		name   string
		h      http.Handler
		cookie string
		bearer string
		want   int
	}{
		{"protected without session", protected, "", "", http.StatusUnauthorized},
		{"protected with partial", protected, partialTok, "", http.StatusUnauthorized},
		{"protected with full", protected, fullTok, "", http.StatusNoContent},
		{"protected with bearer", protected, "", fullTok, http.StatusNoContent},
		{"protected with tampered cookie", protected, fullTok + "x", "", http.StatusUnauthorized},
		{"partial with partial", partial, partialTok, "", http.StatusNoContent},
		{"partial without session", partial, "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: cookie, Value: tt.cookie})
			}
			if tt.bearer != "" {
				r.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			tt.h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLoadSessionExposesSession(t *testing.T) {
	engine := newEngine(t)
	gate := engine.Gate()
	cookie := engine.Config().Session.CookieName

	sess, tok, err := gate.Establish(context.Background(), nil, 9, "c@x.com", session.StageFullyAuthenticated)
	require.NoError(t, err)

	var seen *session.Session
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
	}), LoadSession(gate, cookie, nil))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookie, Value: tok})
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.NotNil(t, seen)
	assert.Equal(t, sess.ID, seen.ID)
	assert.Equal(t, int64(9), seen.UserID)
}
