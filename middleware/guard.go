package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/session"
)

type sessionContextKey struct{}

// SessionFromContext returns the session loaded by [LoadSession].
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// RateLimit counts the request against the login budget of its client
// address. Rejected requests never reach next.
func RateLimit(gate *mfauth.SessionGate, onError ErrorHandler) Middleware {
	onError = orDefault(onError)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := mfauth.ClientIPFromContext(r.Context())
			if ip == "" {
				ip = GetIP(r, false)
			}
			if err := gate.AllowLogin(r.Context(), ip); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoadSession resolves the session named by the cookie, or by a bearer
// token when no cookie is present. A missing or invalid token is not an
// error here; the request simply carries no session.
func LoadSession(gate *mfauth.SessionGate, cookieName string, onError ErrorHandler) Middleware {
	onError = orDefault(onError)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := gate.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, mfauth.ErrUnauthorized) {
					next.ServeHTTP(w, r)
					return
				}
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// Sensitivity rejects requests whose session does not reach the stage
// class requires.
func Sensitivity(gate *mfauth.SessionGate, class mfauth.RouteClass, onError ErrorHandler) Middleware {
	onError = orDefault(onError)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := SessionFromContext(r.Context())
			if err := gate.Authorize(sess, class); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
