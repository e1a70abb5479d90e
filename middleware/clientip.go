package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/mfauth"
)

// ClientIP stores the caller's address in the request context for the rate
// limiter and audit events. Proxy headers are only honoured when
// trustProxy is set.
func ClientIP(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := mfauth.WithClientIP(r.Context(), GetIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIP returns the client address of r. With trustProxy it checks
// CF-Connecting-IP, X-Forwarded-For (leftmost entry) and X-Real-IP before
// falling back to RemoteAddr.
func GetIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := validIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := validIP(first); ip != "" {
				return ip
			}
		}
		if ip := validIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func validIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
