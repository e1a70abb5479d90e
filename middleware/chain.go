package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/mfauth"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws run in the order given: the first one sees the
// request first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// ErrorHandler writes the response for a request rejected by a middleware.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, mfauth.ErrRateLimited):
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	case errors.Is(err, mfauth.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func orDefault(h ErrorHandler) ErrorHandler {
	if h == nil {
		return defaultErrorHandler
	}
	return h
}
