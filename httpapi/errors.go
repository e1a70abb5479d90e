package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/mfauth"
)

const (
	msgAuthFailed   = "Authentication failed. Please check creds"
	msgInvalidCode  = "Invalid OTP code"
	msgUnauthorized = "Unauthorized"
	msgRateLimited  = "Too many attempts. Try again later"
	msgInternal     = "Internal server error"

	msgEnrollmentIncomplete = "Account created, but MFA could not be enabled. Sign in and enable it from the dashboard"
)

// StatusFor maps an mfauth error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, mfauth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, mfauth.ErrAuthentication),
		errors.Is(err, mfauth.ErrUnauthorized),
		errors.Is(err, mfauth.ErrInvalidCode):
		return http.StatusUnauthorized
	case errors.Is(err, mfauth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, mfauth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mfauth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, mfauth.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Store failures and
// unknown errors never leak their detail.
func messageFor(err error) string {
	switch {
	case errors.Is(err, mfauth.ErrAuthentication):
		return msgAuthFailed
	case errors.Is(err, mfauth.ErrInvalidCode):
		return msgInvalidCode
	case errors.Is(err, mfauth.ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(err, mfauth.ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, mfauth.ErrNotFound):
		return "Not found"
	case errors.Is(err, mfauth.ErrConflict):
		return "Email already registered"
	case errors.Is(err, mfauth.ErrValidation):
		return detail(err, mfauth.ErrValidation)
	case errors.Is(err, mfauth.ErrForbidden):
		return detail(err, mfauth.ErrForbidden)
	default:
		return msgInternal
	}
}

// detail strips the sentinel prefix from a wrapped error.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
