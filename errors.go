package mfauth

import "errors"

var (
	// ErrValidation marks malformed or missing input. It is returned before
	// any store is touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication is the generic credential mismatch. It never says
	// whether the email exists.
	ErrAuthentication = errors.New("authentication failed")
	// ErrInvalidCode is a rejected one-time code.
	ErrInvalidCode = errors.New("invalid otp code")
	// ErrForbidden marks an action the current enrollment state does not allow.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized marks a missing or insufficient session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPersistence is returned when a store did not produce an expected
	// id or row.
	ErrPersistence = errors.New("persistence failed")
	// ErrRateLimited marks an exhausted attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrConflict is returned when registering an email that already exists.
	ErrConflict = errors.New("already exists")
	// ErrEnrollmentIncomplete is returned by Register when the account was
	// created but the second factor could not be activated. The returned
	// registration still carries the new user id.
	ErrEnrollmentIncomplete = errors.New("account created without MFA")
	// ErrUnavailable wraps store connectivity failures.
	ErrUnavailable = errors.New("backend unavailable")
)
