// Package mfauth is a password and TOTP authentication core for multi-user
// web applications.
//
// It verifies credentials, runs the login state machine (password, then an
// optional one-time code) and keeps server-side sessions whose stage gates
// access to route groups.
//
// # Architecture boundaries
//
// mfauth is the public surface. It exposes [Engine], [Builder], [Config],
// the services ([CredentialService], [MFAService], [AuthenticationService],
// [SessionGate]) and the store contracts ([CredentialStore], [MFAStore],
// [UserLinker], [SessionStore]). Rate limiting, audit dispatch and session
// encoding live under internal/ or in their own packages.
//
// # Sessions
//
// A session has a fixed absolute lifetime and is never extended. It moves
// from unauthenticated to password-verified to fully authenticated through
// explicit transitions, and its id changes every time a password is
// accepted. Clients only hold a signed token naming the session.
//
// # Errors
//
// Every failure wraps one of the sentinels in errors.go. Branch with
// [errors.Is]; the httpapi package maps them to status codes.
package mfauth
