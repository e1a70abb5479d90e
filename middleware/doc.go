// Package middleware adapts the mfauth session gate to net/http.
//
// Requests pass a fixed chain: client address extraction, the login rate
// limit, session loading, then the route sensitivity check, then the
// handler. Every step is a plain func(http.Handler) http.Handler and can be
// tested with httptest alone.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into gate calls. It does NOT decide
// who may log in or which stage a route needs beyond what the caller passes;
// all decisions are delegated to [mfauth.SessionGate].
package middleware
