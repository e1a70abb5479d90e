// Package session provides the [Session] model, its compact binary encoding
// and a Redis-backed [Store].
//
// A session moves through three stages: unauthenticated, password verified
// and fully authenticated. Expiry is absolute; the store never slides it.
//
// This package does not issue tokens or decide which routes a stage may
// reach. Those belong to the root package.
package session
