// Package jwt signs and verifies the session tokens handed to browsers. A
// token only carries the session ID and its expiry.
package jwt
