// Package security derives a posture report from engine settings and flags
// the ones that weaken it. It performs no I/O.
package security
