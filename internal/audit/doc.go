// Package audit delivers security events to sinks without blocking the
// request path.
//
// [Dispatcher] buffers events and forwards them from a single goroutine.
// Sinks include a channel, a JSON-lines writer and a structured logger.
// Which events to emit is decided by the caller.
package audit
