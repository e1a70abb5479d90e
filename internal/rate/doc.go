// Package rate implements fixed-window attempt counters.
//
// Each window is keyed by its start time, so the first attempt after the
// boundary starts a fresh count. [Limiter] shares counts through Redis;
// [MemoryLimiter] keeps them in process.
package rate
