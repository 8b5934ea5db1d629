// Package timer derives a section's remaining time from its stored start timestamp.
// Nothing here counts down: every reading is recomputed from the start time, the fixed
// duration and the current clock, so readings never drift and a reconnecting client gets the
// same answer as one that never left.
package timer

import (
	"time"
)

// Clock returns the current time in nanoseconds since the Unix epoch.
type Clock func() int64

// SystemClock is the server's authoritative clock.
func SystemClock() int64 { return time.Now().UnixNano() }

// Reading is a single derivation of a section timer.
type Reading struct {
	Running     bool  `json:"running"`
	RemainingMs int64 `json:"remaining_ms"`
	Deadline    int64 `json:"deadline"`
}

// Expired reports whether a running section has no time left.
func (r Reading) Expired() bool {
	return r.Running && r.RemainingMs == 0
}

// Read derives the remaining time. With no start timestamp the timer is "not running" and
// reports neither zero nor a negative value.
func Read(startedAt *int64, duration time.Duration, now int64) Reading {
	if startedAt == nil {
		return Reading{}
	}
	deadline := *startedAt + int64(duration)
	remaining := deadline - now
	if remaining < 0 {
		remaining = 0
	}
	return Reading{
		Running:     true,
		RemainingMs: remaining / int64(time.Millisecond),
		Deadline:    deadline,
	}
}

// Expired is shorthand for Read(...).Expired().
func Expired(startedAt *int64, duration time.Duration, now int64) bool {
	return Read(startedAt, duration, now).Expired()
}
