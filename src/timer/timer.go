// Package timer abstracts the monotonic clock and one-shot hardware
// timer that the scheduler and timeout queue arm against (§4.5, §6).
// The default build simulates both in-process so the rest of the kernel
// is deterministically testable; a real-clock backend is selected with
// the realtimer build tag on unix (see realtimer_unix.go) and wraps
// golang.org/x/sys/unix.ClockGettime.
package timer

import (
	"sync"
	"time"
)

// Source abstracts a monotonic clock plus a one-shot alarm, the
// kernel-ABI surface spec.md calls `timer_start(when_ns)`.
type Source interface {
	// Now returns the current monotonic time in nanoseconds.
	Now() int64
	// Arm schedules fn to run once, no earlier than when (absolute
	// nanoseconds per Now). Arming again before fn fires replaces the
	// previous alarm — only the earliest deadline is ever live, matching
	// the single hardware timer spec.md assumes.
	Arm(when int64, fn func())
	// Disarm cancels the pending alarm, if any.
	Disarm()
}

// simSource is the default software clock: a single timer.Timer backing
// one logical "hardware" alarm, exactly as real hardware only offers one
// countdown register.
type simSource struct {
	mu    sync.Mutex
	start time.Time
	t     *time.Timer
}

// NewSimSource returns the default in-process timer source.
func NewSimSource() Source {
	return &simSource{start: timeNow()}
}

func (s *simSource) Now() int64 {
	return int64(timeNow().Sub(s.start))
}

func (s *simSource) Arm(when int64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
	}
	d := time.Duration(when - s.Now())
	if d < 0 {
		d = 0
	}
	s.t = time.AfterFunc(d, fn)
}

func (s *simSource) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}

// timeNow is the one place package timer calls the wall clock, so a
// build-tagged file can swap it for a real clock_gettime(CLOCK_MONOTONIC)
// without touching simSource's logic.
var timeNow = time.Now
