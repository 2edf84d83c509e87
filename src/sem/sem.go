// Package sem implements the counting semaphore of §4.6: wait/post on
// top of a scheduler wait-list and the timeout queue, used wherever a
// bounded number of permits must be handed out in FIFO order (§8
// property 5).
package sem

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/timeout"
)

// Waiter is satisfied by sched.Thread: ParkSleeping blocks the caller
// until some other goroutine makes it runnable again. Post returns the
// detached waiter list as []Waiter so the caller — which knows how to
// reschedule a concrete thread — can type-assert and drive the
// scheduler; this package has no scheduler dependency of its own.
type Waiter interface {
	ParkSleeping()
}

// Sem_t is a counting semaphore. Waiters queue in FIFO order (§8
// property 5); a post wakes the entire waiter list at once and lets
// them race on the count, matching §4.6's documented semantics rather
// than waking exactly one.
type Sem_t struct {
	mu      sync.Mutex
	count   int32
	waiters []Waiter
}

// New constructs a semaphore with the given initial count.
func New(count int32) *Sem_t {
	return &Sem_t{count: count}
}

// Wait blocks self until a permit is available.
func (s *Sem_t) Wait(self Waiter) {
	for {
		s.mu.Lock()
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return
		}
		s.waiters = append(s.waiters, self)
		s.mu.Unlock()
		self.ParkSleeping()
	}
}

// TryWait attempts to take a permit without blocking.
func (s *Sem_t) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// RetvalTimedOut is the retval a timed-out TimedWait's timeout.Waker
// delivers; TimedWait itself doesn't consult it (it re-checks the
// count directly), but callers building on Waker directly may want it.
const RetvalTimedOut = -1

// timedWaiter wraps a Waiter's timeout.Waker identity so that firing
// on expiry also removes self from the semaphore's waiter list —
// otherwise a later Post would hand a stale, already-timed-out entry
// back to the caller for rescheduling.
type timedWaiter struct {
	s    *Sem_t
	self Waiter
	w    timeout.Waker
}

func (tw *timedWaiter) Wake(retval int) {
	tw.s.mu.Lock()
	for i, w := range tw.s.waiters {
		if w == tw.self {
			tw.s.waiters = append(tw.s.waiters[:i], tw.s.waiters[i+1:]...)
			break
		}
	}
	tw.s.mu.Unlock()
	tw.w.Wake(retval)
}

// TimedWait blocks self until a permit is available or until (absolute
// monotonic nanoseconds on tq's clock) is reached, whichever comes
// first. It reports whether a permit was actually taken; the caller
// does not need to inspect self's retval since this re-checks the
// count directly regardless of which of {post, timeout} woke it.
func (s *Sem_t) TimedWait(self interface {
	Waiter
	timeout.Waker
}, tq *timeout.Queue_t, until int64) bool {
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return true
	}
	s.waiters = append(s.waiters, self)
	s.mu.Unlock()

	e := tq.WakeAt(until, &timedWaiter{s: s, self: self, w: self}, RetvalTimedOut)
	self.ParkSleeping()
	tq.Cancel(e) // no-op if the timeout already fired

	return s.TryWait()
}

// Post increments the count. If it is already at its maximum
// representable value, it returns EOVERFLOW without waking anyone.
// Otherwise it detaches and returns the full waiter list for the
// caller to reschedule; every detached waiter races on the count once
// resumed.
func (s *Sem_t) Post() ([]Waiter, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == (1<<31 - 1) {
		return nil, -defs.EOVERFLOW
	}
	s.count++
	if len(s.waiters) == 0 {
		return nil, 0
	}
	woken := s.waiters
	s.waiters = nil
	return woken, 0
}
