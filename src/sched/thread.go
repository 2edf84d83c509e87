package sched

import (
	"sync"

	"nanokernel/src/accnt"
	"nanokernel/src/defs"
)

// State is a thread's position in the state machine of §3/§4.4.
type State int

const (
	IDLE State = iota
	READY
	RUNNING
	EXITING
	SLEEPING
	MSGWAIT
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case READY:
		return "READY"
	case RUNNING:
		return "RUNNING"
	case EXITING:
		return "EXITING"
	case SLEEPING:
		return "SLEEPING"
	case MSGWAIT:
		return "MSGWAIT"
	default:
		return "?"
	}
}

// Thread is the unit of scheduling (§3). Each live thread is backed by
// exactly one goroutine; "context switch" is a channel handoff between
// the outgoing and incoming thread's resume channels rather than a
// register-set swap, since there is no real CPU to reprogram — see
// switchTo.
type Thread struct {
	Tid      defs.Tid_t
	Ppid     defs.Tid_t
	Pid      defs.Tid_t
	Priority int
	Accnt    accnt.Accnt_t

	// OnExit, if set, runs once on the exiting thread's own goroutine
	// before its final handoff — used by the syscall layer to zero
	// clear_child_tid and futex-wake joiners without this package
	// depending on vm.
	OnExit func(t *Thread)

	mu     sync.Mutex
	state  State
	resume chan struct{}
	retval int
	cpu    *cpu_t
}

func newThread(tid defs.Tid_t, priority int) *Thread {
	return &Thread{
		Tid:      tid,
		Pid:      tid,
		Priority: priority,
		state:    IDLE,
		resume:   make(chan struct{}),
	}
}

// State returns the thread's current state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Park suspends the calling goroutine — which must be this thread's
// own — until the scheduler resumes it. Implements msgq.Waiter and
// marks the thread MSGWAIT; semaphore waits park through ParkSleeping
// (SLEEPING) instead.
func (t *Thread) Park() {
	t.setState(MSGWAIT)
	globalSched.Schedule(t, nil)
}

// ParkSleeping is Park's counterpart for threads waiting on a timeout
// queue entry (a timed semaphore wait, a sleep syscall) rather than a
// message queue.
func (t *Thread) ParkSleeping() {
	t.setState(SLEEPING)
	globalSched.Schedule(t, nil)
}

// Wake is timeout.Waker: called from foreign (timer) goroutine context
// when a timeout fires or is cancelled early. It cannot safely perform
// a channel handoff with its own non-existent "current" thread, so it
// only makes t ready and, if a CPU is idle, nudges that CPU's idle
// thread to pick it up — see Sched_t.wakeForeign.
func (t *Thread) Wake(retval int) {
	t.mu.Lock()
	t.retval = retval
	t.mu.Unlock()
	globalSched.wakeForeign(t)
}

// Retval returns the value most recently delivered by Wake — used
// after a timed wait to tell a post from a timeout.
func (t *Thread) Retval() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retval
}

// Resched reinserts each thread in wake as ready and switches away
// from t if a higher-or-equal priority thread is now runnable — the
// live-context counterpart to Wake, used after msgq.Send or sem.Post
// hand back a detached waiter list to reschedule from the caller's own
// goroutine.
func (t *Thread) Resched(wake []*Thread) {
	globalSched.Schedule(t, wake)
}

// Yield voluntarily relinquishes the CPU, landing at the tail of its
// priority's ready queue behind any already-ready peer.
func (t *Thread) Yield() {
	globalSched.Schedule(t, nil)
}

// CheckPreempt honors a pending time-slice expiry recorded against
// this thread's CPU. It must be called at a safe point in kernel code
// — a syscall return, a loop back-edge — since plain goroutines cannot
// be suspended asynchronously; this is this system's rendition of
// "the IRQ epilogue performs the switch on return" (§4.4).
func (t *Thread) CheckPreempt() {
	cpu := t.cpu
	if cpu == nil {
		return
	}
	if cpu.needResched.CompareAndSwap(true, false) {
		globalSched.Schedule(t, nil)
	}
}
