// Package sched implements the fixed-priority preemptive scheduler
// (§3, §4.4): per-priority FIFO ready queues, a bounded tid pool, and
// per-CPU current/idle thread bookkeeping. Threads are goroutines;
// "context switch" is an unbuffered channel handoff between the
// outgoing and incoming thread rather than a register-set swap — see
// switchTo for the mechanism and thread.go's CheckPreempt for why
// time-slice expiry cannot interrupt a running goroutine
// asynchronously and is instead honored at the next safe point.
package sched

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"nanokernel/src/defs"
	"nanokernel/src/timeout"
)

var log = logrus.WithField("subsys", "sched")

// NPRIO is the number of fixed priority levels; 0 is highest.
const NPRIO = 8

// SliceNS is the default scheduling quantum.
const SliceNS = 5_000_000 // 5ms

type readyq_t struct {
	items []*Thread
}

func (q *readyq_t) push(t *Thread) { q.items = append(q.items, t) }

func (q *readyq_t) pop() *Thread {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

func (q *readyq_t) empty() bool { return len(q.items) == 0 }

type cpu_t struct {
	id          int
	current     *Thread
	idle        *Thread
	slice       *timeout.Entry
	needResched atomic.Bool
}

// Sched_t is the global scheduler state: ready queues, the tid pool,
// and the set of simulated CPUs.
type Sched_t struct {
	mu       sync.Mutex
	ready    [NPRIO]readyq_t
	hint     int
	threads  map[defs.Tid_t]*Thread
	tids     *tidpool_t
	cpus     []*cpu_t
	timeouts *timeout.Queue_t
}

var globalSched *Sched_t

// Init constructs the scheduler with ncpu simulated CPUs, each running
// an idle thread, wired to timeouts for slice and sleep expiry.
func Init(ncpu int, timeouts *timeout.Queue_t) *Sched_t {
	s := &Sched_t{
		hint:     NPRIO,
		threads:  make(map[defs.Tid_t]*Thread),
		tids:     newTidpool(),
		timeouts: timeouts,
	}
	for i := 0; i < ncpu; i++ {
		idle := newThread(defs.TID_NONE, NPRIO-1)
		idle.state = IDLE
		cpu := &cpu_t{id: i, idle: idle, current: idle}
		idle.cpu = cpu
		s.cpus = append(s.cpus, cpu)
		go s.idleLoop(cpu)
	}
	globalSched = s
	log.WithField("ncpu", ncpu).Info("scheduler initialized")
	return s
}

func (s *Sched_t) idleLoop(cpu *cpu_t) {
	t := cpu.idle
	for {
		<-t.resume
		s.schedule(cpu, t, nil)
	}
}

// insert places t on its priority's ready queue and lowers hint if t
// is now the highest-priority runnable thread. Caller holds s.mu.
func (s *Sched_t) insert(t *Thread) {
	s.ready[t.Priority].push(t)
	if t.Priority < s.hint {
		s.hint = t.Priority
	}
}

// getRunning picks the next thread to run on cpu: the head of the
// highest nonempty priority queue, or cpu's idle thread if none is
// ready. If any thread remains ready afterward, it arms a one-shot
// slice timeout against the newly running thread (§4.4). Caller holds
// s.mu.
func (s *Sched_t) getRunning(cpu *cpu_t) *Thread {
	for p := s.hint; p < NPRIO; p++ {
		if s.ready[p].empty() {
			continue
		}
		t := s.ready[p].pop()
		t.setState(RUNNING)
		t.cpu = cpu
		cpu.current = t

		s.hint = NPRIO
		for q := 0; q < NPRIO; q++ {
			if !s.ready[q].empty() {
				s.hint = q
				break
			}
		}
		if s.hint < NPRIO {
			s.armSlice(cpu, t)
		} else if cpu.slice != nil {
			s.timeouts.Cancel(cpu.slice)
			cpu.slice = nil
		}
		return t
	}
	cpu.idle.setState(IDLE)
	cpu.idle.cpu = cpu
	cpu.current = cpu.idle
	if cpu.slice != nil {
		s.timeouts.Cancel(cpu.slice)
		cpu.slice = nil
	}
	return cpu.idle
}

func (s *Sched_t) armSlice(cpu *cpu_t, t *Thread) {
	if cpu.slice != nil {
		s.timeouts.Cancel(cpu.slice)
	}
	armedFor := t
	cpu.slice = s.timeouts.WakeCallback(s.timeouts.Now()+SliceNS, func(arg1, arg2 int) {
		s.sliceExpire(cpu, armedFor)
	}, int(t.Tid), 0)
}

// sliceExpire fires on the timer goroutine, not armedFor's own
// goroutine, so it cannot perform the channel handoff itself — it can
// only record that a reschedule is owed, honored the next time
// armedFor reaches a preemption checkpoint (CheckPreempt).
func (s *Sched_t) sliceExpire(cpu *cpu_t, armedFor *Thread) {
	s.mu.Lock()
	stillCurrent := cpu.current == armedFor
	s.mu.Unlock()
	if stillCurrent {
		cpu.needResched.Store(true)
	}
}

// Schedule must be called by cur's own goroutine. It makes every
// thread in wake ready, reinserts cur as ready unless it is idle,
// exiting, or already in wake, then switches to whichever thread
// getRunning selects (§4.4's schedule(list)).
func (s *Sched_t) Schedule(cur *Thread, wake []*Thread) {
	s.mu.Lock()
	for _, w := range wake {
		w.setState(READY)
		s.insert(w)
	}
	if cur.State() != IDLE && cur.State() != EXITING {
		inWake := false
		for _, w := range wake {
			if w == cur {
				inWake = true
				break
			}
		}
		if !inWake {
			cur.setState(READY)
			s.insert(cur)
		}
	}
	next := s.getRunning(cur.cpu)
	s.mu.Unlock()

	s.switchTo(cur, next)
}

// schedule is Schedule's entry point for the per-CPU idle loop, which
// has no "current" thread of its own beyond the idle placeholder.
func (s *Sched_t) schedule(cpu *cpu_t, cur *Thread, wake []*Thread) {
	cur.cpu = cpu
	s.Schedule(cur, wake)
}

// switchTo hands the CPU from "from" to "to": it signals to's resume
// channel, then — unless from is exiting, in which case its goroutine
// is about to return and must not park — blocks on from's own resume
// channel until the scheduler later chooses to resume it again. This
// is the whole of this system's "context switch": no registers, no
// stack pointer, just two goroutines trading a baton.
func (s *Sched_t) switchTo(from, to *Thread) {
	if from == to {
		return
	}
	to.cpu = from.cpu
	to.resume <- struct{}{}
	if from.State() != EXITING {
		<-from.resume
	}
}

// wakeForeign is called from timer-goroutine context (Thread.Wake) to
// make a sleeping/msgwait thread ready without performing a channel
// handoff, since the caller owns no thread's baton. If a CPU is
// currently idle, its idle thread is nudged so it can perform the
// actual handoff itself once selected.
func (s *Sched_t) wakeForeign(t *Thread) {
	s.mu.Lock()
	st := t.State()
	if st != SLEEPING && st != MSGWAIT {
		s.mu.Unlock()
		return
	}
	t.setState(READY)
	s.insert(t)
	var idleCpu *cpu_t
	for _, c := range s.cpus {
		if c.current == c.idle {
			idleCpu = c
			break
		}
	}
	s.mu.Unlock()
	if idleCpu != nil {
		go func() { idleCpu.idle.resume <- struct{}{} }()
	}
}

// NumCPU returns the number of simulated CPUs Init brought up, letting
// a caller (src/boot.Bringup) confirm every CPU it asked for actually
// exists before reporting boot complete.
func (s *Sched_t) NumCPU() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cpus)
}

// Lookup returns the thread registered under tid, if any.
func (s *Sched_t) Lookup(tid defs.Tid_t) (*Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[tid]
	return t, ok
}

// Bootstrap creates the reserved tid-1 init thread and starts it
// running entry on cpu 0, bypassing the ready queue since nothing else
// exists yet.
func (s *Sched_t) Bootstrap(entry func()) *Thread {
	init := newThread(defs.TID_INIT, NPRIO/2)
	s.mu.Lock()
	s.threads[init.Tid] = init
	cpu := s.cpus[0]
	cpu.current = init
	init.cpu = cpu
	s.mu.Unlock()

	go func() {
		<-init.resume
		entry()
		s.exit(init)
	}()
	init.resume <- struct{}{}
	return init
}

// Clone creates a new thread that will run entry once first scheduled
// in. The child is inserted ready immediately; the parent does not
// yield (§4.4 thread creation).
func (s *Sched_t) Clone(parent *Thread, priority int, entry func()) (*Thread, defs.Err_t) {
	tid, ok := s.tids.alloc()
	if !ok {
		return nil, -defs.EAGAIN
	}
	child := newThread(tid, priority)
	child.Ppid = parent.Tid
	child.Pid = parent.Pid

	s.mu.Lock()
	s.threads[tid] = child
	child.setState(READY)
	s.insert(child)
	s.mu.Unlock()

	go func() {
		<-child.resume
		entry()
		s.exit(child)
	}()
	return child, 0
}

// exit runs OnExit, reclaims the tid, and performs the final handoff
// away from the exiting thread's goroutine, which never runs again.
func (s *Sched_t) exit(t *Thread) {
	t.setState(EXITING)
	if t.OnExit != nil {
		t.OnExit(t)
	}
	s.mu.Lock()
	delete(s.threads, t.Tid)
	s.mu.Unlock()
	s.tids.release(t.Tid)
	s.Schedule(t, nil)
}

// Global returns the process-wide scheduler created by Init.
func Global() *Sched_t { return globalSched }
