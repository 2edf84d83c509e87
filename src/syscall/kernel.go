// Package syscall implements the system-call registration table and
// POSIX-shaped handlers of §4.8/§6: it is the glue layer that turns a
// (syscall number, arguments) pair arriving from an architecture trap
// into a call against the scheduler, VM map, fd table and VFS built by
// the rest of this module. Grounded on original_source's kernel.h
// (SYSCALL/__elk_set_syscall) for the registration idiom and
// thread.c/vfs_syscalls.c for individual handler semantics; there is
// no teacher src/proc or src/syscall package in this pack (both are
// empty go.mod stubs), so the process/fd-table model below is built
// fresh from those two files' struct thread and fdset_t call sites.
package syscall

import (
	"sync"

	"github.com/sirupsen/logrus"

	"nanokernel/src/defs"
	"nanokernel/src/fd"
	"nanokernel/src/mem"
	"nanokernel/src/sched"
	"nanokernel/src/timeout"
	"nanokernel/src/vfs"
	"nanokernel/src/vm"
)

var log = logrus.WithField("subsys", "syscall")

// Kernel_t is the process-wide state object referenced by every
// syscall handler (Design Notes: "global singletons... expressed as a
// process-wide state object initialised at boot; passed explicitly to
// subsystems that need it"). It owns nothing that a single Proc_t
// doesn't already reference-count; it exists so handlers don't each
// need their own copy of every subsystem pointer.
type Kernel_t struct {
	Sched    *sched.Sched_t
	Timeouts *timeout.Queue_t
	Pages    *mem.PageAlloc_t
	Cache    *vfs.Cache_t
	Mounts   *vfs.MountTable_t
	Table    *Table_t
	Net      *NetDomains_t

	mu    sync.Mutex
	procs map[defs.Tid_t]*Proc_t
}

// NewKernel wires together a fresh instance of every subsystem this
// layer drives. sched/timeout/mem are supplied by the caller (boot,
// or a test) since their construction order and parameters — CPU
// count, timer source, arena size — are policy this package has no
// opinion on.
func NewKernel(s *sched.Sched_t, tq *timeout.Queue_t, pages *mem.PageAlloc_t) *Kernel_t {
	k := &Kernel_t{
		Sched:    s,
		Timeouts: tq,
		Pages:    pages,
		Cache:    vfs.NewCache(),
		Mounts:   vfs.NewMountTable(),
		Net:      newNetDomains(),
		procs:    make(map[defs.Tid_t]*Proc_t),
	}
	k.Table = newTable()
	registerAll(k.Table)
	return k
}

// Proc_t layers everything spec.md's Thread attributes list beyond
// scheduling — identity, umask, the fd table, the address space, cwd —
// onto a *sched.Thread, the way original_source's struct thread embeds
// fdset_t/vm_map/uid/gid fields directly rather than splitting them
// into a separate "process" object. sched.Thread itself stays free of
// these fields so package sched never has to import vm/fd/vfs.
type Proc_t struct {
	Thread *sched.Thread
	Kernel *Kernel_t

	mu    sync.Mutex
	Fdset *Fdset_t
	Vm    *vm.Vm_t
	Cwd   *fd.Cwd_t

	Uid, Euid, Suid, Fuid uint32
	Gid, Egid, Sgid, Fgid uint32
	Pgid, Sid             defs.Tid_t
	Umask                 uint32

	ClearChildTid int // user address zeroed and futex-woken on exit, or 0

	brkStart, brkEnd uintptr // [brkStart,brkEnd) is the brk(2) heap segment, once faulted in
}

// lookupProc returns the Proc_t registered for tid, if any.
func (k *Kernel_t) lookupProc(tid defs.Tid_t) (*Proc_t, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := k.procs[tid]
	return p, ok
}

func (k *Kernel_t) registerProc(p *Proc_t) {
	k.mu.Lock()
	k.procs[p.Thread.Tid] = p
	k.mu.Unlock()
}

func (k *Kernel_t) unregisterProc(tid defs.Tid_t) {
	k.mu.Lock()
	delete(k.procs, tid)
	k.mu.Unlock()
}

// Bootstrap creates the reserved tid-1 init process: a fresh address
// space, an empty fd table rooted at "/", and the OnExit hook that
// keeps Kernel_t's process table in sync with the scheduler's own
// thread table.
func (k *Kernel_t) Bootstrap(mmu vm.MMU, rootfd *fd.Fd_t, entry func(p *Proc_t)) *Proc_t {
	p := &Proc_t{
		Kernel: k,
		Fdset:  newFdset(),
		Vm:     vm.New(k.Pages, mmu),
		Cwd:    fd.MkRootCwd(rootfd),
		Umask:  022,
	}
	t := k.Sched.Bootstrap(func() { runProc(p, entry) })
	p.Thread = t
	t.OnExit = func(t *sched.Thread) { k.onExit(p) }
	k.registerProc(p)
	return p
}

// exitUnwind is recovered by runProc to unwind a process's goroutine
// back to the scheduler when it calls exit/exit_group — the dispatch
// loop an architecture's trap glue would otherwise drive has no
// analogue in this module, so sys_exit signals termination the only
// way a bare goroutine can be asked to stop early.
type exitUnwind struct{ code int }

// runProc drives a process's entry function, catching the unwind
// sys_exit raises so ordinary Go panics (bugs) still propagate and
// crash loudly instead of being swallowed as if the process had
// exited cleanly.
func runProc(p *Proc_t, entry func(p *Proc_t)) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(exitUnwind); ok {
				return
			}
			panic(r)
		}
	}()
	entry(p)
}

// onExit clears clear_child_tid and futex-wakes any joiner, drops the
// process's own references to its fd table and address space, then
// removes it from the process table — run on the exiting thread's own
// goroutine via Thread.OnExit, before the scheduler reclaims its tid
// and makes the final handoff away from it.
func (k *Kernel_t) onExit(p *Proc_t) {
	if p.ClearChildTid != 0 {
		p.Vm.Userwriten(p.ClearChildTid, 4, 0)
		futexWake(p.Vm, p.ClearChildTid, 1)
	}
	p.Fdset.unref()
	p.Vm.Unref()
	k.unregisterProc(p.Thread.Tid)
	log.WithField("tid", p.Thread.Tid).Debug("process exited")
}
