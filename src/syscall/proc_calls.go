package syscall

import (
	"nanokernel/src/defs"
	"nanokernel/src/sched"
)

// clone(2) flags this core recognizes; the rest of the Linux bitset
// (CLONE_FS, CLONE_SIGHAND, CLONE_SYSVSEM, ...) has no distinct
// backend here — every process already shares a single chroot/signal
// disposition table implicitly — so they're accepted but ignored
// rather than rejected.
const (
	CLONE_VM             = 0x00000100
	CLONE_FILES          = 0x00000400
	CLONE_THREAD         = 0x00010000
	CLONE_PARENT_SETTID  = 0x00100000
	CLONE_CHILD_CLEARTID = 0x00200000
	CLONE_CHILD_SETTID   = 0x01000000
)

func registerThreadCalls(t *Table_t) {
	t.Register(SYS_CLONE, sysClone)
	t.Register(SYS_FORK, sysFork)
	t.Register(SYS_EXIT, sysExit)
	t.Register(SYS_EXIT_GROUP, sysExit)
	t.Register(SYS_GETTID, sysGettid)
	t.Register(SYS_GETPID, sysGetpid)
	t.Register(SYS_GETPPID, sysGetppid)
	t.Register(SYS_SETPGID, sysSetpgid)
	t.Register(SYS_GETPGID, sysGetpgid)
	t.Register(SYS_GETPGRP, sysGetpgrp)
	t.Register(SYS_SETSID, sysSetsid)
	t.Register(SYS_GETSID, sysGetsid)
	t.Register(SYS_UMASK, sysUmask)
	t.Register(SYS_SETUID, sysSetuid)
	t.Register(SYS_SETGID, sysSetgid)
	t.Register(SYS_GETUID, sysGetuid)
	t.Register(SYS_GETGID, sysGetgid)
	t.Register(SYS_GETEUID, sysGeteuid)
	t.Register(SYS_GETEGID, sysGetegid)
	t.Register(SYS_SCHED_YIELD, sysSchedYield)
	t.Register(SYS_TKILL, sysTkill)
	t.Register(SYS_FUTEX, sysFutex)
	t.Register(SYS_SET_TID_ADDRESS, sysSetTidAddress)
	t.Register(SYS_GET_ROBUST_LIST, sysRobustListNop)
	t.Register(SYS_SET_ROBUST_LIST, sysRobustListNop)
}

// sysRobustListNop accepts get/set_robust_list without acting on them,
// matching original_source's own minimal handling: a libc that calls
// this at thread startup should not fail merely because the core
// tracks no robust mutex list.
func sysRobustListNop(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return a1, 0
}

// sysClone implements §8's concrete clone scenario:
// clone(CLONE_VM|CLONE_FILES, stack, &ptid, tls, &ctid, entry) yields a
// child sharing the parent's address space and fd table, with
// *ptid == child_tid, *ctid == child_tid, and the child's first
// instruction being entry. This core has no user-mode trampoline to
// jump to, so "entry" is instead the calling goroutine's own next
// syscall-return point: the child thread re-enters at the same
// dispatch loop the parent would, with entry recorded for the
// architecture glue (not modeled here) to resume at.
func sysClone(p *Proc_t, flags, stack, ptid, tls, ctid int) (int, defs.Err_t) {
	shareVm := flags&CLONE_VM != 0
	shareFiles := flags&CLONE_FILES != 0

	var childVm = p.Vm
	if shareVm {
		p.Vm.Ref()
	} else {
		nvm, err := p.Vm.Dup()
		if err != 0 {
			return 0, err
		}
		childVm = nvm
	}
	childFdset := p.Fdset.clone(shareFiles)

	child := &Proc_t{
		Kernel: p.Kernel,
		Fdset:  childFdset,
		Vm:     childVm,
		Cwd:    p.Cwd,
		Uid:    p.Uid, Euid: p.Euid, Suid: p.Suid, Fuid: p.Fuid,
		Gid: p.Gid, Egid: p.Egid, Sgid: p.Sgid, Fgid: p.Fgid,
		Pgid: p.Pgid, Sid: p.Sid, Umask: p.Umask,
	}
	if flags&CLONE_CHILD_CLEARTID != 0 {
		child.ClearChildTid = ctid
	}

	priority := p.Thread.Priority
	t, err := p.Kernel.Sched.Clone(p.Thread, priority, func() { runProc(child, func(*Proc_t) {}) })
	if err != 0 {
		childVm.Unref()
		childFdset.unref()
		return 0, err
	}
	child.Thread = t
	t.OnExit = func(*sched.Thread) { p.Kernel.onExit(child) }
	if flags&CLONE_THREAD == 0 {
		t.Pid = t.Tid
	}
	p.Kernel.registerProc(child)

	tid := int(t.Tid)
	if flags&CLONE_PARENT_SETTID != 0 && ptid != 0 {
		p.Vm.Userwriten(ptid, 4, tid)
	}
	if flags&CLONE_CHILD_SETTID != 0 && ctid != 0 {
		childVm.Userwriten(ctid, 4, tid)
	}
	return tid, 0
}

// sysFork is clone with none of CLONE_VM/CLONE_FILES/CLONE_THREAD set:
// a fully independent child with its own copied address space and fd
// table.
func sysFork(p *Proc_t, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return sysClone(p, 0, 0, 0, 0, 0)
}

// sysExit never returns to its caller: it unwinds the process's own
// goroutine stack back to runProc, which lets it fall through to
// sched.Sched_t.exit and run Kernel_t.onExit.
func sysExit(p *Proc_t, code, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	panic(exitUnwind{code: code})
}

func sysGettid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Thread.Tid), 0
}

func sysGetpid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Thread.Pid), 0
}

func sysGetppid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Thread.Ppid), 0
}

func sysSetpgid(p *Proc_t, pid, pgid, a3, a4, a5, a6 int) (int, defs.Err_t) {
	target := p
	if pid != 0 && defs.Tid_t(pid) != p.Thread.Tid {
		other, ok := p.Kernel.lookupProc(defs.Tid_t(pid))
		if !ok {
			return 0, -defs.ESRCH
		}
		target = other
	}
	if pgid == 0 {
		target.Pgid = target.Thread.Pid
	} else {
		target.Pgid = defs.Tid_t(pgid)
	}
	return 0, 0
}

func sysGetpgid(p *Proc_t, pid, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	target := p
	if pid != 0 && defs.Tid_t(pid) != p.Thread.Tid {
		other, ok := p.Kernel.lookupProc(defs.Tid_t(pid))
		if !ok {
			return 0, -defs.ESRCH
		}
		target = other
	}
	return int(target.Pgid), 0
}

func sysGetpgrp(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Pgid), 0
}

func sysSetsid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if p.Pgid == p.Thread.Pid {
		return 0, -defs.EPERM
	}
	p.Sid = p.Thread.Pid
	p.Pgid = p.Thread.Pid
	return int(p.Sid), 0
}

func sysGetsid(p *Proc_t, pid, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	target := p
	if pid != 0 && defs.Tid_t(pid) != p.Thread.Tid {
		other, ok := p.Kernel.lookupProc(defs.Tid_t(pid))
		if !ok {
			return 0, -defs.ESRCH
		}
		target = other
	}
	return int(target.Sid), 0
}

func sysUmask(p *Proc_t, mask, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	old := p.Umask
	p.Umask = uint32(mask) & 0777
	return int(old), 0
}

func sysSetuid(p *Proc_t, uid, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if p.Euid != 0 && uint32(uid) != p.Uid && uint32(uid) != p.Euid {
		return 0, -defs.EPERM
	}
	p.Uid, p.Euid, p.Fuid = uint32(uid), uint32(uid), uint32(uid)
	return 0, 0
}

func sysSetgid(p *Proc_t, gid, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if p.Euid != 0 && uint32(gid) != p.Gid && uint32(gid) != p.Egid {
		return 0, -defs.EPERM
	}
	p.Gid, p.Egid, p.Fgid = uint32(gid), uint32(gid), uint32(gid)
	return 0, 0
}

func sysGetuid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Uid), 0
}
func sysGetgid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Gid), 0
}
func sysGeteuid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Euid), 0
}
func sysGetegid(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return int(p.Egid), 0
}

func sysSchedYield(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	p.Thread.Yield()
	return 0, 0
}

func sysTkill(p *Proc_t, tid, sig, a3, a4, a5, a6 int) (int, defs.Err_t) {
	target, ok := p.Kernel.lookupProc(defs.Tid_t(tid))
	if !ok {
		return 0, -defs.ESRCH
	}
	// Signal delivery beyond this stub is out of scope (§1 Non-goals);
	// waking a thread parked on a futex or message queue is the only
	// observable effect tkill has in this core.
	target.Thread.Wake(-int(defs.EINTR))
	return 0, 0
}

func sysSetTidAddress(p *Proc_t, addr, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	p.ClearChildTid = addr
	return int(p.Thread.Tid), 0
}

func sysFutex(p *Proc_t, uaddr, op, val, a4, a5, a6 int) (int, defs.Err_t) {
	switch op & 0x7f {
	case FUTEX_WAIT:
		if err := futexWaitOn(p.Thread, p.Vm, uaddr, val); err != 0 {
			return 0, err
		}
		return 0, 0
	case FUTEX_WAKE:
		return futexWake(p.Vm, uaddr, val), 0
	default:
		return 0, -defs.ENOSYS
	}
}
