// Package vfs implements the vnode cache, lock word, mount table and
// path resolution of §4.7: one vnode per active (mount, path) pair,
// reference-counted and independently lockable shared or exclusive.
// Grounded on original_source's vfs_vnode.c (vn_lock/vget/vput/vref/
// vrele/vbind), translated from its pthread-mutex-plus-semaphore lock
// word into this module's own sem.Sem_t and sched.Thread.
package vfs

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/sched"
	"nanokernel/src/sem"
	"nanokernel/src/ustr"
)

// Vnode types, mirroring the original's VREG/VDIR/... tag.
const (
	VNON uint8 = iota
	VREG
	VDIR
	VCHR
	VBLK
	VLNK
	VFIFO
)

// Lock flags passed to Vnode_t.Lock.
const (
	lkShared = 1 << iota
	lkExclusive
	lkWaiter
)

const (
	LK_SHARED    = lkShared
	LK_EXCLUSIVE = lkExclusive
)

// Vnode_t is one cached vnode: vn_lock/vn_unlock's subject and the unit
// vget/vput/vref/vrele account against (§8 property 7).
type Vnode_t struct {
	Mount *Mount_t
	Path  ustr.Ustr
	Vtype uint8
	Ops   VnodeOps
	Data  interface{} // filesystem-private state, set by Filesystem.VGet

	mu      sync.Mutex // guards flags/nrlocks, the original's v_interlock
	flags   int
	nrlocks int
	wait    *sem.Sem_t // parked lockers; posted when the last unlock clears VWAITER

	refcnt int32 // guarded by the owning Cache_t's mu, the original's global vnode_lock
}

func newVnode(mount *Mount_t, path ustr.Ustr) *Vnode_t {
	return &Vnode_t{
		Mount:  mount,
		Path:   append(ustr.Ustr{}, path...),
		wait:   sem.New(0),
		refcnt: 1,
	}
}

func waiterThreads(ws []sem.Waiter) []*sched.Thread {
	out := make([]*sched.Thread, len(ws))
	for i, w := range ws {
		out[i] = w.(*sched.Thread)
	}
	return out
}

// Lock acquires the vnode shared or exclusive, retrying until either
// is available; flags must be exactly one of LK_SHARED/LK_EXCLUSIVE.
// Callers must already hold a reference (Vget/Vref) before locking.
func (vp *Vnode_t) Lock(self *sched.Thread, flags int) {
	for {
		vp.mu.Lock()
		compatible := vp.flags&(lkShared|lkExclusive) == 0 ||
			(vp.flags&lkShared != 0 && flags&lkShared != 0)
		if compatible {
			if flags&lkShared != 0 {
				vp.flags |= lkShared
			} else {
				vp.flags |= lkExclusive
			}
			vp.nrlocks++
			vp.mu.Unlock()
			return
		}
		vp.flags |= lkWaiter
		vp.mu.Unlock()
		vp.wait.Wait(self)
	}
}

// Unlock releases one level of vp's lock, waking a waiter if this was
// the last one held.
func (vp *Vnode_t) Unlock(self *sched.Thread) {
	vp.mu.Lock()
	if vp.nrlocks == 0 {
		vp.mu.Unlock()
		panic("vfs: unlock of unlocked vnode")
	}
	vp.nrlocks--
	var wake []sem.Waiter
	if vp.nrlocks == 0 {
		vp.flags &^= (lkExclusive | lkShared)
		if vp.flags&lkWaiter != 0 {
			vp.flags &^= lkWaiter
			wake, _ = vp.wait.Post()
		}
	}
	vp.mu.Unlock()
	if len(wake) > 0 {
		self.Resched(waiterThreads(wake))
	}
}

// LockRW upgrades an already-locked vnode to exclusive in place when vp
// is the sole shared holder, or drops the shared hold and reacquires
// exclusive otherwise. A no-op if already exclusive.
func (vp *Vnode_t) LockRW(self *sched.Thread) {
	vp.mu.Lock()
	if vp.flags&lkExclusive != 0 {
		vp.mu.Unlock()
		return
	}
	if vp.nrlocks == 1 {
		vp.flags &^= lkShared
		vp.flags |= lkExclusive
		vp.mu.Unlock()
		return
	}
	vp.nrlocks--
	vp.mu.Unlock()
	vp.Lock(self, LK_EXCLUSIVE)
}

// Getattr/Setattr/Truncate/Fsync dispatch straight to vp.Ops, filled in
// out of convenience so callers don't need to carry Ops alongside vp
// everywhere; the remaining operations (Open/Read/Write/Create/Remove/
// Rename/Mkdir/Rmdir/Readdir/Inactive) are invoked directly via vp.Ops
// by the VFS and syscall layers.

func (vp *Vnode_t) Getattr(st *fdops.Stat_t) defs.Err_t { return vp.Ops.Getattr(vp, st) }
func (vp *Vnode_t) Setattr(st *fdops.Stat_t) defs.Err_t { return vp.Ops.Setattr(vp, st) }
func (vp *Vnode_t) Truncate(size int64) defs.Err_t      { return vp.Ops.Truncate(vp, size) }
func (vp *Vnode_t) Fsync() defs.Err_t                   { return vp.Ops.Fsync(vp) }
