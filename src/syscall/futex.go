package syscall

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/sched"
	"nanokernel/src/vm"
)

// Futex operations this core implements; the rest of the Linux set
// (REQUEUE, WAKE_OP, *_PI) has no caller in this module and is left
// unregistered rather than stubbed.
const (
	FUTEX_WAIT = 0
	FUTEX_WAKE = 1
)

// futexKey identifies a futex word by its backing physical page plus
// in-page offset rather than by virtual address, so two threads that
// map the same page at different addresses (CLONE_VM always maps it
// at the same address here, but a future MAP_SHARED mapping wouldn't)
// still rendezvous on the same wait list.
type futexKey struct {
	pa  uintptr
	off int
}

var (
	futexMu   sync.Mutex
	futexWait = map[futexKey][]*sched.Thread{}
)

func futexKeyFor(m *vm.Vm_t, uaddr int) (futexKey, defs.Err_t) {
	pa, ok := m.Translate(uintptr(uaddr), 1)
	if !ok {
		return futexKey{}, -defs.EFAULT
	}
	return futexKey{pa: uintptr(pa), off: int(uintptr(uaddr) & 0xfff)}, 0
}

// futexWaitOn blocks self on uaddr if its current value still equals
// val (the standard futex race-free check/sleep contract), returning
// EAGAIN immediately if it has already changed.
func futexWaitOn(self *sched.Thread, m *vm.Vm_t, uaddr, val int) defs.Err_t {
	key, err := futexKeyFor(m, uaddr)
	if err != 0 {
		return err
	}
	cur, err := m.Userreadn(uaddr, 4)
	if err != 0 {
		return err
	}
	if cur != val {
		return -defs.EAGAIN
	}
	futexMu.Lock()
	futexWait[key] = append(futexWait[key], self)
	futexMu.Unlock()
	self.Park()
	return 0
}

// futexWake wakes up to n threads parked on uaddr and returns how many
// were actually woken. Called both from sys_futex(FUTEX_WAKE) and from
// Kernel_t.onExit for CLONE_CHILD_CLEARTID.
func futexWake(m *vm.Vm_t, uaddr, n int) int {
	key, err := futexKeyFor(m, uaddr)
	if err != 0 {
		return 0
	}
	futexMu.Lock()
	waiters := futexWait[key]
	woken := n
	if woken > len(waiters) {
		woken = len(waiters)
	}
	futexWait[key] = waiters[woken:]
	if len(futexWait[key]) == 0 {
		delete(futexWait, key)
	}
	toWake := waiters[:woken]
	futexMu.Unlock()

	for _, t := range toWake {
		t.Wake(0)
	}
	return woken
}
