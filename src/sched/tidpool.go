package sched

import (
	"sync"

	"nanokernel/src/defs"
)

// maxThreads bounds the tid space; tid 1 is reserved for the init
// thread and never enters the free pool (§4.4).
const maxThreads = 8192

// tidpool_t is a circular-buffer free list of tids, handed out in
// roughly round-robin order rather than always reusing the
// most-recently-freed id.
type tidpool_t struct {
	mu         sync.Mutex
	free       []defs.Tid_t
	head, tail int
	count      int
}

func newTidpool() *tidpool_t {
	tp := &tidpool_t{free: make([]defs.Tid_t, maxThreads)}
	n := 0
	for tid := defs.TID_INIT + 1; int(tid) < maxThreads; tid++ {
		tp.free[n] = tid
		n++
	}
	tp.count = n
	return tp
}

func (tp *tidpool_t) alloc() (defs.Tid_t, bool) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.count == 0 {
		return defs.TID_NONE, false
	}
	tid := tp.free[tp.head]
	tp.head = (tp.head + 1) % len(tp.free)
	tp.count--
	return tid, true
}

func (tp *tidpool_t) release(tid defs.Tid_t) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.free[tp.tail] = tid
	tp.tail = (tp.tail + 1) % len(tp.free)
	tp.count++
}
