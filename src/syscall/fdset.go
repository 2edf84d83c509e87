package syscall

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/fd"
)

// fdsetMin is the fd table's initial capacity; it grows geometrically
// (double on exhaustion) the way spec.md §3's File entry describes:
// "indices into a per-process fd array; the array is grown
// geometrically on demand."
const fdsetMin = 16

// Fdset_t is a process's open file descriptor table: a geometrically
// grown array of *fd.Fd_t slots, shared by reference across every
// thread cloned with CLONE_FILES and duplicated (fdset_clone's
// non-shared path) otherwise. Grounded on original_source's
// allocfd/getfile/getdup/setfile (sys/thread.h) backed by an opaque
// fdset_t this pack's teacher never included a definition for.
type Fdset_t struct {
	mu     sync.Mutex
	fds    []*fd.Fd_t
	refcnt int32
}

func newFdset() *Fdset_t {
	return &Fdset_t{fds: make([]*fd.Fd_t, fdsetMin), refcnt: 1}
}

// ref adds a reference, for CLONE_FILES.
func (s *Fdset_t) ref() {
	s.mu.Lock()
	s.refcnt++
	s.mu.Unlock()
}

// unref drops a reference, closing every open descriptor once the
// last thread sharing this table has gone.
func (s *Fdset_t) unref() {
	s.mu.Lock()
	s.refcnt--
	last := s.refcnt == 0
	var live []*fd.Fd_t
	if last {
		live = s.fds
		s.fds = nil
	}
	s.mu.Unlock()
	if !last {
		return
	}
	for _, f := range live {
		if f != nil {
			fd.Close_panic(f)
		}
	}
}

// clone implements fdset_clone's two paths: shared (CLONE_FILES, just
// bumps the refcount) or copied (every live descriptor reopened into a
// freshly allocated table, the fork-without-CLONE_FILES default).
func (s *Fdset_t) clone(shared bool) *Fdset_t {
	if shared {
		s.ref()
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &Fdset_t{fds: make([]*fd.Fd_t, len(s.fds)), refcnt: 1}
	for i, f := range s.fds {
		if f == nil {
			continue
		}
		nf, err := fd.Copyfd(f)
		if err != 0 {
			continue
		}
		n.fds[i] = nf
	}
	return n
}

func (s *Fdset_t) grow(min int) {
	n := len(s.fds) * 2
	if n <= min {
		n = min + 1
	}
	grown := make([]*fd.Fd_t, n)
	copy(grown, s.fds)
	s.fds = grown
}

// Alloc installs f at the lowest unused index at or above min and
// returns that index, growing the table if none is free.
func (s *Fdset_t) Alloc(f *fd.Fd_t, min int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		for i := min; i < len(s.fds); i++ {
			if s.fds[i] == nil {
				s.fds[i] = f
				return i
			}
		}
		s.grow(min)
	}
}

// Get returns the descriptor at fdno, or EBADF if it isn't open.
func (s *Fdset_t) Get(fdno int) (*fd.Fd_t, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fdno < 0 || fdno >= len(s.fds) || s.fds[fdno] == nil {
		return nil, -defs.EBADF
	}
	return s.fds[fdno], 0
}

// Set installs f at fdno directly, growing the table if needed and
// closing whatever was previously there — dup2's replace-in-place
// semantics (§8's concrete dup2 scenario).
func (s *Fdset_t) Set(fdno int, f *fd.Fd_t) defs.Err_t {
	if fdno < 0 {
		return -defs.EBADF
	}
	s.mu.Lock()
	if fdno >= len(s.fds) {
		s.grow(fdno)
	}
	old := s.fds[fdno]
	s.fds[fdno] = f
	s.mu.Unlock()
	if old != nil {
		fd.Close_panic(old)
	}
	return 0
}

// Close releases fdno, freeing the slot for reuse.
func (s *Fdset_t) Close(fdno int) defs.Err_t {
	s.mu.Lock()
	if fdno < 0 || fdno >= len(s.fds) || s.fds[fdno] == nil {
		s.mu.Unlock()
		return -defs.EBADF
	}
	f := s.fds[fdno]
	s.fds[fdno] = nil
	s.mu.Unlock()
	return f.Fops.Close()
}
