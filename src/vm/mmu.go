package vm

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/mem"
	"nanokernel/src/util"
)

// MMU abstracts the two back-end implementations §4.3 calls for: one
// that actually maintains a translation (mmu_map/newmap/switch/extract)
// and one for hardware with no MMU at all, where segments are the only
// authority over what is mapped. Both sit behind this identical table.
type MMU interface {
	Map(va uintptr, pa mem.Pa_t, size int, flags Flag) defs.Err_t
	Unmap(va uintptr, size int)
	Protect(va uintptr, size int, flags Flag) defs.Err_t
	Translate(va uintptr, size int) (mem.Pa_t, bool)
	// New returns a fresh, empty backend of the same kind, used when
	// constructing a child address space.
	New() MMU
}

type ptentry struct {
	phys  mem.Pa_t
	flags Flag
}

// softMMU is the "with MMU" backend: a page-granular software
// translation table. Real hardware would walk page-table levels; this
// keeps the same per-page-entry semantics in a map, since there is no
// physical page-table format to walk in a simulated kernel.
type softMMU struct {
	mu   sync.Mutex
	ptes map[uintptr]ptentry
}

// NewSoftMMU constructs an MMU-backed address space translation table.
func NewSoftMMU() MMU {
	return &softMMU{ptes: make(map[uintptr]ptentry)}
}

func (m *softMMU) New() MMU { return NewSoftMMU() }

func (m *softMMU) Map(va uintptr, pa mem.Pa_t, size int, flags Flag) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	for off := 0; off < size; off += mem.PGSIZE {
		m.ptes[va+uintptr(off)] = ptentry{phys: pa + mem.Pa_t(off), flags: flags}
	}
	return 0
}

func (m *softMMU) Unmap(va uintptr, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for off := 0; off < size; off += mem.PGSIZE {
		delete(m.ptes, va+uintptr(off))
	}
}

func (m *softMMU) Protect(va uintptr, size int, flags Flag) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	for off := 0; off < size; off += mem.PGSIZE {
		a := va + uintptr(off)
		e, ok := m.ptes[a]
		if !ok {
			return -defs.EINVAL
		}
		e.flags = flags
		m.ptes[a] = e
	}
	return 0
}

func (m *softMMU) Translate(va uintptr, size int) (mem.Pa_t, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := util.Rounddown(va, uintptr(mem.PGSIZE))
	e, ok := m.ptes[base]
	if !ok {
		return 0, false
	}
	for off := mem.PGSIZE; off < size+int(va-base); off += mem.PGSIZE {
		nx, ok := m.ptes[base+uintptr(off)]
		if !ok || nx.phys != e.phys+mem.Pa_t(off) {
			return 0, false
		}
	}
	return e.phys + mem.Pa_t(va-base), true
}

// nommuMMU is the "without MMU" backend for hardware that offers no
// translation at all: virtual and physical addresses coincide, and
// Map/Unmap/Protect are no-ops since there is no hardware table to
// program. Access control is enforced purely by the segment list.
type nommuMMU struct{}

// NewNoMMU constructs the no-MMU backend.
func NewNoMMU() MMU { return nommuMMU{} }

func (nommuMMU) New() MMU                                       { return nommuMMU{} }
func (nommuMMU) Map(uintptr, mem.Pa_t, int, Flag) defs.Err_t     { return 0 }
func (nommuMMU) Unmap(uintptr, int)                              {}
func (nommuMMU) Protect(uintptr, int, Flag) defs.Err_t           { return 0 }
func (nommuMMU) Translate(va uintptr, size int) (mem.Pa_t, bool) { return mem.Pa_t(va), true }
