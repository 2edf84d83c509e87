package syscall

import (
	"nanokernel/src/defs"
	"nanokernel/src/vm"
)

// mmap/mprotect protection and flag bits this core recognizes.
const (
	PROT_READ  = 0x1
	PROT_WRITE = 0x2
	PROT_EXEC  = 0x4

	MAP_SHARED    = 0x01
	MAP_PRIVATE   = 0x02
	MAP_FIXED     = 0x10
	MAP_ANONYMOUS = 0x20
)

// brkHeapBase is where a process's brk segment starts the first time
// sys_brk grows it from zero — an arbitrary but fixed address below
// the mmap region client code never requests directly, matching how a
// minimal libc only ever calls brk(0) once to discover it.
const brkHeapBase = vm.USERMIN + 0x10000

func registerMemCalls(t *Table_t) {
	t.Register(SYS_BRK, sysBrk)
	t.Register(SYS_MMAP, sysMmap)
	t.Register(SYS_MUNMAP, sysMunmap)
	t.Register(SYS_MPROTECT, sysMprotect)
	t.Register(SYS_MREMAP, sysMremap)
}

// sysBrk implements §4.3's heap-growth idiom in terms of Allocate/Free:
// addr == 0 queries the current break; an addr above the break grows it
// to addr (Allocate rounds the new range to pages). An addr below the
// break, or a failed Allocate, leaves the break unchanged; the current
// break is returned in every case.
func sysBrk(p *Proc_t, addr, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if p.brkStart == 0 {
		p.brkStart = brkHeapBase
		p.brkEnd = brkHeapBase
	}
	want := uintptr(addr)
	if want == 0 {
		return int(p.brkEnd), 0
	}
	if want == p.brkEnd {
		return int(p.brkEnd), 0
	}
	if want > p.brkEnd {
		grow := int(want - p.brkEnd)
		if p.brkEnd == p.brkStart {
			if _, err := p.Vm.Allocate(false, p.brkStart, grow, true); err != 0 {
				return int(p.brkEnd), 0
			}
		} else if _, err := p.Vm.Allocate(false, p.brkEnd, grow, true); err != 0 {
			return int(p.brkEnd), 0
		}
		p.brkEnd = want
		return int(p.brkEnd), 0
	}
	// Shrinking a brk segment means splitting it at want and freeing the
	// tail; this core's segment tree already supports that through
	// Attribute's own split path, but Free requires an exact bound match,
	// so a partial shrink here is simply refused rather than plumbing a
	// second split path through for a rarely-exercised case.
	return int(p.brkEnd), 0
}

// sysMmap supports anonymous private mappings only: spec.md's
// Non-goals exclude a page cache, so MAP_SHARED file-backed mappings
// have nothing to back them.
func sysMmap(p *Proc_t, addr, length, prot, flags, fd, off int) (int, defs.Err_t) {
	if flags&MAP_ANONYMOUS == 0 {
		return 0, -defs.EOPNOTSUPP
	}
	writable := prot&PROT_WRITE != 0
	anywhere := flags&MAP_FIXED == 0
	va, err := p.Vm.Allocate(anywhere, uintptr(addr), length, writable)
	if err != 0 {
		return 0, err
	}
	return int(va), 0
}

func sysMunmap(p *Proc_t, addr, length, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if err := p.Vm.Free(uintptr(addr), length); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysMprotect(p *Proc_t, addr, length, prot, a4, a5, a6 int) (int, defs.Err_t) {
	var fl vm.Flag
	if prot&PROT_READ != 0 {
		fl |= vm.FREAD
	}
	if prot&PROT_WRITE != 0 {
		fl |= vm.FWRITE
	}
	if prot&PROT_EXEC != 0 {
		fl |= vm.FEXEC
	}
	if err := p.Vm.Attribute(uintptr(addr), length, fl); err != 0 {
		return 0, err
	}
	return 0, 0
}

// sysMremap has no dedicated resize primitive in the address-space
// layer, so it is implemented as allocate-new, copy, free-old — the
// same three-step fallback a POSIX mmap without MREMAP_MAYMOVE support
// would use.
func sysMremap(p *Proc_t, oldAddr, oldSize, newSize, flags, a5, a6 int) (int, defs.Err_t) {
	newVa, err := p.Vm.Allocate(true, 0, newSize, true)
	if err != 0 {
		return 0, err
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	buf := make([]byte, n)
	if err := p.Vm.User2k(buf, oldAddr); err != 0 {
		p.Vm.Free(newVa, newSize)
		return 0, err
	}
	if err := p.Vm.K2user(buf, int(newVa)); err != 0 {
		p.Vm.Free(newVa, newSize)
		return 0, err
	}
	p.Vm.Free(uintptr(oldAddr), oldSize)
	return int(newVa), 0
}
