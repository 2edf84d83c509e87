package vm

import (
	"nanokernel/src/defs"
	"nanokernel/src/mem"
	"nanokernel/src/util"
)

// Allocate implements §4.3 Allocate: find or reserve a range, back it
// with freshly zeroed pages, and map it READ (|WRITE if writable).
// Failure unwinds the split and any partial allocation.
func (vm *Vm_t) Allocate(anywhere bool, addr uintptr, size int, writable bool) (uintptr, defs.Err_t) {
	size = util.Roundup(size, mem.PGSIZE)

	vm.Lock()
	defer vm.Unlock()

	if anywhere {
		fe := vm.firstFit(size)
		if fe == nil {
			return 0, -defs.ENOMEM
		}
		addr = fe.Value.(*Segment_t).Addr
	}
	e, ok := vm.splitFree(addr, size)
	if !ok {
		return 0, -defs.ENOMEM
	}
	seg := e.Value.(*Segment_t)

	pa, ok := vm.pages.Alloc(size)
	if !ok {
		seg.Flags = FFREE
		vm.coalesceFree(e)
		return 0, -defs.ENOMEM
	}
	flags := FREAD
	if writable {
		flags |= FWRITE
	}
	if err := vm.mmu.Map(addr, pa, size, flags); err != 0 {
		vm.pages.Free(pa, size)
		seg.Flags = FFREE
		vm.coalesceFree(e)
		return 0, err
	}
	seg.Phys = pa
	seg.Flags = flags
	return addr, 0
}

// Free implements §4.3 Free: the target must match an existing
// segment's bounds exactly. Pages are released unless the segment is
// SHARED (ring accounting decides) or MAPPED (the mapping owner never
// frees, only unmaps its own view).
func (vm *Vm_t) Free(addr uintptr, size int) defs.Err_t {
	size = util.Roundup(size, mem.PGSIZE)

	vm.Lock()
	defer vm.Unlock()

	e := vm.segmentFor(addr)
	if e == nil {
		return -defs.EINVAL
	}
	seg := e.Value.(*Segment_t)
	if seg.Flags&FFREE != 0 || seg.Addr != addr || seg.Size != size {
		return -defs.EINVAL
	}

	vm.mmu.Unmap(addr, size)
	if seg.Flags&FMAPPED == 0 {
		if seg.Flags&FSHARED != 0 {
			if last := shareLeave(seg); last {
				vm.pages.Free(seg.Phys, size)
			}
		} else {
			vm.pages.Free(seg.Phys, size)
		}
	}
	seg.Flags = FFREE
	seg.Phys = 0
	vm.coalesceFree(e)
	return 0
}

// Attribute implements §4.3 Attribute: change protection on a
// (possibly sub-range of a) non-MAPPED segment. Adding WRITE to a
// SHARED segment breaks sharing by copying to a fresh physical range.
func (vm *Vm_t) Attribute(addr uintptr, size int, prot Flag) defs.Err_t {
	size = util.Roundup(size, mem.PGSIZE)

	vm.Lock()
	defer vm.Unlock()

	e := vm.segmentFor(addr)
	if e == nil {
		return -defs.EINVAL
	}
	seg := e.Value.(*Segment_t)
	if seg.Flags&FMAPPED != 0 {
		return -defs.EINVAL
	}
	if seg.Addr != addr || seg.Size != size {
		var ok bool
		e, ok = vm.splitSegment(e, addr, size)
		if !ok {
			return -defs.EINVAL
		}
		seg = e.Value.(*Segment_t)
	}

	if seg.Flags&FSHARED != 0 && prot&FWRITE != 0 {
		fresh, ok := vm.pages.Alloc(seg.Size)
		if !ok {
			return -defs.ENOMEM
		}
		copy(vm.pages.Bytes(fresh, seg.Size), vm.pages.Bytes(seg.Phys, seg.Size))
		vm.mmu.Unmap(seg.Addr, seg.Size)
		if err := vm.mmu.Map(seg.Addr, fresh, seg.Size, prot); err != 0 {
			vm.pages.Free(fresh, seg.Size)
			return err
		}
		shareLeave(seg)
		seg.Phys = fresh
	} else if err := vm.mmu.Protect(seg.Addr, seg.Size, prot); err != 0 {
		return err
	}
	kept := seg.Flags & (FSHARED | FMAPPED)
	seg.Flags = (seg.Flags &^ (FREAD | FWRITE | FEXEC | FSHARED | FMAPPED)) | prot | kept
	return 0
}

// Map implements §4.3 Map: locate other's segment at addr, map the same
// physical pages into this address space with the MAPPED flag, clamping
// the caller's requested write permission to what the target allows.
func (vm *Vm_t) Map(other *Vm_t, addr uintptr, size int, writable bool) (uintptr, defs.Err_t) {
	size = util.Roundup(size, mem.PGSIZE)

	other.Lock()
	oe := other.segmentFor(addr)
	if oe == nil {
		other.Unlock()
		return 0, -defs.EINVAL
	}
	oseg := oe.Value.(*Segment_t)
	if oseg.Flags&FFREE != 0 || oseg.Addr != addr || oseg.Size != size {
		other.Unlock()
		return 0, -defs.EINVAL
	}
	phys := oseg.Phys
	targetWritable := oseg.Flags&FWRITE != 0
	other.Unlock()

	vm.Lock()
	defer vm.Unlock()
	fe := vm.firstFit(size)
	if fe == nil {
		return 0, -defs.ENOMEM
	}
	newaddr := fe.Value.(*Segment_t).Addr
	e, ok := vm.splitFree(newaddr, size)
	if !ok {
		return 0, -defs.ENOMEM
	}
	flags := FREAD | FMAPPED
	if writable && targetWritable {
		flags |= FWRITE
	}
	if err := vm.mmu.Map(newaddr, phys, size, flags); err != 0 {
		seg := e.Value.(*Segment_t)
		seg.Flags = FFREE
		vm.coalesceFree(e)
		return 0, err
	}
	seg := e.Value.(*Segment_t)
	seg.Phys = phys
	seg.Flags = flags
	return newaddr, 0
}

// Dup implements §4.3 Dup: read-only/exec segments become SHARED with
// no copy; writable segments are eagerly copied (no lazy COW — demand
// paging is out of scope). FREE and MAPPED segments carry over as-is.
func (vm *Vm_t) Dup() (*Vm_t, defs.Err_t) {
	vm.Lock()
	defer vm.Unlock()

	nvm := New(vm.pages, vm.mmu.New())
	nvm.segs.Remove(nvm.segs.Front()) // rebuilt element-by-element below

	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		ns := &Segment_t{Addr: s.Addr, Size: s.Size, Flags: s.Flags}

		switch {
		case s.Flags&FFREE != 0, s.Flags&FMAPPED != 0:
			ns.Phys = s.Phys
			nvm.segs.PushBack(ns)
			if s.Flags&FMAPPED != 0 {
				if err := nvm.mmu.Map(ns.Addr, ns.Phys, ns.Size, ns.Flags); err != 0 {
					return nil, err
				}
			}

		case s.Flags&FWRITE == 0:
			// read-only or exec: share, no copy
			ns.Phys = s.Phys
			nvm.segs.PushBack(ns)
			if err := nvm.mmu.Map(ns.Addr, ns.Phys, ns.Size, ns.Flags); err != 0 {
				return nil, err
			}
			shareJoin(s, ns)

		default:
			fresh, ok := vm.pages.Alloc(s.Size)
			if !ok {
				return nil, -defs.ENOMEM
			}
			copy(vm.pages.Bytes(fresh, s.Size), vm.pages.Bytes(s.Phys, s.Size))
			ns.Phys = fresh
			nvm.segs.PushBack(ns)
			if err := nvm.mmu.Map(ns.Addr, ns.Phys, ns.Size, ns.Flags); err != 0 {
				return nil, err
			}
		}
	}
	return nvm, 0
}

// Terminate tears down every mapped segment, freeing pages owned
// exclusively by this address space, and resets the segment list to a
// single FREE span. There is no real page-directory register to
// switch away from first, since the scheduler context-switches
// goroutines rather than CPU page-table roots.
func (vm *Vm_t) Terminate() {
	vm.Lock()
	defer vm.Unlock()

	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		if s.Flags&FFREE != 0 {
			continue
		}
		vm.mmu.Unmap(s.Addr, s.Size)
		if s.Flags&FMAPPED != 0 {
			continue
		}
		if s.Flags&FSHARED != 0 {
			if last := shareLeave(s); last {
				vm.pages.Free(s.Phys, s.Size)
			}
		} else {
			vm.pages.Free(s.Phys, s.Size)
		}
	}
	vm.segs.Init()
	vm.segs.PushBack(&Segment_t{Addr: USERMIN, Size: int(USERLIMIT - USERMIN), Flags: FFREE})
	log.Debug("address space terminated")
}
