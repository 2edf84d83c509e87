package vm

import (
	"container/list"

	"nanokernel/src/mem"
)

// splitFree carves an exact [addr,addr+size) segment out of the FREE
// segment that must wholly contain it, leaving FREE remainders on
// either side. The returned segment is still flagged FREE; the caller
// overwrites Flags/Phys once it knows what the carved-out range will
// back. Caller holds the lock.
func (vm *Vm_t) splitFree(addr uintptr, size int) (*list.Element, bool) {
	e := vm.segmentFor(addr)
	if e == nil {
		return nil, false
	}
	s := e.Value.(*Segment_t)
	if s.Flags&FFREE == 0 || addr+uintptr(size) > s.Addr+uintptr(s.Size) {
		return nil, false
	}
	head := int(addr - s.Addr)
	tail := s.Size - head - size
	switch {
	case head == 0 && tail == 0:
		// exact fit
	case head == 0:
		s.Addr += uintptr(size)
		s.Size = tail
		e = vm.segs.InsertBefore(&Segment_t{Addr: addr, Size: size, Flags: FFREE}, e)
	case tail == 0:
		s.Size = head
		e = vm.segs.InsertAfter(&Segment_t{Addr: addr, Size: size, Flags: FFREE}, e)
	default:
		s.Size = head
		e = vm.segs.InsertAfter(&Segment_t{Addr: addr, Size: size, Flags: FFREE}, e)
		vm.segs.InsertAfter(&Segment_t{Addr: addr + uintptr(size), Size: tail, Flags: FFREE}, e)
	}
	return e, true
}

// splitSegment ensures a segment exists spanning exactly [addr,addr+size)
// within the segment containing addr, splitting off head/tail remainders
// that inherit the original segment's flags and an offset view of its
// physical range. Used by Attribute to narrow a sub-range of a larger
// segment. Caller holds the lock.
func (vm *Vm_t) splitSegment(e *list.Element, addr uintptr, size int) (*list.Element, bool) {
	s := e.Value.(*Segment_t)
	if addr < s.Addr || addr+uintptr(size) > s.Addr+uintptr(s.Size) {
		return nil, false
	}
	head := int(addr - s.Addr)
	tail := s.Size - head - size
	if head == 0 && tail == 0 {
		return e, true
	}
	flags := s.Flags
	shared := flags&FSHARED != 0
	origPhys := s.Phys

	var mid *Segment_t
	if head > 0 {
		s.Size = head
		mid = &Segment_t{Addr: addr, Size: size, Flags: flags, Phys: physOff(flags, origPhys, head)}
		e = vm.segs.InsertAfter(mid, e)
	} else {
		mid = &Segment_t{Addr: addr, Size: size, Flags: flags, Phys: origPhys}
		s.Addr = addr + uintptr(size)
		s.Size = tail
		s.Phys = physOff(flags, origPhys, size)
		e = vm.segs.InsertBefore(mid, e)
	}
	if head > 0 && tail > 0 {
		tailseg := &Segment_t{Addr: addr + uintptr(size), Size: tail, Flags: flags, Phys: physOff(flags, mid.Phys, size)}
		vm.segs.InsertAfter(tailseg, e)
		if shared {
			shareJoin(mid, tailseg)
		}
	}
	if shared {
		shareJoin(s, mid)
	}
	return e, true
}

func physOff(flags Flag, base mem.Pa_t, off int) mem.Pa_t {
	if flags&FFREE != 0 {
		return 0
	}
	return base + mem.Pa_t(off)
}

// coalesceFree merges e with an immediately adjacent FREE neighbour on
// either side. Caller holds the lock.
func (vm *Vm_t) coalesceFree(e *list.Element) {
	s := e.Value.(*Segment_t)
	if nx := e.Next(); nx != nil {
		nxs := nx.Value.(*Segment_t)
		if nxs.Flags&FFREE != 0 && s.Addr+uintptr(s.Size) == nxs.Addr {
			s.Size += nxs.Size
			vm.segs.Remove(nx)
		}
	}
	if pv := e.Prev(); pv != nil {
		pvs := pv.Value.(*Segment_t)
		if pvs.Flags&FFREE != 0 && pvs.Addr+uintptr(pvs.Size) == s.Addr {
			pvs.Size += s.Size
			vm.segs.Remove(e)
		}
	}
}
