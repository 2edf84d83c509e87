// Package vm implements the per-process virtual memory manager (§4.3):
// an address-sorted segment list plus an MMU abstraction with two
// interchangeable backends. Demand paging to backing store is out of
// scope (spec Non-goals), so Allocate/Dup back every writable segment
// with real pages immediately rather than faulting them in lazily.
package vm

import (
	"container/list"
	"sync"

	"github.com/sirupsen/logrus"

	"nanokernel/src/mem"
	"nanokernel/src/util"
)

var log = logrus.WithField("subsys", "vm")

// USERMIN is the lowest addressable user virtual address; address 0 is
// never mapped so null-pointer dereferences fault.
const USERMIN = uintptr(4096)

// USERLIMIT is the exclusive upper bound of the user address range.
const USERLIMIT = uintptr(1) << 32

// Flag is a segment's permission/state bit set (§3: READ, WRITE, EXEC,
// SHARED, MAPPED, FREE).
type Flag uint8

const (
	FREAD Flag = 1 << iota
	FWRITE
	FEXEC
	FSHARED
	FMAPPED
	FFREE
)

// Segment_t is one entry of a process's ordered segment list.
type Segment_t struct {
	Addr      uintptr
	Size      int
	Phys      mem.Pa_t
	Flags     Flag
	shareNode *shareNode
}

// Vm_t is a process address space: the segment list described in §3
// plus the MMU handle and the page allocator segments are backed by.
// The mutex guards the segment list and every MMU call the way the
// teacher's Vm_t mutex guards Vmregion and Pmap together.
type Vm_t struct {
	sync.Mutex
	segs   *list.List // *Segment_t, address-ordered, covers [USERMIN,USERLIMIT)
	mmu    MMU
	pages  *mem.PageAlloc_t
	refcnt int32
	locked bool // set while the lock is held, for Lockassert_pmap
}

// New constructs an empty address space: a single FREE segment spanning
// the whole user range.
func New(pages *mem.PageAlloc_t, mmu MMU) *Vm_t {
	vm := &Vm_t{
		segs:   list.New(),
		mmu:    mmu,
		pages:  pages,
		refcnt: 1,
	}
	vm.segs.PushBack(&Segment_t{Addr: USERMIN, Size: int(USERLIMIT - USERMIN), Flags: FFREE})
	return vm
}

// Ref increments the address space's reference count, for CLONE_VM.
func (vm *Vm_t) Ref() {
	vm.Lock()
	vm.refcnt++
	vm.Unlock()
}

// Unref drops a reference, tearing the address space down via Terminate
// when the count reaches zero.
func (vm *Vm_t) Unref() {
	vm.Lock()
	vm.refcnt--
	n := vm.refcnt
	vm.Unlock()
	if n == 0 {
		vm.Terminate()
	}
}

// Lock_pmap acquires the address space lock around a sequence of page
// table manipulations or user-memory accesses.
func (vm *Vm_t) Lock_pmap() {
	vm.Lock()
	vm.locked = true
}

// Unlock_pmap releases the lock taken by Lock_pmap.
func (vm *Vm_t) Unlock_pmap() {
	vm.locked = false
	vm.Unlock()
}

// Lockassert_pmap panics if the address space lock is not held.
func (vm *Vm_t) Lockassert_pmap() {
	if !vm.locked {
		panic("pmap lock must be held")
	}
}

// segmentFor returns the list element whose segment contains addr.
// Caller must hold the address space lock.
func (vm *Vm_t) segmentFor(addr uintptr) *list.Element {
	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		if addr >= s.Addr && addr < s.Addr+uintptr(s.Size) {
			return e
		}
	}
	return nil
}

// firstFit returns the first FREE segment of at least size bytes.
func (vm *Vm_t) firstFit(size int) *list.Element {
	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		if s.Flags&FFREE != 0 && s.Size >= size {
			return e
		}
	}
	return nil
}

// Unusedva returns the start of ln bytes of unused (FREE) address space,
// for mmap(MAP_ANYWHERE)-style callers with an address hint: it takes the
// first FREE segment, in address order, of at least ln bytes, and returns
// startva (rounded down to a page) when that segment contains it with ln
// bytes from there, otherwise the segment's start, which may lie below
// startva. It returns 0 when no FREE segment is large enough.
func (vm *Vm_t) Unusedva(startva, ln int) int {
	vm.Lock()
	defer vm.Unlock()
	start := util.Rounddown(uintptr(startva), uintptr(mem.PGSIZE))
	if start < USERMIN {
		start = USERMIN
	}
	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		if s.Flags&FFREE == 0 || s.Size < ln {
			continue
		}
		lo := s.Addr
		if lo < start && start < s.Addr+uintptr(s.Size) && int(s.Addr+uintptr(s.Size)-start) >= ln {
			lo = start
		}
		return int(lo)
	}
	return 0
}
