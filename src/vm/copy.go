package vm

import (
	"time"

	"nanokernel/src/defs"
	"nanokernel/src/mem"
	"nanokernel/src/ustr"
	"nanokernel/src/util"
)

// bytesAt returns a slice of the backing page for va (truncated at the
// page boundary, as real hardware pages are), enforcing write
// permission when write is true. Caller holds Lock_pmap.
func (vm *Vm_t) bytesAt(va uintptr, write bool) ([]byte, defs.Err_t) {
	vm.Lockassert_pmap()
	e := vm.segmentFor(va)
	if e == nil {
		return nil, -defs.EFAULT
	}
	seg := e.Value.(*Segment_t)
	if seg.Flags&FFREE != 0 {
		return nil, -defs.EFAULT
	}
	if write && seg.Flags&FWRITE == 0 {
		return nil, -defs.EFAULT
	}
	pa, ok := vm.mmu.Translate(va, 1)
	if !ok {
		return nil, -defs.EFAULT
	}
	voff := int(va) & (mem.PGSIZE - 1)
	pagebase := pa - mem.Pa_t(voff)
	return vm.pages.Bytes(pagebase, mem.PGSIZE)[voff:], 0
}

// Translate resolves a user virtual address to its backing physical
// address, for callers outside this package that need the mapping
// itself rather than a byte-level copy — the futex wait queue keys on
// physical address so two mappings of the same page rendezvous on one
// wait list.
func (vm *Vm_t) Translate(va uintptr, size int) (mem.Pa_t, bool) {
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	return vm.mmu.Translate(va, size)
}

// Userreadn reads n (<= 8) bytes from user address va.
func (vm *Vm_t) Userreadn(va, n int) (int, defs.Err_t) {
	if n > 8 {
		panic("large n")
	}
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	var ret int
	for i := 0; i < n; {
		src, err := vm.bytesAt(uintptr(va+i), false)
		if err != 0 {
			return 0, err
		}
		l := n - i
		if len(src) < l {
			l = len(src)
		}
		v := util.Readn(src, l, 0)
		ret |= v << (8 * uint(i))
		i += l
	}
	return ret, 0
}

// Userwriten writes n (<= 8) bytes of val to user address va.
func (vm *Vm_t) Userwriten(va, n, val int) defs.Err_t {
	if n > 8 {
		panic("large n")
	}
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	for i := 0; i < n; {
		dst, err := vm.bytesAt(uintptr(va+i), true)
		if err != 0 {
			return err
		}
		l := n - i
		if len(dst) < l {
			l = len(dst)
		}
		util.Writen(dst, l, 0, val>>(8*uint(i)))
		i += l
	}
	return 0
}

// Userstr copies a NUL-terminated string from user space, up to lenmax
// bytes.
func (vm *Vm_t) Userstr(uva, lenmax int) (ustr.Ustr, defs.Err_t) {
	if lenmax < 0 {
		return nil, 0
	}
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	s := ustr.MkUstr()
	i := 0
	for {
		str, err := vm.bytesAt(uintptr(uva+i), false)
		if err != 0 {
			return nil, err
		}
		for j, c := range str {
			if c == 0 {
				return append(s, str[:j]...), 0
			}
		}
		s = append(s, str...)
		i += len(str)
		if len(s) >= lenmax {
			return nil, -defs.ENAMETOOLONG
		}
	}
}

// Usertimespec reads a {sec,nsec} pair from user memory at va.
func (vm *Vm_t) Usertimespec(va int) (time.Duration, time.Time, defs.Err_t) {
	secs, err := vm.Userreadn(va, 8)
	if err != 0 {
		return 0, time.Time{}, err
	}
	nsecs, err := vm.Userreadn(va+8, 8)
	if err != 0 {
		return 0, time.Time{}, err
	}
	if secs < 0 || nsecs < 0 {
		return 0, time.Time{}, -defs.EINVAL
	}
	tot := time.Duration(secs)*time.Second + time.Duration(nsecs)*time.Nanosecond
	return tot, time.Unix(int64(secs), int64(nsecs)), 0
}

// K2user copies src into user space starting at uva.
func (vm *Vm_t) K2user(src []byte, uva int) defs.Err_t {
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	cnt := 0
	for cnt != len(src) {
		dst, err := vm.bytesAt(uintptr(uva+cnt), true)
		if err != 0 {
			return err
		}
		cnt += copy(dst, src[cnt:])
	}
	return 0
}

// User2k copies len(dst) bytes from user space at uva into dst.
func (vm *Vm_t) User2k(dst []byte, uva int) defs.Err_t {
	vm.Lock_pmap()
	defer vm.Unlock_pmap()
	cnt := 0
	for cnt != len(dst) {
		src, err := vm.bytesAt(uintptr(uva+cnt), false)
		if err != 0 {
			return err
		}
		cnt += copy(dst[cnt:], src)
	}
	return 0
}
