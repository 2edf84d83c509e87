package mem

import (
	"fmt"
	"sync"
)

// kheap blocks are 16-byte granularity; free blocks are tracked per size
// class by address rather than via an in-band header.
const (
	kh_minblk   = 16
	kh_nclasses = 9 // size classes: 16, 32, 64, ... 4096 bytes
)

// Kheap_t is the sub-page kernel heap (§4.2): a page allocator-backed
// slab of fixed size classes, each with its own free list. Allocations
// larger than the largest class fall back to whole pages from the
// backing PageAlloc_t directly.
type Kheap_t struct {
	sync.Mutex
	pages   *PageAlloc_t
	classes [kh_nclasses][]Pa_t // free block addresses, per class
	bufs    map[Pa_t][]byte     // backing byte slice for each free/alloc'd block, keyed by block addr
}

// NewKheap constructs a kernel heap backed by pages.
func NewKheap(pages *PageAlloc_t) *Kheap_t {
	return &Kheap_t{
		pages: pages,
		bufs:  make(map[Pa_t][]byte),
	}
}

func classSize(class int) int {
	return kh_minblk << uint(class)
}

func classFor(n int) (int, bool) {
	sz := kh_minblk
	for c := 0; c < kh_nclasses; c++ {
		if n <= sz {
			return c, true
		}
		sz <<= 1
	}
	return 0, false
}

// Alloc returns a zeroed block of at least n bytes, plus its kernel heap
// address. Blocks larger than the largest size class are satisfied with
// whole pages straight from the backing allocator.
func (k *Kheap_t) Alloc(n int) (Pa_t, []byte, bool) {
	hdr := kh_hdrsize
	class, ok := classFor(n + hdr)
	if !ok {
		addr, ok := k.pages.Alloc(n)
		if !ok {
			return 0, nil, false
		}
		return addr, k.pages.Bytes(addr, n), true
	}

	k.Lock()
	defer k.Unlock()

	if len(k.classes[class]) == 0 {
		k._refill(class)
	}
	free := k.classes[class]
	if len(free) == 0 {
		return 0, nil, false
	}
	addr := free[len(free)-1]
	k.classes[class] = free[:len(free)-1]

	buf := k.bufs[addr]
	clear(buf)
	return addr, buf[hdr : hdr+n], true
}

// _refill splits one fresh page from the backing allocator into blocks
// of the given class and pushes them onto its free list. Called with the
// heap lock held.
func (k *Kheap_t) _refill(class int) {
	sz := classSize(class)
	if sz > PGSIZE {
		return
	}
	pg, ok := k.pages.Alloc(PGSIZE)
	if !ok {
		return
	}
	buf := k.pages.Bytes(pg, PGSIZE)
	n := PGSIZE / sz
	for i := 0; i < n; i++ {
		off := i * sz
		addr := pg + Pa_t(off)
		k.bufs[addr] = buf[off : off+sz]
		k.classes[class] = append(k.classes[class], addr)
	}
}

// Free returns a kernel heap block to its size class's free list.
func (k *Kheap_t) Free(addr Pa_t, n int) {
	hdr := kh_hdrsize
	class, ok := classFor(n + hdr)
	if !ok {
		k.pages.Free(addr, n)
		return
	}
	k.Lock()
	defer k.Unlock()
	if _, ok := k.bufs[addr]; !ok {
		panic(fmt.Sprintf("free of unknown kheap block %#x", addr))
	}
	k.classes[class] = append(k.classes[class], addr)
}

// kh_hdrsize is the per-block header reservation subtracted from a size
// class's capacity. Bookkeeping-only: no struct is laid down in the
// arena, unlike the teacher's direct-mapped heap.
const kh_hdrsize = 16
