// Package mem implements the page-frame allocator (§4.1) and the
// sub-page kernel heap (§4.2) that sits on top of it. Physical memory is
// simulated as a single contiguous byte arena rather than real RAM; the
// allocator's free-list discipline (single address-ordered list,
// first-fit, coalesce-on-free) is otherwise unchanged from a bare-metal
// implementation.
package mem

import (
	"container/list"
	"sync"

	"github.com/sirupsen/logrus"

	"nanokernel/src/util"
)

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// Pa_t is an address into the simulated physical arena.
type Pa_t uintptr

var log = logrus.WithField("subsys", "mem")

// Page_i abstracts page-frame allocation for consumers (circbuf, block
// caches) that only need pages, not the rest of the allocator's API.
type Page_i interface {
	Alloc() (Pa_t, []byte, bool)
	Free(Pa_t)
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

type freeblk_t struct {
	addr Pa_t
	size int
}

// PageAlloc_t is the single global free-list page allocator (§4.1). All
// operations are guarded by one mutex; the allocator never sleeps.
type PageAlloc_t struct {
	sync.Mutex
	arena    []byte
	free     *list.List // of *freeblk_t, kept address-ordered
	refcnt   map[Pa_t]int32
	reserved map[Pa_t]bool
}

// NewPageAlloc reserves nbytes of simulated physical memory and returns
// an allocator whose entire arena starts out free.
func NewPageAlloc(nbytes int) *PageAlloc_t {
	nbytes = util.Roundup(nbytes, PGSIZE)
	p := &PageAlloc_t{
		arena:    make([]byte, nbytes),
		free:     list.New(),
		refcnt:   make(map[Pa_t]int32),
		reserved: make(map[Pa_t]bool),
	}
	p.free.PushBack(&freeblk_t{addr: 0, size: nbytes})
	log.WithField("pages", nbytes/PGSIZE).Info("page allocator initialized")
	return p
}

// Bytes returns a slice over the arena at [addr, addr+size), the
// allocator's equivalent of the direct map.
func (p *PageAlloc_t) Bytes(addr Pa_t, size int) []byte {
	return p.arena[addr : int(addr)+size]
}

// Alloc allocates size bytes (rounded up to a page) via first-fit search
// of the free list, splitting the found block if it is larger than
// needed, and zero-fills the returned region.
func (p *PageAlloc_t) Alloc(size int) (Pa_t, bool) {
	size = util.Roundup(size, PGSIZE)
	p.Lock()
	defer p.Unlock()
	addr, ok := p._alloc(size)
	if !ok {
		return 0, false
	}
	clear(p.arena[addr : int(addr)+size])
	for pg := addr; pg < addr+Pa_t(size); pg += Pa_t(PGSIZE) {
		p.refcnt[pg] = 0
	}
	return addr, true
}

func (p *PageAlloc_t) _alloc(size int) (Pa_t, bool) {
	for e := p.free.Front(); e != nil; e = e.Next() {
		b := e.Value.(*freeblk_t)
		if b.size < size {
			continue
		}
		addr := b.addr
		if b.size == size {
			p.free.Remove(e)
		} else {
			b.addr += Pa_t(size)
			b.size -= size
		}
		return addr, true
	}
	return 0, false
}

// Free returns [addr, addr+size) to the free list in address order,
// coalescing with immediately adjacent free neighbours. The caller must
// supply the original size; the allocator does not remember it.
func (p *PageAlloc_t) Free(addr Pa_t, size int) {
	size = util.Roundup(size, PGSIZE)
	p.Lock()
	defer p.Unlock()
	for pg := addr; pg < addr+Pa_t(size); pg += Pa_t(PGSIZE) {
		delete(p.refcnt, pg)
	}
	p._insertfree(addr, size)
}

func (p *PageAlloc_t) _insertfree(addr Pa_t, size int) {
	var at *list.Element
	for e := p.free.Front(); e != nil; e = e.Next() {
		b := e.Value.(*freeblk_t)
		if b.addr > addr {
			at = e
			break
		}
	}
	nb := &freeblk_t{addr: addr, size: size}
	var ne *list.Element
	if at == nil {
		ne = p.free.PushBack(nb)
	} else {
		ne = p.free.InsertBefore(nb, at)
	}
	// coalesce with the successor
	if nx := ne.Next(); nx != nil {
		nxb := nx.Value.(*freeblk_t)
		if nb.addr+Pa_t(nb.size) == nxb.addr {
			nb.size += nxb.size
			p.free.Remove(nx)
		}
	}
	// coalesce with the predecessor
	if pv := ne.Prev(); pv != nil {
		pvb := pv.Value.(*freeblk_t)
		if pvb.addr+Pa_t(pvb.size) == nb.addr {
			pvb.size += nb.size
			p.free.Remove(ne)
		}
	}
}

// Reserve removes [addr, addr+size) from whatever free block contains it,
// splitting the enclosing block on one or both sides. Used at init time
// to carve out fixed regions (e.g. the boot image) before general
// allocation begins.
func (p *PageAlloc_t) Reserve(addr Pa_t, size int) bool {
	size = util.Roundup(size, PGSIZE)
	p.Lock()
	defer p.Unlock()
	for e := p.free.Front(); e != nil; e = e.Next() {
		b := e.Value.(*freeblk_t)
		if b.addr <= addr && addr+Pa_t(size) <= b.addr+Pa_t(b.size) {
			head := int(addr - b.addr)
			tail := b.size - head - size
			if head == 0 && tail == 0 {
				p.free.Remove(e)
			} else if head == 0 {
				b.addr += Pa_t(size)
				b.size = tail
			} else if tail == 0 {
				b.size = head
			} else {
				b.size = head
				p.free.InsertAfter(&freeblk_t{addr: addr + Pa_t(size), size: tail}, e)
			}
			for pg := addr; pg < addr+Pa_t(size); pg += Pa_t(PGSIZE) {
				p.reserved[pg] = true
				p.refcnt[pg] = 0
			}
			return true
		}
	}
	return false
}

// Refup increments the reference count of the page containing addr.
func (p *PageAlloc_t) Refup(addr Pa_t) {
	p.Lock()
	defer p.Unlock()
	pg := util.Rounddown(addr, Pa_t(PGSIZE))
	c := p.refcnt[pg] + 1
	if c <= 0 {
		panic("wut")
	}
	p.refcnt[pg] = c
}

// Refdown decrements the reference count of the page containing addr and
// frees the page (returning it to the free list) when it reaches zero.
// It reports whether the page was freed.
func (p *PageAlloc_t) Refdown(addr Pa_t) bool {
	p.Lock()
	pg := util.Rounddown(addr, Pa_t(PGSIZE))
	c, ok := p.refcnt[pg]
	if !ok {
		p.Unlock()
		panic("refdown of unallocated page")
	}
	c--
	if c < 0 {
		p.Unlock()
		panic("negative refcount")
	}
	p.refcnt[pg] = c
	freed := c == 0
	p.Unlock()
	if freed {
		p.Free(pg, PGSIZE)
	}
	return freed
}

// Refcnt returns the current reference count of the page containing addr.
func (p *PageAlloc_t) Refcnt(addr Pa_t) int {
	p.Lock()
	defer p.Unlock()
	pg := util.Rounddown(addr, Pa_t(PGSIZE))
	return int(p.refcnt[pg])
}

// Alloc1 allocates exactly one page and returns its address and a byte
// slice view of it (the Page_i interface used by circbuf et al.).
func (p *PageAlloc_t) Alloc1() (Pa_t, []byte, bool) {
	addr, ok := p.Alloc(PGSIZE)
	if !ok {
		return 0, nil, false
	}
	return addr, p.Bytes(addr, PGSIZE), true
}

// Free1 is an alias for Free(addr, PGSIZE), satisfying Page_i.
func (p *PageAlloc_t) Free1(addr Pa_t) { p.Free(addr, PGSIZE) }

// page1 adapts PageAlloc_t to the Page_i interface used by circbuf.
type page1_t struct{ *PageAlloc_t }

func (p page1_t) Alloc() (Pa_t, []byte, bool) { return p.Alloc1() }
func (p page1_t) Free(a Pa_t)                 { p.Free1(a) }

// AsPage1 adapts p to the single-page Page_i interface.
func AsPage1(p *PageAlloc_t) Page_i { return page1_t{p} }
