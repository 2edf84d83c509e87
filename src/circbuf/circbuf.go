// Package circbuf implements the single-page circular byte buffer used
// by character device drivers that need a bounded, FIFO-ordered buffer
// between a writer and a reader (a console or line discipline). Not
// safe for concurrent use; a caller serializes access the way src/fd
// serializes access to one descriptor. Grounded on the teacher's
// src/circbuf/circbuf.go, adapted from its Userio_i (copyin/copyout
// against a separate user address space) to plain []uint8 Read/Write,
// since this module's kernel and its clients share one address space
// and nothing here models a user/kernel copy boundary.
package circbuf

import (
	"nanokernel/src/defs"
	"nanokernel/src/mem"
)

// Circbuf_t is a fixed-capacity ring buffer backed by one lazily
// allocated physical page.
type Circbuf_t struct {
	mem   mem.Page_i
	buf   []uint8
	bufsz int
	head  int
	tail  int
	pg    mem.Pa_t
}

// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

// Init configures the buffer's capacity without allocating a backing
// page yet; Copyin/Copyout allocate lazily on first use, so a caller
// that never reads or writes never pays for a page it doesn't need.
func (cb *Circbuf_t) Init(sz int, m mem.Page_i) {
	if sz <= 0 || sz > mem.PGSIZE {
		panic("circbuf: bad size")
	}
	cb.mem = m
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

// Release drops the buffer's reference to its backing page.
func (cb *Circbuf_t) Release() {
	if cb.buf == nil {
		return
	}
	cb.mem.Refdown(cb.pg)
	cb.pg = 0
	cb.buf = nil
	cb.head, cb.tail = 0, 0
}

func (cb *Circbuf_t) ensure() defs.Err_t {
	if cb.buf != nil {
		return 0
	}
	if cb.bufsz == 0 {
		panic("circbuf: not initialized")
	}
	pg, p, ok := cb.mem.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	cb.mem.Refup(pg)
	cb.pg = pg
	cb.buf = p[:cb.bufsz]
	return 0
}

// Full reports whether the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

// Empty reports whether the buffer holds no data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

// Used returns the number of bytes currently buffered.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

// Copyin appends as much of src as fits into the buffer, wrapping
// around its backing page as needed, and returns the number of bytes
// accepted (less than len(src) once the buffer fills).
func (cb *Circbuf_t) Copyin(src []uint8) (int, defs.Err_t) {
	if err := cb.ensure(); err != 0 {
		return 0, err
	}
	if cb.Full() || len(src) == 0 {
		return 0, 0
	}
	n := len(src)
	if n > cb.Left() {
		n = cb.Left()
	}
	hi := cb.head % cb.bufsz
	for i := 0; i < n; i++ {
		cb.buf[(hi+i)%cb.bufsz] = src[i]
	}
	cb.head += n
	return n, 0
}

// Copyout drains up to len(dst) buffered bytes into dst and returns
// the number copied.
func (cb *Circbuf_t) Copyout(dst []uint8) (int, defs.Err_t) {
	if err := cb.ensure(); err != 0 {
		return 0, err
	}
	if cb.Empty() || len(dst) == 0 {
		return 0, 0
	}
	n := cb.Used()
	if n > len(dst) {
		n = len(dst)
	}
	ti := cb.tail % cb.bufsz
	for i := 0; i < n; i++ {
		dst[i] = cb.buf[(ti+i)%cb.bufsz]
	}
	cb.tail += n
	return n, 0
}
