// Package fdops declares the per-open-file operation vtable shared by
// fd.Fd_t and the vnode-backed filesystem personalities under
// src/fs — the Go-interface counterpart of original_source's struct
// vnops (sys/vnode.h), narrowed to what a file descriptor (as opposed
// to a bare vnode) needs: an open file carries its own cursor and
// access mode, which vnops alone doesn't track. The teacher's own
// fdops package is an empty go.mod stub in this pack, so this is built
// directly from spec.md §4.7/§4.8 and the vnode.h call sites.
package fdops

import (
	"nanokernel/src/defs"
	"nanokernel/src/ustr"
)

// Stat_t mirrors the fields namei/vn_stat callers need, independent of
// any host struct stat layout.
type Stat_t struct {
	Inum  uint64
	Mode  uint32
	Size  int64
	Rdev  int64
	Links int64
}

// Dirent_t is one entry returned by Readdir.
type Dirent_t struct {
	Name  ustr.Ustr
	Inum  uint64
	Vtype uint8
}

// Fdops_i is implemented by every open file descriptor's backing
// object (a regular vnode, a directory, a device). Offsets are
// maintained by the implementation, not the caller, matching
// VOP_READ/VOP_WRITE's file_t-carries-the-cursor design.
type Fdops_i interface {
	// Close releases the descriptor's reference to its vnode.
	Close() defs.Err_t
	// Read copies up to len(dst) bytes at the descriptor's current
	// offset into dst, advancing it, and returns the count copied.
	Read(dst []uint8) (int, defs.Err_t)
	// Write is Read's counterpart; for append-mode descriptors the
	// offset is reset to the file's end before writing.
	Write(src []uint8) (int, defs.Err_t)
	// Pread/Pwrite are Read/Write at an explicit offset, leaving the
	// descriptor's own cursor untouched.
	Pread(dst []uint8, offset int) (int, defs.Err_t)
	Pwrite(src []uint8, offset int) (int, defs.Err_t)
	// Lseek repositions the cursor per whence (SEEK_SET/CUR/END) and
	// returns the new absolute offset.
	Lseek(offset int, whence int) (int, defs.Err_t)
	// Fstat fills st with the backing vnode's attributes.
	Fstat(st *Stat_t) defs.Err_t
	// Ioctl is a narrow escape hatch for device-specific commands;
	// cmd/arg meanings are defined by the device, not this interface.
	Ioctl(cmd uint, arg int) (int, defs.Err_t)
	// Readdir returns the next directory entry, or ENOENT once
	// exhausted.
	Readdir() (Dirent_t, defs.Err_t)
	// Reopen increments the backing vnode's reference count for a
	// duplicated descriptor (dup/dup2/fork); the new Fd_t is a shallow
	// copy sharing this Fdops_i, so without Reopen the refcount would
	// undercount live references.
	Reopen() defs.Err_t
	// Truncate resizes the backing file.
	Truncate(newlen uint) defs.Err_t
	// Fullpath reconstructs the descriptor's canonical path, used by
	// getcwd-style syscalls and /proc-less process introspection.
	Fullpath() (ustr.Ustr, defs.Err_t)
}
