package vfs

import (
	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/ustr"
)

// VnodeOps is the per-filesystem vnode operation vtable — the
// interface counterpart of original_source's struct vnops. One value
// is shared by every vnode a given Filesystem vends; methods that
// don't apply to a vnode's Vtype (Create on a regular file, Read on a
// directory) return ENOTDIR/EISDIR rather than being split into
// separate file/dir interfaces, matching the original's single
// combined vnops table. There is no separate Lookup: since this
// module's vnode cache is keyed by the full path rather than by a
// directory-relative inode number, resolving "does this name exist in
// this directory" and "fetch its vnode" are the same operation, done
// once by Filesystem.VGet rather than twice.
type VnodeOps interface {
	Open(vp *Vnode_t, flags int) defs.Err_t
	Close(vp *Vnode_t) defs.Err_t
	Read(vp *Vnode_t, dst []uint8, offset int64) (int, defs.Err_t)
	Write(vp *Vnode_t, src []uint8, offset int64) (int, defs.Err_t)
	Create(dvp *Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t
	Remove(dvp *Vnode_t, name ustr.Ustr) defs.Err_t
	Rename(dvp *Vnode_t, name ustr.Ustr, tdvp *Vnode_t, tname ustr.Ustr) defs.Err_t
	Mkdir(dvp *Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t
	Rmdir(dvp *Vnode_t, name ustr.Ustr) defs.Err_t
	Readdir(vp *Vnode_t, idx int) (fdops.Dirent_t, defs.Err_t)
	Getattr(vp *Vnode_t, st *fdops.Stat_t) defs.Err_t
	Setattr(vp *Vnode_t, st *fdops.Stat_t) defs.Err_t
	Truncate(vp *Vnode_t, size int64) defs.Err_t
	Fsync(vp *Vnode_t) defs.Err_t
	// Inactive releases any filesystem-private state in vp.Data once
	// the last reference drops; it must not block on vp's own lock,
	// since the cache calls it with vp already held exclusively.
	Inactive(vp *Vnode_t)
}

// Filesystem is the per-mount vtable — the counterpart of the
// original's struct vfsops, narrowed to what this module's mount table
// drives: populating a freshly allocated vnode for a path that exists
// in this filesystem (the original's VFS_VGET), and the operation set
// its vnodes share.
type Filesystem interface {
	// VGet populates vp.Vtype, vp.Ops and vp.Data for vp.Path, which is
	// relative to this filesystem's own root ("/", never the system
	// mount point). Returns ENOENT if no such path exists.
	VGet(vp *Vnode_t) defs.Err_t
}
