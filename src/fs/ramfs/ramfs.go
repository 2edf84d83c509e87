// Package ramfs implements an in-memory filesystem personality
// satisfying vfs.Filesystem/vfs.VnodeOps: every file lives in a tree of
// ramfsNode values held entirely in process memory, with no backing
// store. Grounded on original_source's ramfs_vnops.c, translating its
// singly-linked rn_child/rn_next sibling list and one global
// ramfs_lock into a tree of child slices guarded by one *Ramfs_t mutex.
package ramfs

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
)

type ramfsNode struct {
	name     string
	ntype    uint8
	mode     uint32
	data     []byte
	children []*ramfsNode
}

// Ramfs_t is one mounted instance; vfs.Mount calls VGet against it to
// populate the vnode for the mount's root path and every path beneath.
type Ramfs_t struct {
	mu   sync.Mutex
	root *ramfsNode
}

// New constructs an empty ramfs with a single root directory, the
// counterpart of ramfs_mount allocating the "/" node.
func New() *Ramfs_t {
	return &Ramfs_t{root: &ramfsNode{name: "/", ntype: vfs.VDIR, mode: 0755}}
}

func (fs *Ramfs_t) find(path ustr.Ustr) *ramfsNode {
	n := fs.root
	for _, c := range path.Components() {
		next := lookupChild(n, c.String())
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}

func lookupChild(dir *ramfsNode, name string) *ramfsNode {
	for _, c := range dir.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// VGet resolves vp.Path against the in-memory tree, the counterpart of
// ramfs_lookup folded into vfs's single VGet step (see src/vfs's
// VnodeOps doc comment for why there is no separate lookup call).
func (fs *Ramfs_t) VGet(vp *vfs.Vnode_t) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := fs.find(vp.Path)
	if n == nil {
		return -defs.ENOENT
	}
	vp.Vtype = n.ntype
	vp.Ops = fs
	vp.Data = n
	return 0
}

func (fs *Ramfs_t) Open(vp *vfs.Vnode_t, flags int) defs.Err_t { return 0 }
func (fs *Ramfs_t) Close(vp *vfs.Vnode_t) defs.Err_t           { return 0 }

func (fs *Ramfs_t) Read(vp *vfs.Vnode_t, dst []uint8, offset int64) (int, defs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := vp.Data.(*ramfsNode)
	if n.ntype == vfs.VDIR {
		return 0, -defs.EISDIR
	}
	if offset >= int64(len(n.data)) {
		return 0, 0
	}
	return copy(dst, n.data[offset:]), 0
}

func (fs *Ramfs_t) Write(vp *vfs.Vnode_t, src []uint8, offset int64) (int, defs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := vp.Data.(*ramfsNode)
	if n.ntype == vfs.VDIR {
		return 0, -defs.EISDIR
	}
	end := offset + int64(len(src))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], src)
	return len(src), 0
}

func (fs *Ramfs_t) Create(dvp *vfs.Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dn := dvp.Data.(*ramfsNode)
	if lookupChild(dn, name.String()) != nil {
		return -defs.EEXIST
	}
	dn.children = append(dn.children, &ramfsNode{name: name.String(), ntype: vfs.VREG, mode: mode})
	return 0
}

func (fs *Ramfs_t) Mkdir(dvp *vfs.Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dn := dvp.Data.(*ramfsNode)
	if lookupChild(dn, name.String()) != nil {
		return -defs.EEXIST
	}
	dn.children = append(dn.children, &ramfsNode{name: name.String(), ntype: vfs.VDIR, mode: mode})
	return 0
}

func (fs *Ramfs_t) Remove(dvp *vfs.Vnode_t, name ustr.Ustr) defs.Err_t {
	return fs.unlink(dvp, name, vfs.VREG)
}

func (fs *Ramfs_t) Rmdir(dvp *vfs.Vnode_t, name ustr.Ustr) defs.Err_t {
	fs.mu.Lock()
	n := lookupChild(dvp.Data.(*ramfsNode), name.String())
	fs.mu.Unlock()
	if n == nil {
		return -defs.ENOENT
	}
	if len(n.children) != 0 {
		return -defs.ENOTEMPTY
	}
	return fs.unlink(dvp, name, vfs.VDIR)
}

func (fs *Ramfs_t) unlink(dvp *vfs.Vnode_t, name ustr.Ustr, want uint8) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dn := dvp.Data.(*ramfsNode)
	for i, c := range dn.children {
		if c.name == name.String() {
			if c.ntype != want {
				if want == vfs.VREG {
					return -defs.EISDIR
				}
				return -defs.ENOTDIR
			}
			dn.children = append(dn.children[:i], dn.children[i+1:]...)
			return 0
		}
	}
	return -defs.ENOENT
}

func (fs *Ramfs_t) Rename(dvp *vfs.Vnode_t, name ustr.Ustr, tdvp *vfs.Vnode_t, tname ustr.Ustr) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dn := dvp.Data.(*ramfsNode)
	tdn := tdvp.Data.(*ramfsNode)

	var moved *ramfsNode
	idx := -1
	for i, c := range dn.children {
		if c.name == name.String() {
			moved, idx = c, i
			break
		}
	}
	if moved == nil {
		return -defs.ENOENT
	}

	if existing := lookupChild(tdn, tname.String()); existing != nil {
		for i, c := range tdn.children {
			if c == existing {
				tdn.children = append(tdn.children[:i], tdn.children[i+1:]...)
				break
			}
		}
	}

	moved.name = tname.String()
	dn.children = append(dn.children[:idx], dn.children[idx+1:]...)
	tdn.children = append(tdn.children, moved)
	return 0
}

func (fs *Ramfs_t) Readdir(vp *vfs.Vnode_t, idx int) (fdops.Dirent_t, defs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := vp.Data.(*ramfsNode)
	switch idx {
	case 0:
		return fdops.Dirent_t{Name: ustr.MkUstrDot(), Vtype: vfs.VDIR}, 0
	case 1:
		return fdops.Dirent_t{Name: ustr.DotDot, Vtype: vfs.VDIR}, 0
	}
	i := idx - 2
	if i >= len(n.children) {
		return fdops.Dirent_t{}, -defs.ENOENT
	}
	c := n.children[i]
	return fdops.Dirent_t{Name: ustr.Ustr(c.name), Vtype: c.ntype}, 0
}

func (fs *Ramfs_t) Getattr(vp *vfs.Vnode_t, st *fdops.Stat_t) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := vp.Data.(*ramfsNode)
	st.Mode = n.mode
	if n.ntype == vfs.VREG {
		st.Size = int64(len(n.data))
	}
	return 0
}

func (fs *Ramfs_t) Setattr(vp *vfs.Vnode_t, st *fdops.Stat_t) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	vp.Data.(*ramfsNode).mode = st.Mode
	return 0
}

// Truncate resizes the file's data buffer, the counterpart of
// ramfs_truncate (without the original's page-rounded vm_allocate
// bookkeeping, since a Go slice already grows/shrinks without a
// separate buffer-capacity field).
func (fs *Ramfs_t) Truncate(vp *vfs.Vnode_t, size int64) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := vp.Data.(*ramfsNode)
	if n.ntype != vfs.VREG {
		return -defs.EISDIR
	}
	if size <= int64(len(n.data)) {
		n.data = n.data[:size]
		return 0
	}
	grown := make([]byte, size)
	copy(grown, n.data)
	n.data = grown
	return 0
}

func (fs *Ramfs_t) Fsync(vp *vfs.Vnode_t) defs.Err_t { return 0 }
func (fs *Ramfs_t) Inactive(vp *vfs.Vnode_t)         {}
