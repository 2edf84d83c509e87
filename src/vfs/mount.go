package vfs

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/sched"
	"nanokernel/src/ustr"
)

// Mount_t is one mounted filesystem, identified by the absolute path
// at which it is attached (the original's mount_t, minus the block
// device handle this module has no use for: every personality here is
// memory- or device-backed, not disk-backed).
type Mount_t struct {
	Id    int
	Path  ustr.Ustr // mount point, e.g. "/" or "/dev"
	Fs    Filesystem
	Root  *Vnode_t
	Flags int
}

// Mount flags (ELK's vfs_mount.c). Open returns EACCES for an open with
// O_WRONLY, O_RDWR, O_CREAT or O_TRUNC of any vnode on an MNT_RDONLY
// mount; MNT_NOEXEC is recorded on the mount but nothing checks it.
const (
	MNT_RDONLY = 1 << iota
	MNT_NOEXEC
)

// Syncer is implemented by a Filesystem that keeps state worth
// flushing; personalities with nothing to flush (ramfs, devfs) need
// not implement it.
type Syncer interface {
	Sync() defs.Err_t
}

// MountTable_t resolves absolute paths to the mount that owns them by
// longest-prefix match, the flat-namespace simplification of the
// original's per-directory mountpoint flag: this system never nests a
// second mount under a subdirectory that isn't itself a mount point,
// so there's no need to walk the tree component by component to
// detect a crossing.
type MountTable_t struct {
	mu     sync.Mutex
	mounts []*Mount_t
	nextID int
}

// NewMountTable constructs an empty mount table.
func NewMountTable() *MountTable_t {
	return &MountTable_t{}
}

// Mount attaches fs at path, reading its root vnode through cache so
// the root is cached like any other vnode.
func (mt *MountTable_t) Mount(self *sched.Thread, cache *Cache_t, path ustr.Ustr, fs Filesystem, flags ...int) (*Mount_t, defs.Err_t) {
	var fl int
	if len(flags) > 0 {
		fl = flags[0]
	}
	mt.mu.Lock()
	m := &Mount_t{Id: mt.nextID, Path: append(ustr.Ustr{}, path...), Fs: fs, Flags: fl}
	mt.nextID++
	mt.mu.Unlock()

	root, err := cache.Vget(self, m, ustr.MkUstrRoot())
	if err != 0 {
		return nil, err
	}
	m.Root = root
	root.Unlock(self)

	mt.mu.Lock()
	mt.mounts = append(mt.mounts, m)
	mt.mu.Unlock()
	return m, 0
}

// Unmount detaches the mount point exactly at path, returning EBUSY if
// its root vnode has any reference beyond the table's own bookkeeping
// (the in-memory stand-in for the original's vflush-over-mounted-fs
// busy check) and ENOENT if nothing is mounted there.
func (mt *MountTable_t) Unmount(cache *Cache_t, path ustr.Ustr) defs.Err_t {
	mt.mu.Lock()
	idx := -1
	for i, m := range mt.mounts {
		if m.Path.Eq(path) {
			idx = i
			break
		}
	}
	if idx == -1 {
		mt.mu.Unlock()
		return -defs.ENOENT
	}
	m := mt.mounts[idx]
	mt.mu.Unlock()

	if cache.Refcount(m.Root) > 1 {
		return -defs.EBUSY
	}

	mt.mu.Lock()
	mt.mounts = append(mt.mounts[:idx], mt.mounts[idx+1:]...)
	mt.mu.Unlock()
	cache.Vrele(m.Root)
	return 0
}

// Mounts returns a snapshot of every currently mounted filesystem, for
// callers (sync) that need to walk the whole table.
func (mt *MountTable_t) Mounts() []*Mount_t {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]*Mount_t, len(mt.mounts))
	copy(out, mt.mounts)
	return out
}

// Resolve returns the mount owning path (the one whose Path is the
// longest prefix of path) and path rewritten relative to that mount's
// own root.
func (mt *MountTable_t) Resolve(path ustr.Ustr) (*Mount_t, ustr.Ustr) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var best *Mount_t
	for _, m := range mt.mounts {
		if !isPrefix(m.Path, path) {
			continue
		}
		if best == nil || len(m.Path) > len(best.Path) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	var rel ustr.Ustr
	if best.Path.Eq(ustr.MkUstrRoot()) {
		rel = path // the root mount's own paths are already relative to its root
	} else {
		rel = path[len(best.Path):]
	}
	if len(rel) == 0 {
		rel = ustr.MkUstrRoot()
	}
	return best, rel
}

func isPrefix(prefix, path ustr.Ustr) bool {
	if prefix.Eq(ustr.MkUstrRoot()) {
		return true
	}
	if len(path) < len(prefix) {
		return false
	}
	if !path[:len(prefix)].Eq(prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
