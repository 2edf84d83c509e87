package vfs

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/hashtable"
	"nanokernel/src/sched"
	"nanokernel/src/ustr"
)

// Cache_t is the system-wide vnode table: every active vnode is
// indexed by (mount, path) so repeated lookups of the same file share
// one Vnode_t rather than allocating a fresh one. Grounded on
// vfs_vnode.c's vnode_table/anon_vnodes plus their shared vnode_lock;
// the hash table itself is this module's src/hashtable, which already
// carries a MountPath key type built for exactly this use.
type Cache_t struct {
	mu    sync.Mutex // the original's global vnode_lock: refcnt + table membership
	table *hashtable.Hashtable_t
	anon  []*Vnode_t
}

// NewCache constructs an empty vnode cache.
func NewCache() *Cache_t {
	return &Cache_t{table: hashtable.MkHash(32)}
}

func key(mnt *Mount_t, path ustr.Ustr) hashtable.MountPath {
	id := -1
	if mnt != nil {
		id = mnt.Id
	}
	return hashtable.MountPath{Mount: id, Path: path.String()}
}

// Vget returns the vnode for (mnt, path), locked shared (§8 property
// 7: every live reference corresponds to exactly one refcnt unit).
// If no cached vnode exists yet, one is allocated and mnt.Fs.VGet is
// asked to populate it; mnt == nil allocates an anonymous vnode (a
// freshly created, not-yet-linked file) instead.
func (c *Cache_t) Vget(self *sched.Thread, mnt *Mount_t, path ustr.Ustr) (*Vnode_t, defs.Err_t) {
	c.mu.Lock()
	if mnt != nil {
		if v, ok := c.table.Get(key(mnt, path)); ok {
			vp := v.(*Vnode_t)
			vp.refcnt++
			c.mu.Unlock()
			vp.Lock(self, LK_SHARED)
			return vp, 0
		}
	}
	c.mu.Unlock()

	vp := newVnode(mnt, path)
	if mnt != nil {
		if err := mnt.Fs.VGet(vp); err != 0 {
			return nil, err
		}
	}
	vp.Lock(self, LK_SHARED)

	c.mu.Lock()
	if mnt != nil {
		c.table.Set(key(mnt, path), vp)
	} else {
		c.anon = append(c.anon, vp)
	}
	c.mu.Unlock()
	return vp, 0
}

// Vbind links a previously anonymous vnode into the cache under mount
// mnt and path, used when a file created without a name (e.g. O_TMPFILE
// semantics) is later given one, or when Create/Mkdir allocate a
// vnode for a name that didn't exist a moment ago.
func (c *Cache_t) Vbind(self *sched.Thread, vp *Vnode_t, mnt *Mount_t, path ustr.Ustr) {
	vp.LockRW(self)
	vp.Mount = mnt
	vp.Path = append(ustr.Ustr{}, path...)

	c.mu.Lock()
	for i, a := range c.anon {
		if a == vp {
			c.anon = append(c.anon[:i], c.anon[i+1:]...)
			break
		}
	}
	c.table.Set(key(mnt, path), vp)
	c.mu.Unlock()

	vp.Unlock(self)
}

// Vref adds a reference to an already-active vnode without locking it,
// used when a caller already holds one reference and needs a second
// independent one to hand off (e.g. dup'ing an open file descriptor).
func (c *Cache_t) Vref(vp *Vnode_t) {
	c.mu.Lock()
	vp.refcnt++
	c.mu.Unlock()
}

// Refcount reports vp's current reference count, for callers (unmount)
// that need to know whether anything besides the mount table itself is
// still holding the vnode.
func (c *Cache_t) Refcount(vp *Vnode_t) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return vp.refcnt
}

// Vput releases a locked reference to vp, unlocking it; if this was
// the last reference the vnode is evicted from the cache and its
// filesystem-private state released via Inactive.
func (c *Cache_t) Vput(self *sched.Thread, vp *Vnode_t) {
	vp.LockRW(self)
	c.mu.Lock()
	vp.refcnt--
	last := vp.refcnt == 0
	if last {
		c.remove(vp)
	}
	c.mu.Unlock()
	if last {
		vp.Ops.Inactive(vp)
	}
	vp.Unlock(self)
}

// Vrele is Vput's unlocked counterpart, for references taken via Vref
// rather than Vget — the caller never held vp's lock to begin with.
func (c *Cache_t) Vrele(vp *Vnode_t) {
	c.mu.Lock()
	vp.refcnt--
	last := vp.refcnt == 0
	if last {
		c.remove(vp)
	}
	c.mu.Unlock()
	if last {
		vp.Ops.Inactive(vp)
	}
}

func (c *Cache_t) remove(vp *Vnode_t) {
	if vp.Mount != nil {
		c.table.Del(key(vp.Mount, vp.Path))
		return
	}
	for i, a := range c.anon {
		if a == vp {
			c.anon = append(c.anon[:i], c.anon[i+1:]...)
			return
		}
	}
}
