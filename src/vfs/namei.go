package vfs

import (
	"nanokernel/src/bpath"
	"nanokernel/src/defs"
	"nanokernel/src/sched"
	"nanokernel/src/ustr"
)

// Namei resolves an absolute, already-canonicalized path to a locked
// vnode (the original's namei, minus symlink handling: this module has
// no symlink-backed filesystem personality).
func Namei(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr) (*Vnode_t, defs.Err_t) {
	mnt, rel := mounts.Resolve(path)
	if mnt == nil {
		return nil, -defs.ENOENT
	}
	return cache.Vget(self, mnt, rel)
}

// LookupParent splits path into its parent directory (returned locked)
// and final component, the shape Create/Remove/Mkdir/Rmdir/Rename need.
func LookupParent(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr) (*Vnode_t, ustr.Ustr, defs.Err_t) {
	comps := bpath.Canonicalize(path).Components()
	if len(comps) == 0 {
		return nil, nil, -defs.EINVAL
	}
	name := comps[len(comps)-1]
	parent, err := Namei(self, cache, mounts, joinComponents(comps[:len(comps)-1]))
	if err != 0 {
		return nil, nil, err
	}
	return parent, name, 0
}

func joinComponents(comps []ustr.Ustr) ustr.Ustr {
	if len(comps) == 0 {
		return ustr.MkUstrRoot()
	}
	out := append(ustr.Ustr{}, comps[0]...)
	for _, c := range comps[1:] {
		out = out.Extend(c)
	}
	return append(ustr.Ustr{'/'}, out...)
}
