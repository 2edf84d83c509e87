package vfs

import (
	"nanokernel/src/bpath"
	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/sched"
	"nanokernel/src/ustr"
)

// Mkdir creates a directory at path.
func Mkdir(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr, mode uint32) defs.Err_t {
	dvp, name, err := LookupParent(self, cache, mounts, path)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, dvp)
	return dvp.Ops.Mkdir(dvp, name, mode)
}

// Rmdir removes the empty directory at path.
func Rmdir(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr) defs.Err_t {
	dvp, name, err := LookupParent(self, cache, mounts, path)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, dvp)
	return dvp.Ops.Rmdir(dvp, name)
}

// Remove unlinks the non-directory file at path.
func Remove(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr) defs.Err_t {
	dvp, name, err := LookupParent(self, cache, mounts, path)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, dvp)
	return dvp.Ops.Remove(dvp, name)
}

// Rename moves oldpath to newpath, which must live in filesystems
// backed by the same Filesystem implementation (cross-filesystem
// rename is a Non-goal, matching the original's single-vfsops
// VOP_RENAME contract).
func Rename(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, oldpath, newpath ustr.Ustr) defs.Err_t {
	odvp, oname, err := LookupParent(self, cache, mounts, oldpath)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, odvp)

	// A same-directory rename must not take a second independent
	// reference+lock on the parent: vput's lock upgrade assumes the
	// caller holds exactly one of the vnode's locks, and a second
	// concurrent hold from this same goroutine would self-deadlock it.
	if bpath.Canonicalize(parentOf(oldpath)).Eq(bpath.Canonicalize(parentOf(newpath))) {
		nname := bpath.Canonicalize(newpath).Components()
		return odvp.Ops.Rename(odvp, oname, odvp, nname[len(nname)-1])
	}

	ndvp, nname, err := LookupParent(self, cache, mounts, newpath)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, ndvp)

	return odvp.Ops.Rename(odvp, oname, ndvp, nname)
}

func parentOf(path ustr.Ustr) ustr.Ustr {
	comps := bpath.Canonicalize(path).Components()
	if len(comps) == 0 {
		return ustr.MkUstrRoot()
	}
	return joinComponents(comps[:len(comps)-1])
}

// Stat resolves path and fills st, without requiring an open file
// descriptor.
func Stat(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr, st *fdops.Stat_t) defs.Err_t {
	vp, err := Namei(self, cache, mounts, path)
	if err != 0 {
		return err
	}
	defer cache.Vput(self, vp)
	return vp.Getattr(st)
}
