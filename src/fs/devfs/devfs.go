// Package devfs implements the device filesystem personality of §6:
// a single flat directory whose entries are exactly whatever is
// currently registered in src/driver, with no on-disk or in-memory
// state of its own. Grounded on original_source's devfs_vnops.c,
// translating its device_lookup/device_open/device_info calls onto
// src/driver's registry.
package devfs

import (
	"nanokernel/src/defs"
	"nanokernel/src/driver"
	"nanokernel/src/fdops"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
)

// Devfs_t is stateless: every lookup and readdir call goes straight to
// the driver registry, so one value can back any number of mounts.
type Devfs_t struct{}

func New() *Devfs_t { return &Devfs_t{} }

// VGet resolves vp.Path against the driver registry. The root path is
// always a directory; any other path must name exactly one registered,
// non-protected device, the counterpart of devfs_lookup.
func (fs *Devfs_t) VGet(vp *vfs.Vnode_t) defs.Err_t {
	if vp.Path.Eq(ustr.MkUstrRoot()) {
		vp.Vtype = vfs.VDIR
		vp.Ops = fs
		return 0
	}

	name := deviceName(vp.Path)
	dev, err := driver.Lookup(name)
	if err != 0 {
		return -defs.ENOENT
	}
	if dev.Flags&driver.D_PROT != 0 {
		return -defs.ENOENT
	}

	if dev.Flags&driver.D_CHR != 0 {
		vp.Vtype = vfs.VCHR
	} else {
		vp.Vtype = vfs.VBLK
	}
	vp.Ops = fs
	vp.Data = dev
	return 0
}

func deviceName(path ustr.Ustr) string {
	comps := path.Components()
	if len(comps) == 0 {
		return ""
	}
	return comps[0].String()
}

// Open performs the actual device_open, replacing the unopened Device_t
// VGet stashed in vp.Data with the reference-counted, driver-Open'd
// one. The root directory itself needs no device and opens trivially.
func (fs *Devfs_t) Open(vp *vfs.Vnode_t, flags int) defs.Err_t {
	if vp.Vtype == vfs.VDIR {
		return 0
	}
	dev := vp.Data.(*driver.Device_t)
	opened, err := driver.Open(dev.Name, flags&0x3)
	if err != 0 {
		return err
	}
	vp.Data = opened
	return 0
}

func (fs *Devfs_t) Close(vp *vfs.Vnode_t) defs.Err_t {
	if vp.Vtype == vfs.VDIR {
		return 0
	}
	return vp.Data.(*driver.Device_t).Close()
}

func (fs *Devfs_t) Read(vp *vfs.Vnode_t, dst []uint8, offset int64) (int, defs.Err_t) {
	return vp.Data.(*driver.Device_t).Read(dst, offset)
}

func (fs *Devfs_t) Write(vp *vfs.Vnode_t, src []uint8, offset int64) (int, defs.Err_t) {
	return vp.Data.(*driver.Device_t).Write(src, offset)
}

func (fs *Devfs_t) Create(dvp *vfs.Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	return -defs.EINVAL
}

func (fs *Devfs_t) Remove(dvp *vfs.Vnode_t, name ustr.Ustr) defs.Err_t { return -defs.EINVAL }

func (fs *Devfs_t) Rename(dvp *vfs.Vnode_t, name ustr.Ustr, tdvp *vfs.Vnode_t, tname ustr.Ustr) defs.Err_t {
	return -defs.EINVAL
}

func (fs *Devfs_t) Mkdir(dvp *vfs.Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	return -defs.EINVAL
}

func (fs *Devfs_t) Rmdir(dvp *vfs.Vnode_t, name ustr.Ustr) defs.Err_t { return -defs.EINVAL }

// Readdir enumerates the driver registry directly rather than any list
// devfs keeps itself, the counterpart of devfs_readdir's device_info
// cookie walk.
func (fs *Devfs_t) Readdir(vp *vfs.Vnode_t, idx int) (fdops.Dirent_t, defs.Err_t) {
	switch idx {
	case 0:
		return fdops.Dirent_t{Name: ustr.MkUstrDot(), Vtype: vfs.VDIR}, 0
	case 1:
		return fdops.Dirent_t{Name: ustr.DotDot, Vtype: vfs.VDIR}, 0
	}
	devs := driver.Devices()
	i := idx - 2
	for _, d := range devs {
		if d.Flags&driver.D_PROT != 0 {
			continue
		}
		if i == 0 {
			vtype := uint8(vfs.VBLK)
			if d.Flags&driver.D_CHR != 0 {
				vtype = vfs.VCHR
			}
			return fdops.Dirent_t{Name: ustr.Ustr(d.Name), Vtype: vtype}, 0
		}
		i--
	}
	return fdops.Dirent_t{}, -defs.ENOENT
}

func (fs *Devfs_t) Getattr(vp *vfs.Vnode_t, st *fdops.Stat_t) defs.Err_t { return 0 }
func (fs *Devfs_t) Setattr(vp *vfs.Vnode_t, st *fdops.Stat_t) defs.Err_t { return 0 }
func (fs *Devfs_t) Truncate(vp *vfs.Vnode_t, size int64) defs.Err_t     { return -defs.EINVAL }
func (fs *Devfs_t) Fsync(vp *vfs.Vnode_t) defs.Err_t                   { return 0 }
func (fs *Devfs_t) Inactive(vp *vfs.Vnode_t)                           {}
