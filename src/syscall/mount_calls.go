package syscall

import (
	"nanokernel/src/defs"
	"nanokernel/src/vfs"
)

func registerMountCalls(t *Table_t) {
	t.Register(SYS_MOUNT, sysMount)
	t.Register(SYS_UMOUNT2, sysUmount2)
	t.Register(SYS_SYNC, sysSync)
	t.Register(SYS_CHROOT, sysChroot)
}

// sysMount only attaches filesystems already registered in the
// process's world by name — spec.md's Non-goals exclude a block
// device layer, so there is no source path to open and probe a
// superblock from; the fstype string instead looks up a Filesystem
// instance registered at boot (see registerFilesystem).
func sysMount(p *Proc_t, sourcep, targetp, fstypep, flags, a5, a6 int) (int, defs.Err_t) {
	target, err := userPath(p, targetp)
	if err != 0 {
		return 0, err
	}
	fstype, err := p.Vm.Userstr(fstypep, 256)
	if err != 0 {
		return 0, err
	}
	fs, ok := lookupFilesystem(string(fstype))
	if !ok {
		return 0, -defs.EINVAL
	}
	if _, err := p.Kernel.Mounts.Mount(p.Thread, p.Kernel.Cache, target, fs, flags&(vfs.MNT_RDONLY|vfs.MNT_NOEXEC)); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysUmount2(p *Proc_t, targetp, flags, a3, a4, a5, a6 int) (int, defs.Err_t) {
	target, err := userPath(p, targetp)
	if err != 0 {
		return 0, err
	}
	if err := p.Kernel.Mounts.Unmount(p.Kernel.Cache, target); err != 0 {
		return 0, err
	}
	return 0, 0
}

// sysSync walks the mount table and flushes every mounted filesystem
// that has anything worth flushing; ramfs/devfs keep no dirty state so
// they simply don't implement vfs.Syncer.
func sysSync(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	for _, m := range p.Kernel.Mounts.Mounts() {
		if s, ok := m.Fs.(vfs.Syncer); ok {
			if err := s.Sync(); err != 0 {
				return 0, err
			}
		}
	}
	return 0, 0
}

// sysChroot has no distinct root to change: Proc_t resolves every path
// through the single system-wide mount table rather than a
// per-process root pointer, so there is nowhere for a changed root to
// be recorded without widening Proc_t's path-resolution contract,
// which this core does not yet need.
func sysChroot(p *Proc_t, pathp, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return 0, -defs.EOPNOTSUPP
}

var (
	fsRegistry = map[string]vfs.Filesystem{}
)

// registerFilesystem makes fs mountable under sysMount's fstype
// argument by name — called by src/boot once per personality under
// src/fs, not by any syscall itself.
func registerFilesystem(name string, fs vfs.Filesystem) {
	fsRegistry[name] = fs
}

// RegisterFilesystem is registerFilesystem's exported form, for
// src/boot to call directly during Bringup.
func RegisterFilesystem(name string, fs vfs.Filesystem) {
	registerFilesystem(name, fs)
}

func lookupFilesystem(name string) (vfs.Filesystem, bool) {
	fs, ok := fsRegistry[name]
	return fs, ok
}
