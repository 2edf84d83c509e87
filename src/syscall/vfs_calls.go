package syscall

import (
	"nanokernel/src/defs"
	"nanokernel/src/fd"
	"nanokernel/src/fdops"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
	"nanokernel/src/vm"
)

// pathMax bounds a syscall's user-space path string the way
// original_source's getpath() bounds it against PATH_MAX.
const pathMax = 4096

func registerVfsCalls(t *Table_t) {
	t.Register(SYS_OPEN, sysOpen)
	t.Register(SYS_CREAT, sysCreat)
	t.Register(SYS_CLOSE, sysClose)
	t.Register(SYS_READ, sysRead)
	t.Register(SYS_WRITE, sysWrite)
	t.Register(SYS_LSEEK, sysLseek)
	t.Register(SYS_IOCTL, sysIoctl)
	t.Register(SYS_FSTAT, sysFstat)
	t.Register(SYS_STAT, sysStat)
	t.Register(SYS_LSTAT, sysStat)
	t.Register(SYS_GETDENTS, sysGetdents)
	t.Register(SYS_MKDIR, sysMkdir)
	t.Register(SYS_RMDIR, sysRmdir)
	t.Register(SYS_RENAME, sysRename)
	t.Register(SYS_UNLINK, sysUnlink)
	t.Register(SYS_LINK, sysLink)
	t.Register(SYS_ACCESS, sysAccess)
	t.Register(SYS_CHDIR, sysChdir)
	t.Register(SYS_FCHDIR, sysFchdir)
	t.Register(SYS_GETCWD, sysGetcwd)
	t.Register(SYS_TRUNCATE, sysTruncate)
	t.Register(SYS_FTRUNCATE, sysFtruncate)
	t.Register(SYS_FSYNC, sysFsync)
	t.Register(SYS_DUP, sysDup)
	t.Register(SYS_DUP2, sysDup2)
	t.Register(SYS_MKNOD, sysMknod)
}

// userPath reads a NUL-terminated path string from user space and
// resolves it against the calling process's cwd, the way every
// original_source vfs_syscalls.c entry point calls getpath()+ino_getcwd
// before touching the vnode layer.
func userPath(p *Proc_t, uva int) (ustr.Ustr, defs.Err_t) {
	s, err := p.Vm.Userstr(uva, pathMax)
	if err != 0 {
		return nil, err
	}
	p.Cwd.Lock()
	full := p.Cwd.Canonicalpath(s)
	p.Cwd.Unlock()
	return full, 0
}

func sysOpen(p *Proc_t, pathp, flags, mode, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	ops, err := vfs.Open(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path, flags, uint32(mode)&^p.Umask)
	if err != 0 {
		return 0, err
	}
	perms := fd.FD_READ
	if flags&vfs.O_WRONLY != 0 {
		perms = fd.FD_WRITE
	} else if flags&vfs.O_RDWR != 0 {
		perms = fd.FD_READ | fd.FD_WRITE
	}
	f := &fd.Fd_t{Fops: ops, Perms: perms}
	return p.Fdset.Alloc(f, 0), 0
}

func sysCreat(p *Proc_t, pathp, mode, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return sysOpen(p, pathp, vfs.O_WRONLY|vfs.O_CREAT|vfs.O_TRUNC, mode, 0, 0)
}

func sysClose(p *Proc_t, fdno, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if err := p.Fdset.Close(fdno); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysRead(p *Proc_t, fdno, bufp, count, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	buf := make([]byte, count)
	n, err := f.Fops.Read(buf)
	if err != 0 {
		return 0, err
	}
	if err := p.Vm.K2user(buf[:n], bufp); err != 0 {
		return 0, err
	}
	return n, 0
}

func sysWrite(p *Proc_t, fdno, bufp, count, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	buf := make([]byte, count)
	if err := p.Vm.User2k(buf, bufp); err != 0 {
		return 0, err
	}
	n, err := f.Fops.Write(buf)
	if err != 0 {
		return 0, err
	}
	return n, 0
}

func sysLseek(p *Proc_t, fdno, offset, whence, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	return f.Fops.Lseek(offset, whence)
}

func sysIoctl(p *Proc_t, fdno, cmd, arg, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	return f.Fops.Ioctl(uint(cmd), arg)
}

func statToUser(m *vm.Vm_t, st *fdops.Stat_t, ubuf int) defs.Err_t {
	buf := make([]byte, 40)
	putn := func(off int, v int64) {
		for i := 0; i < 8; i++ {
			buf[off+i] = byte(v >> (8 * uint(i)))
		}
	}
	putn(0, int64(st.Inum))
	putn(8, int64(st.Mode))
	putn(16, st.Size)
	putn(24, st.Rdev)
	putn(32, st.Links)
	return m.K2user(buf, ubuf)
}

func sysFstat(p *Proc_t, fdno, ubuf, a3, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	var st fdops.Stat_t
	if err := f.Fops.Fstat(&st); err != 0 {
		return 0, err
	}
	if err := statToUser(p.Vm, &st, ubuf); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysStat(p *Proc_t, pathp, ubuf, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	var st fdops.Stat_t
	if err := vfs.Stat(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path, &st); err != 0 {
		return 0, err
	}
	if err := statToUser(p.Vm, &st, ubuf); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysGetdents(p *Proc_t, fdno, bufp, count, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	written := 0
	for written+64 <= count {
		dent, err := f.Fops.Readdir()
		if err == -defs.ENOENT {
			break
		}
		if err != 0 {
			return 0, err
		}
		rec := make([]byte, 64)
		copy(rec, dent.Name)
		rec[62] = dent.Vtype
		if err := p.Vm.K2user(rec, bufp+written); err != 0 {
			return 0, err
		}
		written += 64
	}
	return written, 0
}

func sysMkdir(p *Proc_t, pathp, mode, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	if err := vfs.Mkdir(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path, uint32(mode)&^p.Umask); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysRmdir(p *Proc_t, pathp, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	if err := vfs.Rmdir(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysRename(p *Proc_t, oldp, newp, a3, a4, a5, a6 int) (int, defs.Err_t) {
	oldpath, err := userPath(p, oldp)
	if err != 0 {
		return 0, err
	}
	newpath, err := userPath(p, newp)
	if err != 0 {
		return 0, err
	}
	if err := vfs.Rename(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, oldpath, newpath); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysUnlink(p *Proc_t, pathp, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	if err := vfs.Remove(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path); err != 0 {
		return 0, err
	}
	return 0, 0
}

// sysLink: this module's VnodeOps has no link operation (every
// filesystem here names a vnode by its single owning path, so a second
// hard link has nowhere to attach), matching spec.md's single-parent
// vnode model.
func sysLink(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	return 0, -defs.EOPNOTSUPP
}

func sysAccess(p *Proc_t, pathp, mode, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	var st fdops.Stat_t
	if err := vfs.Stat(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path, &st); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysChdir(p *Proc_t, pathp, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	vn, err := vfs.Namei(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path)
	if err != 0 {
		return 0, err
	}
	vn.Unlock(p.Thread)
	p.Kernel.Cache.Vrele(vn)
	p.Cwd.Lock()
	p.Cwd.Path = path
	p.Cwd.Unlock()
	return 0, 0
}

func sysFchdir(p *Proc_t, fdno, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	path, err := f.Fops.Fullpath()
	if err != 0 {
		return 0, err
	}
	p.Cwd.Lock()
	p.Cwd.Path = path
	p.Cwd.Unlock()
	return 0, 0
}

func sysGetcwd(p *Proc_t, bufp, size, a3, a4, a5, a6 int) (int, defs.Err_t) {
	p.Cwd.Lock()
	path := append(ustr.Ustr{}, p.Cwd.Path...)
	p.Cwd.Unlock()
	path = append(path, 0)
	if len(path) > size {
		return 0, -defs.ENAMETOOLONG
	}
	if err := p.Vm.K2user(path, bufp); err != 0 {
		return 0, err
	}
	return len(path), 0
}

func sysTruncate(p *Proc_t, pathp, length, a3, a4, a5, a6 int) (int, defs.Err_t) {
	path, err := userPath(p, pathp)
	if err != 0 {
		return 0, err
	}
	ops, err := vfs.Open(p.Thread, p.Kernel.Cache, p.Kernel.Mounts, path, vfs.O_WRONLY, 0)
	if err != 0 {
		return 0, err
	}
	defer ops.Close()
	if err := ops.Truncate(uint(length)); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysFtruncate(p *Proc_t, fdno, length, a3, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	if err := f.Fops.Truncate(uint(length)); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysFsync(p *Proc_t, fdno, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if _, err := p.Fdset.Get(fdno); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysDup(p *Proc_t, fdno, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	f, err := p.Fdset.Get(fdno)
	if err != 0 {
		return 0, err
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return 0, err
	}
	return p.Fdset.Alloc(nf, 0), 0
}

// sysDup2 implements §8's concrete replace-in-place scenario: dup2
// closes whatever already occupies newfd (unless newfd == oldfd, a
// documented no-op) and installs a fresh reference there.
func sysDup2(p *Proc_t, oldfd, newfd, a3, a4, a5, a6 int) (int, defs.Err_t) {
	if oldfd == newfd {
		if _, err := p.Fdset.Get(oldfd); err != 0 {
			return 0, err
		}
		return newfd, 0
	}
	f, err := p.Fdset.Get(oldfd)
	if err != 0 {
		return 0, err
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return 0, err
	}
	if err := p.Fdset.Set(newfd, nf); err != 0 {
		return 0, err
	}
	return newfd, 0
}

func sysMknod(p *Proc_t, pathp, mode, dev, a4, a5, a6 int) (int, defs.Err_t) {
	return 0, -defs.EOPNOTSUPP
}
