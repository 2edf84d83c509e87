package vfs

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/sched"
	"nanokernel/src/ustr"
)

// Open flags (§4.7/§4.8), Linux x86-64 numbering to match defs.Err_t's
// own ABI-compatible numbering.
const (
	O_RDONLY    = 0x0
	O_WRONLY    = 0x1
	O_RDWR      = 0x2
	O_CREAT     = 0x40
	O_EXCL      = 0x80
	O_TRUNC     = 0x200
	O_APPEND    = 0x400
	O_DIRECTORY = 0x10000
)

// Seek whence values.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// vnodeFile adapts a locked-on-open vnode reference into fdops.Fdops_i,
// carrying the cursor and access mode an Fd_t's backing object needs
// but a bare Vnode_t doesn't track.
type vnodeFile struct {
	mu     sync.Mutex
	vp     *Vnode_t
	cache  *Cache_t
	mounts *MountTable_t
	self   *sched.Thread
	offset int64
	flags  int
	// dups counts outstanding fd.Fd_t values sharing this *vnodeFile
	// (fd.Copyfd aliases the same Fops value rather than cloning it, so
	// Close must only release the vnode once the last alias is gone).
	dups int32
}

// Open resolves path (O_CREAT: creating it in its parent directory if
// missing) and returns an Fdops_i wrapping the resulting vnode.
func Open(self *sched.Thread, cache *Cache_t, mounts *MountTable_t, path ustr.Ustr, flags int, mode uint32) (fdops.Fdops_i, defs.Err_t) {
	vp, err := Namei(self, cache, mounts, path)
	if err == 0 && flags&(O_CREAT|O_EXCL) == (O_CREAT|O_EXCL) {
		cache.Vput(self, vp)
		return nil, -defs.EEXIST
	}
	if err == -defs.ENOENT && flags&O_CREAT != 0 {
		dvp, name, perr := LookupParent(self, cache, mounts, path)
		if perr != 0 {
			return nil, perr
		}
		cerr := dvp.Ops.Create(dvp, name, mode)
		cache.Vput(self, dvp)
		if cerr != 0 && cerr != -defs.EEXIST {
			return nil, cerr
		}
		if cerr == -defs.EEXIST && flags&O_EXCL != 0 {
			return nil, -defs.EEXIST
		}
		vp, err = Namei(self, cache, mounts, path)
	}
	if err != 0 {
		return nil, err
	}
	if vp.Vtype == VDIR && flags&(O_WRONLY|O_RDWR) != 0 {
		cache.Vput(self, vp)
		return nil, -defs.EISDIR
	}
	if flags&O_DIRECTORY != 0 && vp.Vtype != VDIR {
		cache.Vput(self, vp)
		return nil, -defs.ENOTDIR
	}
	if vp.Mount != nil && vp.Mount.Flags&MNT_RDONLY != 0 && flags&(O_WRONLY|O_RDWR|O_CREAT|O_TRUNC) != 0 {
		cache.Vput(self, vp)
		return nil, -defs.EACCES
	}
	if oerr := vp.Ops.Open(vp, flags); oerr != 0 {
		cache.Vput(self, vp)
		return nil, oerr
	}
	vp.Unlock(self)

	if flags&O_TRUNC != 0 && vp.Vtype == VREG {
		if terr := vp.Truncate(0); terr != 0 {
			cache.Vput(self, vp)
			return nil, terr
		}
	}

	f := &vnodeFile{vp: vp, cache: cache, mounts: mounts, self: self, flags: flags}
	if flags&O_APPEND != 0 {
		var st fdops.Stat_t
		vp.Getattr(&st)
		f.offset = st.Size
	}
	return f, 0
}

func (f *vnodeFile) Close() defs.Err_t {
	f.mu.Lock()
	if f.dups > 0 {
		f.dups--
		f.mu.Unlock()
		return 0
	}
	f.mu.Unlock()

	cerr := f.vp.Ops.Close(f.vp)
	f.vp.Lock(f.self, LK_SHARED) // Vput requires the vnode locked by self
	f.cache.Vput(f.self, f.vp)
	return cerr
}

func (f *vnodeFile) Read(dst []uint8) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.vp.Ops.Read(f.vp, dst, f.offset)
	if err == 0 {
		f.offset += int64(n)
	}
	return n, err
}

func (f *vnodeFile) Write(src []uint8) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flags&O_APPEND != 0 {
		var st fdops.Stat_t
		f.vp.Getattr(&st)
		f.offset = st.Size
	}
	n, err := f.vp.Ops.Write(f.vp, src, f.offset)
	if err == 0 {
		f.offset += int64(n)
	}
	return n, err
}

func (f *vnodeFile) Pread(dst []uint8, offset int) (int, defs.Err_t) {
	return f.vp.Ops.Read(f.vp, dst, int64(offset))
}

func (f *vnodeFile) Pwrite(src []uint8, offset int) (int, defs.Err_t) {
	return f.vp.Ops.Write(f.vp, src, int64(offset))
}

func (f *vnodeFile) Lseek(offset int, whence int) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch whence {
	case SEEK_SET:
		f.offset = int64(offset)
	case SEEK_CUR:
		f.offset += int64(offset)
	case SEEK_END:
		var st fdops.Stat_t
		f.vp.Getattr(&st)
		f.offset = st.Size + int64(offset)
	default:
		return 0, -defs.EINVAL
	}
	if f.offset < 0 {
		return 0, -defs.EINVAL
	}
	return int(f.offset), 0
}

func (f *vnodeFile) Fstat(st *fdops.Stat_t) defs.Err_t {
	return f.vp.Getattr(st)
}

func (f *vnodeFile) Ioctl(cmd uint, arg int) (int, defs.Err_t) {
	return 0, -defs.ENOTTY
}

func (f *vnodeFile) Readdir() (fdops.Dirent_t, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.vp.Ops.Readdir(f.vp, int(f.offset))
	if err == 0 {
		f.offset++
	}
	return d, err
}

func (f *vnodeFile) Reopen() defs.Err_t {
	f.mu.Lock()
	f.dups++
	f.mu.Unlock()
	return 0
}

func (f *vnodeFile) Truncate(newlen uint) defs.Err_t {
	return f.vp.Truncate(int64(newlen))
}

func (f *vnodeFile) Fullpath() (ustr.Ustr, defs.Err_t) {
	return f.vp.Path, 0
}
