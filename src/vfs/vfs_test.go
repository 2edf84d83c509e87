package vfs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/sched"
	"nanokernel/src/timeout"
	"nanokernel/src/timer"
	"nanokernel/src/ustr"
)

func newTestThread(t *testing.T) *sched.Thread {
	src := timer.NewSimSource()
	tq := timeout.New(src)
	s := sched.Init(1, tq)

	ready := make(chan struct{})
	init := s.Bootstrap(func() {
		close(ready)
		<-make(chan struct{})
	})
	require.Eventually(t, func() bool {
		select {
		case <-ready:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	return init
}

// memFs is a minimal in-memory filesystem used only to exercise the
// vnode cache/lock/mount/namei machinery; the real personalities live
// under src/fs.
type memFs struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
}

func newMemFs() *memFs {
	return &memFs{
		dirs:  map[string]bool{"/": true},
		files: map[string][]byte{},
	}
}

func (fs *memFs) VGet(vp *Vnode_t) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := vp.Path.String()
	if fs.dirs[p] {
		vp.Vtype = VDIR
		vp.Ops = fs
		return 0
	}
	if _, ok := fs.files[p]; ok {
		vp.Vtype = VREG
		vp.Ops = fs
		return 0
	}
	return -defs.ENOENT
}

func (fs *memFs) Open(vp *Vnode_t, flags int) defs.Err_t { return 0 }
func (fs *memFs) Close(vp *Vnode_t) defs.Err_t           { return 0 }

func (fs *memFs) Read(vp *Vnode_t, dst []uint8, offset int64) (int, defs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data := fs.files[vp.Path.String()]
	if offset >= int64(len(data)) {
		return 0, 0
	}
	n := copy(dst, data[offset:])
	return n, 0
}

func (fs *memFs) Write(vp *Vnode_t, src []uint8, offset int64) (int, defs.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := vp.Path.String()
	data := fs.files[p]
	end := offset + int64(len(src))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], src)
	fs.files[p] = data
	return len(src), 0
}

func (fs *memFs) Create(dvp *Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := dvp.Path.Extend(name).String()
	if _, ok := fs.files[p]; ok {
		return -defs.EEXIST
	}
	fs.files[p] = nil
	return 0
}

func (fs *memFs) Remove(dvp *Vnode_t, name ustr.Ustr) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := dvp.Path.Extend(name).String()
	if _, ok := fs.files[p]; !ok {
		return -defs.ENOENT
	}
	delete(fs.files, p)
	return 0
}

func (fs *memFs) Rename(dvp *Vnode_t, name ustr.Ustr, tdvp *Vnode_t, tname ustr.Ustr) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op := dvp.Path.Extend(name).String()
	np := tdvp.Path.Extend(tname).String()
	data, ok := fs.files[op]
	if !ok {
		return -defs.ENOENT
	}
	fs.files[np] = data
	delete(fs.files, op)
	return 0
}

func (fs *memFs) Mkdir(dvp *Vnode_t, name ustr.Ustr, mode uint32) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := dvp.Path.Extend(name).String()
	if fs.dirs[p] {
		return -defs.EEXIST
	}
	fs.dirs[p] = true
	return 0
}

func (fs *memFs) Rmdir(dvp *Vnode_t, name ustr.Ustr) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := dvp.Path.Extend(name).String()
	if !fs.dirs[p] {
		return -defs.ENOENT
	}
	delete(fs.dirs, p)
	return 0
}

func (fs *memFs) Readdir(vp *Vnode_t, idx int) (fdops.Dirent_t, defs.Err_t) {
	return fdops.Dirent_t{}, -defs.ENOSYS
}

func (fs *memFs) Getattr(vp *Vnode_t, st *fdops.Stat_t) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	st.Size = int64(len(fs.files[vp.Path.String()]))
	return 0
}

func (fs *memFs) Setattr(vp *Vnode_t, st *fdops.Stat_t) defs.Err_t { return 0 }

func (fs *memFs) Truncate(vp *Vnode_t, size int64) defs.Err_t {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p := vp.Path.String()
	data := fs.files[p]
	if int64(len(data)) > size {
		fs.files[p] = data[:size]
	}
	return 0
}

func (fs *memFs) Fsync(vp *Vnode_t) defs.Err_t { return 0 }
func (fs *memFs) Inactive(vp *Vnode_t)         {}

func newTestMount(t *testing.T) (*sched.Thread, *Cache_t, *MountTable_t) {
	self := newTestThread(t)
	cache := NewCache()
	mounts := NewMountTable()
	_, err := mounts.Mount(self, cache, ustr.MkUstrRoot(), newMemFs())
	require.EqualValues(t, 0, err)
	return self, cache, mounts
}

// TestVnodeCacheSharesOneInstance covers §8 property 7: two lookups of
// the same path return the same vnode, each contributing one refcnt.
func TestVnodeCacheSharesOneInstance(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	require.EqualValues(t, 0, Mkdir(self, cache, mounts, ustr.Ustr("/etc"), 0755))

	v1, err := Namei(self, cache, mounts, ustr.Ustr("/etc"))
	require.EqualValues(t, 0, err)
	v1.Unlock(self) // release the shared hold, keep only the reference

	v2, err := Namei(self, cache, mounts, ustr.Ustr("/etc"))
	require.EqualValues(t, 0, err)
	v2.Unlock(self)

	assert.Same(t, v1, v2)
	assert.EqualValues(t, 2, v1.refcnt)

	v1.Lock(self, LK_SHARED) // Vput, like the original's vput, requires vp locked
	cache.Vput(self, v1)
	assert.EqualValues(t, 1, v2.refcnt)

	v2.Lock(self, LK_SHARED)
	cache.Vput(self, v2)
	assert.EqualValues(t, 0, v2.refcnt)

	_, ok := cache.table.Get(key(mounts.mounts[0], ustr.Ustr("/etc")))
	assert.False(t, ok, "vnode evicted once its last reference drops")
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	f, err := Open(self, cache, mounts, ustr.Ustr("/greeting"), O_CREAT|O_RDWR, 0644)
	require.EqualValues(t, 0, err)

	n, werr := f.Write([]byte("hello!"))
	require.EqualValues(t, 0, werr)
	assert.Equal(t, 6, n)

	_, serr := f.Lseek(0, SEEK_SET)
	require.EqualValues(t, 0, serr)

	buf := make([]byte, 32)
	n, rerr := f.Read(buf)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "hello!", string(buf[:n]))

	var st fdops.Stat_t
	require.EqualValues(t, 0, f.Fstat(&st))
	assert.EqualValues(t, 6, st.Size)

	require.EqualValues(t, 0, f.Close())
}

func TestOpenMissingWithoutCreateFails(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	_, err := Open(self, cache, mounts, ustr.Ustr("/nope"), O_RDONLY, 0)
	assert.EqualValues(t, -defs.ENOENT, err)
}

func TestOpenExclCreateConflictsWithExisting(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	f, err := Open(self, cache, mounts, ustr.Ustr("/x"), O_CREAT|O_RDWR, 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, f.Close())

	_, err = Open(self, cache, mounts, ustr.Ustr("/x"), O_CREAT|O_EXCL|O_RDWR, 0644)
	assert.EqualValues(t, -defs.EEXIST, err)
}

// TestMkdirRenameRemoveScenario exercises the mkdir/creat/rename/
// readdir concrete scenario's non-readdir half.
func TestMkdirRenameRemoveScenario(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	require.EqualValues(t, 0, Mkdir(self, cache, mounts, ustr.Ustr("/d"), 0755))

	f, err := Open(self, cache, mounts, ustr.Ustr("/d/a"), O_CREAT|O_RDWR, 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, f.Close())

	require.EqualValues(t, 0, Rename(self, cache, mounts, ustr.Ustr("/d/a"), ustr.Ustr("/d/b")))

	var st fdops.Stat_t
	assert.EqualValues(t, -defs.ENOENT, Stat(self, cache, mounts, ustr.Ustr("/d/a"), &st))
	assert.EqualValues(t, 0, Stat(self, cache, mounts, ustr.Ustr("/d/b"), &st))

	require.EqualValues(t, 0, Remove(self, cache, mounts, ustr.Ustr("/d/b")))
	require.EqualValues(t, 0, Rmdir(self, cache, mounts, ustr.Ustr("/d")))
}

func TestMountResolveLongestPrefix(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	_, err := mounts.Mount(self, cache, ustr.Ustr("/dev"), newMemFs())
	require.EqualValues(t, 0, err)

	m, rel := mounts.Resolve(ustr.Ustr("/dev/tty"))
	assert.Equal(t, "/tty", rel.String())
	assert.NotSame(t, mounts.mounts[0], m)

	m, rel = mounts.Resolve(ustr.Ustr("/devish/x"))
	assert.Same(t, mounts.mounts[0], m, "must not false-match a sibling name sharing a prefix")
	assert.Equal(t, "/devish/x", rel.String())
}
