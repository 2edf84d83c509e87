package ramfs

import (
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
	"nanokernel/src/vfs"
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

func newTestMount(t *testing.T) (*sched.Thread, *vfs.Cache_t, *vfs.MountTable_t) {
	self := newTestThread(t)
	cache := vfs.NewCache()
	mounts := vfs.NewMountTable()
	_, err := mounts.Mount(self, cache, ustr.MkUstrRoot(), New())
	require.EqualValues(t, 0, err)
	return self, cache, mounts
}

// TestRamfsOpenWriteReadClose covers §8 property 8: an open/write/
// read/close round trip against a freshly mounted ramfs.
func TestRamfsOpenWriteReadClose(t *testing.T) {
	self, cache, mounts := newTestMount(t)

	f, err := vfs.Open(self, cache, mounts, ustr.Ustr("/greeting"), vfs.O_CREAT|vfs.O_RDWR, 0644)
	require.EqualValues(t, 0, err)

	n, werr := f.Write([]byte("hello!"))
	require.EqualValues(t, 0, werr)
	assert.Equal(t, 6, n)

	_, serr := f.Lseek(0, vfs.SEEK_SET)
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

// TestMkdirCreatRenameReaddir exercises the mkdir/creat/rename/readdir
// concrete scenario end to end against ramfs.
func TestMkdirCreatRenameReaddir(t *testing.T) {
	self, cache, mounts := newTestMount(t)

	require.EqualValues(t, 0, vfs.Mkdir(self, cache, mounts, ustr.Ustr("/d"), 0755))

	f, err := vfs.Open(self, cache, mounts, ustr.Ustr("/d/a"), vfs.O_CREAT|vfs.O_RDWR, 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, f.Close())

	require.EqualValues(t, 0, vfs.Rename(self, cache, mounts, ustr.Ustr("/d/a"), ustr.Ustr("/d/b")))

	df, err := vfs.Open(self, cache, mounts, ustr.Ustr("/d"), vfs.O_RDONLY|vfs.O_DIRECTORY, 0)
	require.EqualValues(t, 0, err)

	var names []string
	for {
		ent, derr := df.Readdir()
		if derr != 0 {
			break
		}
		names = append(names, ent.Name.String())
	}
	require.EqualValues(t, 0, df.Close())
	assert.Contains(t, names, "b")
	assert.NotContains(t, names, "a")

	require.EqualValues(t, 0, vfs.Remove(self, cache, mounts, ustr.Ustr("/d/b")))
	require.EqualValues(t, 0, vfs.Rmdir(self, cache, mounts, ustr.Ustr("/d")))
}

func TestRmdirRefusesNonEmptyDirectory(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	require.EqualValues(t, 0, vfs.Mkdir(self, cache, mounts, ustr.Ustr("/d"), 0755))
	f, err := vfs.Open(self, cache, mounts, ustr.Ustr("/d/a"), vfs.O_CREAT|vfs.O_RDWR, 0644)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, f.Close())

	assert.EqualValues(t, -defs.ENOTEMPTY, vfs.Rmdir(self, cache, mounts, ustr.Ustr("/d")))
}

func TestTruncateShrinksAndGrows(t *testing.T) {
	self, cache, mounts := newTestMount(t)
	f, err := vfs.Open(self, cache, mounts, ustr.Ustr("/f"), vfs.O_CREAT|vfs.O_RDWR, 0644)
	require.EqualValues(t, 0, err)
	_, werr := f.Write([]byte("0123456789"))
	require.EqualValues(t, 0, werr)

	require.EqualValues(t, 0, f.Truncate(4))
	var st fdops.Stat_t
	require.EqualValues(t, 0, f.Fstat(&st))
	assert.EqualValues(t, 4, st.Size)

	require.EqualValues(t, 0, f.Truncate(8))
	require.EqualValues(t, 0, f.Fstat(&st))
	assert.EqualValues(t, 8, st.Size)

	require.EqualValues(t, 0, f.Close())
}
