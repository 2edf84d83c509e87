package syscall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/defs"
	"nanokernel/src/fdops"
	"nanokernel/src/fs/ramfs"
	"nanokernel/src/mem"
	"nanokernel/src/sched"
	"nanokernel/src/timeout"
	"nanokernel/src/timer"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
	"nanokernel/src/vm"
)

// newTestKernel wires a Kernel_t the way cmd/kernel's boot harness
// would, mounting ramfs at "/" and reserving tid 1 as the init
// process, then blocks that process's goroutine forever so the test
// drives every further syscall itself via the returned Proc_t.
func newTestKernel(t *testing.T) (*Kernel_t, *Proc_t) {
	src := timer.NewSimSource()
	tq := timeout.New(src)
	s := sched.Init(1, tq)
	pages := mem.NewPageAlloc(16 * 1024 * 1024)
	k := NewKernel(s, tq, pages)

	ready := make(chan struct{})
	p := k.Bootstrap(vm.NewSoftMMU(), nil, func(p *Proc_t) {
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

	_, err := k.Mounts.Mount(p.Thread, k.Cache, ustr.MkUstrRoot(), ramfs.New())
	require.EqualValues(t, 0, err)
	return k, p
}

func TestBrkGrowsMonotonically(t *testing.T) {
	_, p := newTestKernel(t)

	cur, err := sysBrk(p, 0, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.EqualValues(t, cur, p.brkEnd)

	grown, err := sysBrk(p, cur+8192, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.EqualValues(t, cur+8192, grown)

	// querying again must not move the break
	again, err := sysBrk(p, 0, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.EqualValues(t, grown, again)
}

func TestMmapAnonZeroFillWriteMunmap(t *testing.T) {
	_, p := newTestKernel(t)

	va, err := sysMmap(p, 0, 8192, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	v, err := p.Vm.Userreadn(va, 1)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0, v, "anonymous mappings must be zero-filled")

	require.EqualValues(t, 0, p.Vm.Userwriten(va, 1, 0x7))
	v, err = p.Vm.Userreadn(va, 1)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0x7, v)

	_, err = sysMunmap(p, va, 8192, 0, 0, 0, 0)
	assert.EqualValues(t, 0, err)
}

func TestDup2ReplacesInPlace(t *testing.T) {
	_, p := newTestKernel(t)

	scratch, err := sysMmap(p, 0, 4096, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	pathBuf := []byte("/hello\x00")
	require.EqualValues(t, 0, p.Vm.K2user(pathBuf, scratch))
	fd1, err := sysOpen(p, scratch, vfs.O_RDWR|vfs.O_CREAT, 0644, 0, 0, 0)
	require.EqualValues(t, 0, err)

	other := []byte("/other\x00")
	require.EqualValues(t, 0, p.Vm.K2user(other, scratch+64))
	fd2, err := sysOpen(p, scratch+64, vfs.O_RDWR|vfs.O_CREAT, 0644, 0, 0, 0)
	require.EqualValues(t, 0, err)
	require.NotEqual(t, fd1, fd2)

	newfd, err := sysDup2(p, fd1, fd2, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.Equal(t, fd2, newfd)

	// fd2 now aliases fd1's file; closing fd1 must not affect fd2
	_, err = sysClose(p, fd1, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	_, err = sysWrite(p, fd2, scratch+128, 0, 0, 0, 0)
	assert.EqualValues(t, 0, err)
}

func TestCloneSharesAddressSpaceAndFiles(t *testing.T) {
	_, p := newTestKernel(t)

	tid, err := sysClone(p, CLONE_VM|CLONE_FILES, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	child, ok := p.Kernel.lookupProc(defs.Tid_t(tid))
	require.True(t, ok)
	assert.Same(t, p.Vm, child.Vm, "CLONE_VM must share the address space")
	assert.Same(t, p.Fdset, child.Fdset, "CLONE_FILES must share the fd table")
}

func TestForkCopiesAddressSpace(t *testing.T) {
	_, p := newTestKernel(t)

	tid, err := sysFork(p, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	child, ok := p.Kernel.lookupProc(defs.Tid_t(tid))
	require.True(t, ok)
	assert.NotSame(t, p.Vm, child.Vm, "fork without CLONE_VM must copy the address space")
	assert.NotSame(t, p.Fdset, child.Fdset, "fork without CLONE_FILES must copy the fd table")
}

func TestFutexWaitWakeRendezvous(t *testing.T) {
	_, p := newTestKernel(t)

	va, err := sysMmap(p, 0, 4096, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	// value already differs from the expected wait value: must return
	// EAGAIN immediately rather than blocking.
	require.EqualValues(t, 0, p.Vm.Userwriten(va, 4, 1))
	_, err = sysFutex(p, va, FUTEX_WAIT, 0, 0, 0, 0)
	assert.EqualValues(t, -defs.EAGAIN, err)

	n, err := sysFutex(p, va, FUTEX_WAKE, 1, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0, n, "no waiters parked yet")
}

func TestGetpidGettidUmask(t *testing.T) {
	_, p := newTestKernel(t)

	pid, err := sysGetpid(p, 0, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.EqualValues(t, p.Thread.Pid, pid)

	old, err := sysUmask(p, 0777, 0, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.EqualValues(t, 022, old)
	assert.EqualValues(t, 0777, p.Umask)
}

func TestClockNanosleepAdvancesSimulatedClock(t *testing.T) {
	k, p := newTestKernel(t)
	scratch, err := sysMmap(p, 0, 4096, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	reqBuf := make([]byte, 16)
	// 1ms request: sec=0, nsec=1_000_000
	reqBuf[8] = 0x40
	reqBuf[9] = 0x42
	reqBuf[10] = 0x0f
	require.EqualValues(t, 0, p.Vm.K2user(reqBuf, scratch))

	before := k.Timeouts.Now()
	done := make(chan struct{})
	go func() {
		sysClockNanosleep(p, CLOCK_MONOTONIC, 0, scratch, 0, 0, 0)
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, k.Timeouts.Now(), before)
}

func TestClockGettimeAndGetres(t *testing.T) {
	_, p := newTestKernel(t)
	scratch, err := sysMmap(p, 0, 4096, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	_, err = sysClockGettime(p, CLOCK_MONOTONIC, scratch, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	sec, err := p.Vm.Userreadn(scratch, 8)
	require.EqualValues(t, 0, err)
	assert.GreaterOrEqual(t, sec, 0)

	_, err = sysClockGetres(p, CLOCK_REALTIME, scratch, 0, 0, 0, 0)
	assert.EqualValues(t, 0, err)

	_, err = sysClockGettime(p, 99, scratch, 0, 0, 0, 0)
	assert.EqualValues(t, -defs.EINVAL, err)
}

func TestMountSyscallAttachesRegisteredFilesystemThenUnmounts(t *testing.T) {
	_, p := newTestKernel(t)
	registerFilesystem("ramfs-test-backend", ramfs.New())

	scratch, err := sysMmap(p, 0, 4096, PROT_READ|PROT_WRITE, MAP_ANONYMOUS|MAP_PRIVATE, -1, 0)
	require.EqualValues(t, 0, err)

	targetBuf := []byte("/mnt\x00")
	require.EqualValues(t, 0, p.Vm.K2user(targetBuf, scratch))
	fstypeBuf := []byte("ramfs-test-backend\x00")
	require.EqualValues(t, 0, p.Vm.K2user(fstypeBuf, scratch+64))

	_, err = sysMount(p, 0, scratch, scratch+64, 0, 0, 0)
	require.EqualValues(t, 0, err)

	_, err = sysUmount2(p, scratch, 0, 0, 0, 0, 0)
	assert.EqualValues(t, 0, err)

	// a second unmount at the same path finds nothing left to remove
	_, err = sysUmount2(p, scratch, 0, 0, 0, 0, 0)
	assert.EqualValues(t, -defs.ENOENT, err)
}

func TestSyncOverFilesystemsWithNothingToFlushSucceeds(t *testing.T) {
	_, p := newTestKernel(t)
	_, err := sysSync(p, 0, 0, 0, 0, 0, 0)
	assert.EqualValues(t, 0, err)
}

func TestSocketDomainAndProtocolDispatch(t *testing.T) {
	_, p := newTestKernel(t)

	// unknown domain: EAFNOSUPPORT
	_, err := sysSocket(p, 99, SOCK_STREAM, 0, 0, 0, 0)
	assert.EqualValues(t, -defs.EAFNOSUPPORT, err)

	// known domain, no backend registered for this type yet: EPROTONOSUPPORT
	_, err = sysSocket(p, AF_UNIX, SOCK_STREAM, 0, 0, 0, 0)
	assert.EqualValues(t, -defs.EPROTONOSUPPORT, err)

	p.Kernel.Net.Register(AF_UNIX, SOCK_STREAM, func(protocol int) (fdops.Fdops_i, defs.Err_t) {
		return nil, 0
	})
	fdno, err := sysSocket(p, AF_UNIX, SOCK_STREAM, 0, 0, 0, 0)
	require.EqualValues(t, 0, err)
	assert.GreaterOrEqual(t, fdno, 0)
}
