package syscall

import "nanokernel/src/defs"

// Syscall numbers for the POSIX-shaped surface of §6. Values follow
// Linux x86-64 numbering, the same convention defs.Err_t's errno
// values follow, so a host C library shim needs no translation table.
const (
	SYS_READ    = 0
	SYS_WRITE   = 1
	SYS_OPEN    = 2
	SYS_CLOSE   = 3
	SYS_STAT    = 4
	SYS_FSTAT   = 5
	SYS_LSTAT   = 6
	SYS_LSEEK   = 8
	SYS_MMAP    = 9
	SYS_MPROTECT = 10
	SYS_MUNMAP  = 11
	SYS_BRK     = 12
	SYS_IOCTL   = 16
	SYS_READV   = 19
	SYS_WRITEV  = 20
	SYS_ACCESS  = 21
	SYS_DUP     = 32
	SYS_DUP2    = 33
	SYS_SOCKET  = 41
	SYS_NANOSLEEP = 35
	SYS_GETPID  = 39
	SYS_CLONE   = 56
	SYS_FORK    = 57
	SYS_EXIT    = 60
	SYS_FCNTL   = 72
	SYS_TRUNCATE  = 76
	SYS_FTRUNCATE = 77
	SYS_GETCWD    = 79
	SYS_CHDIR     = 80
	SYS_FCHDIR    = 81
	SYS_RENAME    = 82
	SYS_MKDIR     = 83
	SYS_RMDIR     = 84
	SYS_CREAT     = 85
	SYS_LINK      = 86
	SYS_UNLINK    = 87
	SYS_CHROOT    = 161
	SYS_SYNC      = 162
	SYS_MOUNT     = 165
	SYS_UMOUNT2   = 166
	SYS_GETTID    = 186
	SYS_FSYNC     = 74
	SYS_GETDENTS  = 78
	SYS_MKNOD     = 133
	SYS_GETPPID   = 110
	SYS_SETSID    = 112
	SYS_SETPGID   = 109
	SYS_GETPGID   = 121
	SYS_GETPGRP   = 111
	SYS_GETSID    = 124
	SYS_UMASK     = 95
	SYS_MREMAP    = 25
	SYS_SETUID    = 105
	SYS_SETGID    = 106
	SYS_GETUID    = 102
	SYS_GETGID    = 104
	SYS_GETEUID   = 107
	SYS_GETEGID   = 108
	SYS_SCHED_YIELD = 24
	SYS_TKILL       = 200
	SYS_FUTEX       = 202
	SYS_SET_TID_ADDRESS   = 218
	SYS_GET_ROBUST_LIST   = 274
	SYS_SET_ROBUST_LIST   = 273
	SYS_EXIT_GROUP        = 231
	SYS_CLOCK_GETTIME     = 228
	SYS_CLOCK_SETTIME     = 227
	SYS_CLOCK_GETRES      = 229
	SYS_CLOCK_NANOSLEEP   = 230
)

// Handler is the shape every registered syscall implements: the
// calling process plus up to six integer/pointer-as-int arguments
// (the architecture-independent calling convention spec.md assumes),
// returning a non-negative result or a negative errno.
type Handler func(p *Proc_t, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t)

// Table_t is the process-wide syscall dispatch array (§4.8): modules
// register themselves at init time via Register(nr, fn); an
// unregistered number answers ENOSYS, decoupling subsystem loading
// from architecture trap glue the way original_source's
// __elk_set_syscall/SYSCALL macro does.
type Table_t struct {
	handlers map[int]Handler
}

func newTable() *Table_t {
	return &Table_t{handlers: make(map[int]Handler)}
}

// Register installs fn as the handler for syscall number nr,
// overwriting whatever was registered before — constructors are
// expected to run once at boot, but tests re-registering a stub is a
// legitimate use too.
func (t *Table_t) Register(nr int, fn Handler) {
	t.handlers[nr] = fn
}

// Dispatch resolves nr to a handler and invokes it, returning ENOSYS
// for any number nothing has registered.
func (t *Table_t) Dispatch(p *Proc_t, nr int, a1, a2, a3, a4, a5, a6 int) (int, defs.Err_t) {
	fn, ok := t.handlers[nr]
	if !ok {
		return 0, -defs.ENOSYS
	}
	n, err := fn(p, a1, a2, a3, a4, a5, a6)
	p.Thread.CheckPreempt()
	return n, err
}

// registerAll wires every handler this package implements into t; the
// counterpart of original_source's constructor-time SYSCALL(name)
// calls, collapsed into one place since this module has no separate
// per-subsystem constructor-array boot phase to hook into yet.
func registerAll(t *Table_t) {
	registerThreadCalls(t)
	registerMemCalls(t)
	registerVfsCalls(t)
	registerMountCalls(t)
	registerTimeCalls(t)
	registerNetCalls(t)
}
