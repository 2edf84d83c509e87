package syscall

import (
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/fd"
	"nanokernel/src/fdops"
)

// Address families and socket types this dispatch table recognizes.
// Non-goals exclude implementing any protocol above this point — a
// domain other than AF_UNIX/AF_INET/AF_INET6 answers EAFNOSUPPORT, and
// one of those known domains with no backend registered for the
// requested type answers EPROTONOSUPPORT.
const (
	AF_UNIX  = 1
	AF_INET  = 2
	AF_INET6 = 10

	SOCK_STREAM = 1
	SOCK_DGRAM  = 2
)

// SocketBackend constructs an open socket descriptor for one
// (domain, type, protocol) triple. A domain registers one backend per
// type it supports; nothing in this module registers one for AF_INET/
// AF_INET6, so those answer EPROTONOSUPPORT; spec.md's Non-goals place
// a network stack out of scope.
type SocketBackend func(protocol int) (fdops.Fdops_i, defs.Err_t)

// NetDomains_t is the (domain, type) -> backend dispatch table spec.md
// §6 requires even though it excludes implementing any protocol: the
// routing layer is in scope, the wire protocols are not.
type NetDomains_t struct {
	mu       sync.Mutex
	backends map[[2]int]SocketBackend
}

func newNetDomains() *NetDomains_t {
	return &NetDomains_t{backends: make(map[[2]int]SocketBackend)}
}

// Register installs fn as the backend for (domain, typ). Called by
// boot wiring for any in-process domain this core actually implements
// (AF_UNIX datagram/stream sockets over msgq, in principle); nothing
// registers by default.
func (n *NetDomains_t) Register(domain, typ int, fn SocketBackend) {
	n.mu.Lock()
	n.backends[[2]int{domain, typ}] = fn
	n.mu.Unlock()
}

func (n *NetDomains_t) lookup(domain, typ int) (SocketBackend, defs.Err_t) {
	n.mu.Lock()
	fn, ok := n.backends[[2]int{domain, typ}]
	n.mu.Unlock()
	if ok {
		return fn, 0
	}
	switch domain {
	case AF_UNIX, AF_INET, AF_INET6:
		return nil, -defs.EPROTONOSUPPORT
	default:
		return nil, -defs.EAFNOSUPPORT
	}
}

func registerNetCalls(t *Table_t) {
	t.Register(SYS_SOCKET, sysSocket)
}

func sysSocket(p *Proc_t, domain, typ, protocol, a4, a5, a6 int) (int, defs.Err_t) {
	fn, err := p.Kernel.Net.lookup(domain, typ&0xff)
	if err != 0 {
		return 0, err
	}
	ops, err := fn(protocol)
	if err != 0 {
		return 0, err
	}
	f := &fd.Fd_t{Fops: ops, Perms: fd.FD_READ | fd.FD_WRITE}
	return p.Fdset.Alloc(f, 0), 0
}
