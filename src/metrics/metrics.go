// Package metrics is the kernel's external-facing instrumentation:
// Prometheus counters and gauges for syscalls, runnable threads,
// allocated pages, vnode-cache lookups and futex waiters. No kernel
// package (sched, vm, vfs, syscall) updates them; they change only when
// code holding the Registry sets them. They are exposed two ways — an
// HTTP endpoint for a host-side scrape (boot.Bringup serves Handler as
// the whole metrics server, so every request path answers) and, inside the
// kernel's own namespace, the D_STAT character device a process can open
// and read like any other file. Package stats covers the opt-in
// zero-cost internal counters this package does not duplicate.
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"net/http"

	"nanokernel/src/defs"
	"nanokernel/src/driver"
)

// Registry owns every metric this kernel exports and the private
// prometheus.Registry they're registered against, rather than the
// package-level default registry promauto normally reaches for — a
// kernel can be instantiated more than once per test process
// (newTestKernel does this for every test function), and a shared
// global registry would panic on the second registration.
type Registry struct {
	reg *prometheus.Registry

	SyscallsTotal   *prometheus.CounterVec
	ThreadsRunnable prometheus.Gauge
	PagesAllocated  prometheus.Gauge
	VnodeCacheHits  prometheus.Counter
	VnodeCacheMiss  prometheus.Counter
	FutexWaiters    prometheus.Gauge
}

// New builds a Registry with every metric registered and ready to
// observe. Naming follows the usual Prometheus convention the pack's
// dra-driver-memory exposes its own counters under: a noun, a unit
// suffix where one applies, "_total" on monotonic counters.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		SyscallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nanokernel",
			Name:      "syscalls_total",
			Help:      "Syscalls dispatched, by syscall number.",
		}, []string{"nr"}),
		ThreadsRunnable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nanokernel",
			Name:      "threads_runnable",
			Help:      "Threads currently on a run queue.",
		}),
		PagesAllocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nanokernel",
			Name:      "pages_allocated",
			Help:      "Physical pages currently allocated from the page allocator.",
		}),
		VnodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nanokernel",
			Name:      "vnode_cache_hits_total",
			Help:      "Vnode cache lookups satisfied without a filesystem round trip.",
		}),
		VnodeCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nanokernel",
			Name:      "vnode_cache_misses_total",
			Help:      "Vnode cache lookups that required a filesystem round trip.",
		}),
		FutexWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nanokernel",
			Name:      "futex_waiters",
			Help:      "Threads currently parked on a futex wait queue.",
		}),
	}
	reg.MustRegister(r.SyscallsTotal, r.ThreadsRunnable, r.PagesAllocated,
		r.VnodeCacheHits, r.VnodeCacheMiss, r.FutexWaiters)
	return r
}

// Handler returns the promhttp handler bound to this registry's own
// metrics; boot.Bringup installs it as the metrics server's root
// handler, so it answers every request path.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// gather renders every registered metric family in the Prometheus text
// exposition format, the payload both Handler and the D_STAT device
// read back return.
func (r *Registry) gather() ([]byte, defs.Err_t) {
	mfs, err := r.reg.Gather()
	if err != nil {
		return nil, -defs.EIO
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return nil, -defs.EIO
		}
	}
	return buf.Bytes(), 0
}

// statDevops implements driver.Devops_i over a Registry: every Read
// renders a fresh snapshot and returns its bytes from the requested
// offset, the in-kernel counterpart to scraping the metrics server from
// outside. Offsets past the end of the rendered snapshot read as EOF
// (n == 0).
type statDevops struct {
	r *Registry
}

func (s *statDevops) Open(dev *driver.Device_t, flags int) defs.Err_t { return 0 }
func (s *statDevops) Close(dev *driver.Device_t) defs.Err_t           { return 0 }

func (s *statDevops) Read(dev *driver.Device_t, dst []uint8, offset int64) (int, defs.Err_t) {
	snap, err := s.r.gather()
	if err != 0 {
		return 0, err
	}
	if offset >= int64(len(snap)) {
		return 0, 0
	}
	n := copy(dst, snap[offset:])
	return n, 0
}

func (s *statDevops) Write(dev *driver.Device_t, src []uint8, offset int64) (int, defs.Err_t) {
	return 0, -defs.EACCES
}

func (s *statDevops) Ioctl(dev *driver.Device_t, cmd uint, arg int) (int, defs.Err_t) {
	return 0, -defs.ENOTTY
}

// RegisterDevice makes r readable at devfs's "stat" entry (defs.D_STAT),
// the device-file rendition of the original's own /dev/stat, called
// once by boot wiring.
func RegisterDevice(r *Registry) defs.Err_t {
	drv := &driver.Driver_t{Name: "stat", Devops: &statDevops{r: r}}
	if err := driver.Register(drv); err != 0 {
		return err
	}
	_, err := driver.Create(drv, "stat", driver.D_CHR)
	return err
}
