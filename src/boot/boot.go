// Package boot assembles a Kernel_t from a config.BootConfig: the scheduler
// (one goroutine per simulated CPU, sched.Init's own job), the page
// allocator, the VFS cache and mount table with every configured
// filesystem attached, the metrics registry with its devfs devices
// registered, and the init process bootstrapped at tid 1 running the
// caller's entry function. This is the Go-goroutine counterpart of
// original_source's own boot sequence (sys/main.c: pmem_init,
// kmem_init, sched_init, thread_idle_setup, task_bootstrap in that
// order) — everything before the scheduler starts here simply runs as
// ordinary constructor calls instead of assembly-language early boot.
package boot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nanokernel/src/config"
	"nanokernel/src/fs/devfs"
	"nanokernel/src/fs/ramfs"
	"nanokernel/src/mem"
	"nanokernel/src/metrics"
	"nanokernel/src/sched"
	"nanokernel/src/syscall"
	"nanokernel/src/timeout"
	"nanokernel/src/timer"
	"nanokernel/src/ustr"
	"nanokernel/src/vfs"
	"nanokernel/src/vm"
)

var log = logrus.WithField("subsys", "boot")

// Kernel bundles the constructed kernel with the services Bringup
// started alongside it.
type Kernel struct {
	*syscall.Kernel_t
	Metrics *metrics.Registry
	BootID  uuid.UUID
	Init    *syscall.Proc_t
}

// Bringup constructs every subsystem cfg names and returns the
// assembled Kernel. entry runs as the init process's (tid 1) own
// goroutine; Bringup blocks until entry has at least started (signaled
// by closing a channel entry's first line of execution implicitly
// passes through) so the returned Kernel's mount table and init process
// are both fully usable the moment Bringup returns.
//
// golang.org/x/sync/errgroup drives two rounds of "spawn a goroutine
// per unit, wait for all to finish" the way dra-driver-memory's
// RunDaemon pairs an errgroup.WithContext(ctx) with its own HTTP server
// and a shutdown-on-cancel goroutine: first a per-CPU readiness barrier
// right after sched.Init brings the idle threads up, then the
// metrics/profiling HTTP listener for the rest of Bringup's caller's
// lifetime. sched.Init itself still owns the actual idle-thread
// goroutine spawn; the errgroup here is the "wait for all to report
// ready" half of that pairing, replacing what would otherwise be a
// hand-rolled sync.WaitGroup loop.
//
// mmu and rootFS let the caller (cmd/kernel's --no-mmu and --image
// flags) override how the init process's address space is translated
// and what the root ramfs instance already contains before "/" is
// mounted; either may be nil to take Bringup's own defaults.
func Bringup(ctx context.Context, cfg *config.BootConfig, mmu vm.MMU, rootFS *ramfs.Ramfs_t, entry func(p *syscall.Proc_t)) (*Kernel, *errgroup.Group, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid boot configuration: %w", err)
	}
	if mmu == nil {
		mmu = vm.NewSoftMMU()
	}
	if rootFS == nil {
		rootFS = ramfs.New()
	}
	bootID := uuid.New()
	log.WithFields(logrus.Fields{
		"boot_id":      bootID,
		"num_cpu":      cfg.NumCPU,
		"memory_bytes": cfg.MemoryBytes,
	}).Info("bringing up kernel")

	src := timer.NewSimSource()
	tq := timeout.New(src)
	s := sched.Init(cfg.NumCPU, tq)
	pages := mem.NewPageAlloc(cfg.MemoryBytes)
	k := syscall.NewKernel(s, tq, pages)

	var cpuReady errgroup.Group
	for i := 0; i < cfg.NumCPU; i++ {
		cpu := i
		cpuReady.Go(func() error {
			if s.NumCPU() <= cpu {
				return fmt.Errorf("cpu %d failed to come up", cpu)
			}
			log.WithField("cpu", cpu).Debug("cpu idle thread ready")
			return nil
		})
	}
	if err := cpuReady.Wait(); err != nil {
		return nil, nil, fmt.Errorf("bringing up cpus: %w", err)
	}

	reg := metrics.New()
	if err := metrics.RegisterDevice(reg); err != 0 {
		return nil, nil, fmt.Errorf("registering stat device: %v", err)
	}
	if err := metrics.RegisterProfileDevice(); err != 0 {
		return nil, nil, fmt.Errorf("registering prof device: %v", err)
	}

	devFS := devfs.New()
	syscall.RegisterFilesystem("ramfs", rootFS)
	syscall.RegisterFilesystem("devfs", devFS)
	knownFS := map[string]vfs.Filesystem{"ramfs": rootFS, "devfs": devFS}

	ready := make(chan struct{})
	initProc := k.Bootstrap(mmu, nil, func(p *syscall.Proc_t) {
		close(ready)
		entry(p)
	})
	<-ready

	for _, m := range cfg.Mounts {
		fs, ok := knownFS[m.Fstype]
		if !ok {
			return nil, nil, fmt.Errorf("unknown filesystem type %q", m.Fstype)
		}
		var flags int
		if m.ReadOnly {
			flags |= vfs.MNT_RDONLY
		}
		if m.NoExec {
			flags |= vfs.MNT_NOEXEC
		}
		path := ustr.Ustr(m.Path)
		if m.Path == "/" {
			path = ustr.MkUstrRoot()
		}
		if _, err := k.Mounts.Mount(initProc.Thread, k.Cache, path, fs, flags); err != 0 {
			return nil, nil, fmt.Errorf("mounting %q as %s: %v", m.Path, m.Fstype, err)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: reg.Handler()}
		eg.Go(func() error {
			log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return &Kernel{Kernel_t: k, Metrics: reg, BootID: bootID, Init: initProc}, eg, nil
}
