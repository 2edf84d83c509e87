// Command kernel is the boot harness: it loads a config.BootConfig,
// brings up every subsystem through boot.Bringup, seeds ramfs from an
// optional image built by cmd/mkfs, and then blocks until interrupted.
// It is the goroutine-hosted counterpart of original_source's sys/main.c
// early boot path, with cobra standing in for the kernel's own argv
// parsing of boot parameters.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"nanokernel/src/boot"
	"nanokernel/src/config"
	"nanokernel/src/fs/ramfs"
	"nanokernel/src/syscall"
	"nanokernel/src/vm"
)

var log = logrus.WithField("subsys", "cmd/kernel")

type flags struct {
	configPath  string
	imagePath   string
	noMMU       bool
	pprofFile   string
	metricsAddr string
}

func main() {
	f := &flags{}
	root := &cobra.Command{
		Use:   "kernel",
		Short: "Bring up the kernel execution substrate and block until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.Flags().StringVar(&f.configPath, "config", "", "path to a boot configuration YAML file (default: built-in single-CPU/64MiB/ramfs config)")
	root.Flags().StringVar(&f.imagePath, "image", "", "path to a cmd/mkfs-produced ramfs seed image to load before mounting \"/\"")
	root.Flags().BoolVar(&f.noMMU, "no-mmu", false, "run address spaces through vm.NewNoMMU instead of vm.NewSoftMMU")
	root.Flags().StringVar(&f.pprofFile, "pprof", "", "on SIGUSR1, write CPU and heap profiles of this process to the given path prefix (<path>.cpu, <path>.heap)")
	root.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "override the boot configuration's metrics_addr")
	root.AddCommand(newProfileCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("kernel exited with error")
	}
}

func run(ctx context.Context, f *flags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("loading boot configuration: %w", err)
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}

	var seed []ramfs.SeedEntry
	if f.imagePath != "" {
		img, err := os.Open(f.imagePath)
		if err != nil {
			return fmt.Errorf("opening seed image %q: %w", f.imagePath, err)
		}
		seed, err = ramfs.DecodeImage(img)
		img.Close()
		if err != nil {
			return fmt.Errorf("decoding seed image %q: %w", f.imagePath, err)
		}
	}

	if f.pprofFile != "" {
		installProfileSignal(f.pprofFile)
	}

	rootfs := ramfs.New()
	if len(seed) > 0 {
		if err := ramfs.LoadInto(rootfs, seed); err != nil {
			return fmt.Errorf("applying seed image: %w", err)
		}
	}

	k, eg, err := boot.Bringup(ctx, cfg, mmuFor(f), rootfs, func(p *syscall.Proc_t) {
		log.WithField("tid", p.Thread.Tid).Info("init process running")
		<-ctx.Done()
	})
	if err != nil {
		return fmt.Errorf("bringing up kernel: %w", err)
	}
	log.WithField("boot_id", k.BootID).Info("kernel booted")

	return eg.Wait()
}

func mmuFor(f *flags) vm.MMU {
	if f.noMMU {
		return vm.NewNoMMU()
	}
	return vm.NewSoftMMU()
}

func loadConfig(f *flags) (*config.BootConfig, error) {
	if f.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(f.configPath)
}

// installProfileSignal arms a SIGUSR1 handler that captures a CPU
// profile of this boot harness process for a few seconds and a heap
// profile snapshot, writing both alongside prefix. This is a profile of
// cmd/kernel's own Go runtime, distinct from the D_STAT/D_PROF devices
// boot.Bringup registers for introspecting the simulated kernel itself.
func installProfileSignal(prefix string) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGUSR1)
	go func() {
		for range sigs {
			captureProfile(prefix)
		}
	}()
}

func captureProfile(prefix string) {
	cpuFile, err := os.Create(prefix + ".cpu")
	if err != nil {
		log.WithError(err).Warn("creating cpu profile file")
		return
	}
	defer cpuFile.Close()
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		log.WithError(err).Warn("starting cpu profile")
		return
	}
	time.Sleep(5 * time.Second)
	pprof.StopCPUProfile()

	heapFile, err := os.Create(prefix + ".heap")
	if err != nil {
		log.WithError(err).Warn("creating heap profile file")
		return
	}
	defer heapFile.Close()
	if err := pprof.WriteHeapProfile(heapFile); err != nil {
		log.WithError(err).Warn("writing heap profile")
		return
	}
	log.WithField("prefix", prefix).Info("wrote profile snapshot")
}
