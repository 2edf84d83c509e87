// Package config loads the boot-time configuration cmd/kernel reads
// before constructing a Kernel_t: how much physical memory to simulate,
// how many CPUs to bring up, which filesystem personalities to mount
// where, and the metrics/profiling listen address. Grounded on the
// pack's broad use of YAML for declarative system configuration
// (canonical-snapd's gadget.yaml/snap.yaml family); errors are wrapped
// with github.com/pkg/errors rather than fmt.Errorf so a malformed boot
// config keeps its file/line-shaped cause chain intact for cmd/kernel's
// top-level error log, the reason Err_t's own doc comment already
// anticipates pkg/errors at this altitude.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("subsys", "config")

// Mount describes one filesystem to attach at boot.
type Mount struct {
	Path     string `yaml:"path"`
	Fstype   string `yaml:"fstype"`
	ReadOnly bool   `yaml:"readonly"`
	NoExec   bool   `yaml:"noexec"`
}

// BootConfig is the whole of a boot configuration file.
type BootConfig struct {
	// NumCPU is how many idle-thread CPUs src/boot.Bringup spawns.
	NumCPU int `yaml:"num_cpu"`
	// MemoryBytes sizes the simulated physical page arena.
	MemoryBytes int `yaml:"memory_bytes"`
	// Mounts lists every filesystem to attach, in order; the first
	// entry must be "/" (Validate rejects anything else).
	Mounts []Mount `yaml:"mounts"`
	// MetricsAddr is the listen address of the metrics server, which
	// answers every request path with the Prometheus exposition (there
	// is no separate /healthz); empty disables the server entirely.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration cmd/kernel falls back to when no
// file is given: a single CPU, 64MiB of simulated memory, ramfs at "/",
// metrics off.
func Default() *BootConfig {
	return &BootConfig{
		NumCPU:      1,
		MemoryBytes: 64 << 20,
		Mounts:      []Mount{{Path: "/", Fstype: "ramfs"}},
	}
}

// Load reads and parses the YAML configuration file at path, applying
// Default's values as a base so a config file only needs to override
// what it cares about.
func Load(path string) (*BootConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening boot config %q", path)
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing boot config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating boot config %q", path)
	}
	log.WithField("path", path).Info("loaded boot configuration")
	return cfg, nil
}

// Validate rejects a configuration that would leave Bringup or the
// mount sequence with nothing sensible to do.
func (c *BootConfig) Validate() error {
	if c.NumCPU < 1 {
		return errors.Errorf("num_cpu must be >= 1, got %d", c.NumCPU)
	}
	if c.MemoryBytes < 1<<20 {
		return errors.Errorf("memory_bytes must be >= 1MiB, got %d", c.MemoryBytes)
	}
	if len(c.Mounts) == 0 {
		return errors.New("mounts must name at least a root filesystem")
	}
	if c.Mounts[0].Path != "/" {
		return errors.Errorf("first mount must be \"/\", got %q", c.Mounts[0].Path)
	}
	for _, m := range c.Mounts {
		if m.Fstype == "" {
			return errors.Errorf("mount %q missing fstype", m.Path)
		}
	}
	return nil
}
