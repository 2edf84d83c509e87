// Package driver implements the device driver registry of §6: drivers
// register a {name, devops, probe, init, unload} descriptor, devices
// are created against a driver and opened by name through device_open,
// and devfs (src/fs/devfs) enumerates whatever is currently registered
// rather than carrying its own device list. Grounded on
// original_source's sys/device.h (struct driver/struct device) and its
// device_create/device_open/device_close/device_info calls.
package driver

import (
	"sync"

	"nanokernel/src/defs"
)

// Device characteristic flags (original_source sys/device.h D_*).
const (
	D_CHR  = 1 << iota // Character device.
	D_BLK              // Block device.
	D_REM              // Removable device.
	D_PROT             // Not reachable through devfs (devfs_open/devfs_lookup skip it).
	D_TTY              // Line-discipline device.
)

// Driver flags (original_source DS_*), tracked on Driver_t.state.
const (
	dsInactive = 0
	dsAlive    = 1 << iota // Probe succeeded.
	dsActive               // Init succeeded.
)

// Devops_i is a driver's device operation vtable, the counterpart of
// struct devops. Unlike the original's per-field no_open/no_read
// function-pointer stubs, an unsupported operation simply returns
// ENXIO/EINVAL from the method body.
type Devops_i interface {
	Open(dev *Device_t, flags int) defs.Err_t
	Close(dev *Device_t) defs.Err_t
	Read(dev *Device_t, dst []uint8, offset int64) (int, defs.Err_t)
	Write(dev *Device_t, src []uint8, offset int64) (int, defs.Err_t)
	Ioctl(dev *Device_t, cmd uint, arg int) (int, defs.Err_t)
}

// Driver_t is the registration descriptor a constructor passes to
// Register. Private carries per-driver state Probe/Init/Unload close
// over; this module has no separate devsz-sized allocation step since
// Go values don't need a fixed-size private blob reserved up front.
type Driver_t struct {
	Name   string
	Devops Devops_i
	Probe  func(*Driver_t) defs.Err_t
	Init   func(*Driver_t) defs.Err_t
	Unload func(*Driver_t) defs.Err_t

	mu    sync.Mutex
	state int
}

// Device_t is one named device instance backed by a Driver_t.
type Device_t struct {
	Name   string
	Driver *Driver_t
	Flags  int

	mu      sync.Mutex
	active  bool
	refcnt  int32
	Private interface{}
}

type registry struct {
	mu      sync.Mutex
	drivers []*Driver_t
	devices []*Device_t
}

var global = &registry{}

// Register runs driver's Probe then Init (either may be nil, treated
// as trivially succeeding) and adds it to the registry. Matches the
// boot-time constructor-calls-driver_register sequence of §6 Boot.
func Register(drv *Driver_t) defs.Err_t {
	drv.mu.Lock()
	defer drv.mu.Unlock()

	if drv.Probe != nil {
		if err := drv.Probe(drv); err != 0 {
			return err
		}
	}
	drv.state |= dsAlive

	if drv.Init != nil {
		if err := drv.Init(drv); err != 0 {
			return err
		}
	}
	drv.state |= dsActive

	global.mu.Lock()
	global.drivers = append(global.drivers, drv)
	global.mu.Unlock()
	return 0
}

// Create allocates a named device instance against drv, the
// counterpart of device_create. Returns EEXIST if name is already
// taken, matching the original's device_lookup-before-create check.
func Create(drv *Driver_t, name string, flags int) (*Device_t, defs.Err_t) {
	global.mu.Lock()
	defer global.mu.Unlock()

	for _, d := range global.devices {
		if d.Name == name {
			return nil, -defs.EEXIST
		}
	}
	dev := &Device_t{Name: name, Driver: drv, Flags: flags, active: true}
	global.devices = append(global.devices, dev)
	return dev, 0
}

// Destroy removes dev from the registry. Matches device_destroy;
// returns EBUSY if references remain open, mirroring the original's
// refusal to tear down a device still in use.
func Destroy(dev *Device_t) defs.Err_t {
	dev.mu.Lock()
	busy := dev.refcnt > 0
	if !busy {
		dev.active = false
	}
	dev.mu.Unlock()
	if busy {
		return -defs.EBUSY
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	for i, d := range global.devices {
		if d == dev {
			global.devices = append(global.devices[:i], global.devices[i+1:]...)
			break
		}
	}
	return 0
}

// Lookup finds a named device without opening it, the counterpart of
// device_lookup.
func Lookup(name string) (*Device_t, defs.Err_t) {
	global.mu.Lock()
	defer global.mu.Unlock()
	for _, d := range global.devices {
		if d.Name == name && d.active {
			return d, 0
		}
	}
	return nil, -defs.ENXIO
}

// Devices returns a stable-ordered snapshot of every active device,
// used by devfs's readdir and by a driver-less lookup-by-name loop
// (original_source's devfs_lookup/devfs_readdir walk device_info by
// cookie instead; ranging over a slice plays the same role here).
func Devices() []*Device_t {
	global.mu.Lock()
	defer global.mu.Unlock()
	out := make([]*Device_t, len(global.devices))
	copy(out, global.devices)
	return out
}

// Open looks up name, increments its reference count and calls its
// driver's Open devop, the counterpart of device_open. mode is masked
// to DO_RDONLY/DO_WRONLY/DO_RDWR by the caller (src/fs/devfs); this
// function does not interpret it beyond passing it through.
func Open(name string, mode int) (*Device_t, defs.Err_t) {
	dev, err := Lookup(name)
	if err != 0 {
		return nil, err
	}
	dev.mu.Lock()
	dev.refcnt++
	dev.mu.Unlock()

	if err := dev.Driver.Devops.Open(dev, mode); err != 0 {
		dev.mu.Lock()
		dev.refcnt--
		dev.mu.Unlock()
		return nil, err
	}
	return dev, 0
}

// Close releases one reference taken by Open, the counterpart of
// device_close.
func (d *Device_t) Close() defs.Err_t {
	err := d.Driver.Devops.Close(d)
	d.mu.Lock()
	d.refcnt--
	d.mu.Unlock()
	return err
}

func (d *Device_t) Read(dst []uint8, offset int64) (int, defs.Err_t) {
	return d.Driver.Devops.Read(d, dst, offset)
}

func (d *Device_t) Write(src []uint8, offset int64) (int, defs.Err_t) {
	return d.Driver.Devops.Write(d, src, offset)
}

func (d *Device_t) Ioctl(cmd uint, arg int) (int, defs.Err_t) {
	return d.Driver.Devops.Ioctl(d, cmd, arg)
}
