package metrics

import (
	"bytes"
	"runtime/pprof"
	"sync"

	"nanokernel/src/defs"
	"nanokernel/src/driver"
)

// profDevops implements the D_PROF device: writing a non-zero byte
// starts a runtime/pprof CPU profile, writing a zero byte stops it and
// latches the captured bytes for a subsequent read, the poor man's
// start/stop ioctl pair original_source's own /dev/prof driver offered
// over a single control byte rather than two separate syscalls.
// cmd/kernel's "profile" subcommand opens the captured bytes with
// github.com/google/pprof/profile to print a flat summary.
type profDevops struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	running bool
}

func newProfDevops() *profDevops { return &profDevops{} }

func (p *profDevops) Open(dev *driver.Device_t, flags int) defs.Err_t  { return 0 }
func (p *profDevops) Close(dev *driver.Device_t) defs.Err_t            { return 0 }
func (p *profDevops) Ioctl(dev *driver.Device_t, cmd uint, arg int) (int, defs.Err_t) {
	return 0, -defs.ENOTTY
}

func (p *profDevops) Write(dev *driver.Device_t, src []uint8, offset int64) (int, defs.Err_t) {
	if len(src) == 0 {
		return 0, -defs.EINVAL
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case src[0] != 0 && !p.running:
		p.buf.Reset()
		if err := pprof.StartCPUProfile(&p.buf); err != nil {
			return 0, -defs.EIO
		}
		p.running = true
	case src[0] == 0 && p.running:
		pprof.StopCPUProfile()
		p.running = false
	}
	return len(src), 0
}

func (p *profDevops) Read(dev *driver.Device_t, dst []uint8, offset int64) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return 0, -defs.EAGAIN
	}
	b := p.buf.Bytes()
	if offset >= int64(len(b)) {
		return 0, 0
	}
	return copy(dst, b[offset:]), 0
}

// RegisterProfileDevice installs the D_PROF device under devfs as
// "prof", called once by boot wiring alongside RegisterDevice.
func RegisterProfileDevice() defs.Err_t {
	drv := &driver.Driver_t{Name: "prof", Devops: newProfDevops()}
	if err := driver.Register(drv); err != 0 {
		return err
	}
	_, err := driver.Create(drv, "prof", driver.D_CHR)
	return err
}
