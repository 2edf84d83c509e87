package driver

import (
	"sync"

	"nanokernel/src/circbuf"
	"nanokernel/src/defs"
	"nanokernel/src/mem"
)

// ConsoleBufsz is the console's ring buffer capacity, the counterpart
// of original_source console.c's IBUFFER_SIZE/OBUFFER_SIZE (collapsed
// to one buffer and one size here since this port has no separate
// interrupt-fed input path — see consoleDevops doc comment).
const ConsoleBufsz = 256

// consoleDevops backs a single FIFO byte-stream device with one
// circbuf. original_source's console.c keeps separate input and
// output ring buffers fed by RX/TX interrupts from a real UART; this
// port has no UART to interrupt, so Write and Read both drive the same
// buffer directly, giving a loopback console suitable for driving
// devfs's console vnode in tests and in the boot harness's early log.
type consoleDevops struct {
	mu sync.Mutex
	cb circbuf.Circbuf_t
}

func (c *consoleDevops) Open(dev *Device_t, flags int) defs.Err_t  { return 0 }
func (c *consoleDevops) Close(dev *Device_t) defs.Err_t            { return 0 }

func (c *consoleDevops) Read(dev *Device_t, dst []uint8, offset int64) (int, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb.Copyout(dst)
}

func (c *consoleDevops) Write(dev *Device_t, src []uint8, offset int64) (int, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb.Copyin(src)
}

// Ioctl answers the one request original_source's sys_ioctl handles
// (TCGETS, "yes, I am a serial port"); anything else is EINVAL.
func (c *consoleDevops) Ioctl(dev *Device_t, cmd uint, arg int) (int, defs.Err_t) {
	const tcgets = 0x5401
	if cmd == tcgets {
		return 0, 0
	}
	return 0, -defs.EINVAL
}

// NewConsoleDriver builds the console driver descriptor; Register
// allocates its backing page lazily via pages on the first Read or
// Write, matching circbuf's own lazy-allocation contract.
func NewConsoleDriver(pages mem.Page_i) *Driver_t {
	ops := &consoleDevops{}
	return &Driver_t{
		Name:   "console",
		Devops: ops,
		Init: func(*Driver_t) defs.Err_t {
			ops.cb.Init(ConsoleBufsz, pages)
			return 0
		},
	}
}
