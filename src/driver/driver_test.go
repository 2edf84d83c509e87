package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/defs"
)

// memDevops is a minimal in-memory byte-buffer device used only to
// exercise the registry; real device drivers live elsewhere.
type memDevops struct {
	opened bool
}

func (d *memDevops) Open(dev *Device_t, flags int) defs.Err_t {
	d.opened = true
	return 0
}

func (d *memDevops) Close(dev *Device_t) defs.Err_t {
	d.opened = false
	return 0
}

func (d *memDevops) Read(dev *Device_t, dst []uint8, offset int64) (int, defs.Err_t) {
	buf := dev.Private.([]byte)
	if offset >= int64(len(buf)) {
		return 0, 0
	}
	n := copy(dst, buf[offset:])
	return n, 0
}

func (d *memDevops) Write(dev *Device_t, src []uint8, offset int64) (int, defs.Err_t) {
	buf := dev.Private.([]byte)
	end := offset + int64(len(src))
	if end > int64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], src)
	dev.Private = buf
	return len(src), 0
}

func (d *memDevops) Ioctl(dev *Device_t, cmd uint, arg int) (int, defs.Err_t) {
	return 0, -defs.ENOTTY
}

func TestRegisterRunsProbeThenInit(t *testing.T) {
	var order []string
	drv := &Driver_t{
		Name:   "mem0",
		Devops: &memDevops{},
		Probe:  func(*Driver_t) defs.Err_t { order = append(order, "probe"); return 0 },
		Init:   func(*Driver_t) defs.Err_t { order = append(order, "init"); return 0 },
	}
	require.EqualValues(t, 0, Register(drv))
	assert.Equal(t, []string{"probe", "init"}, order)
	assert.Equal(t, dsAlive|dsActive, drv.state)
}

func TestRegisterAbortsOnFailedProbe(t *testing.T) {
	initRan := false
	drv := &Driver_t{
		Name:   "mem1",
		Devops: &memDevops{},
		Probe:  func(*Driver_t) defs.Err_t { return -defs.ENXIO },
		Init:   func(*Driver_t) defs.Err_t { initRan = true; return 0 },
	}
	assert.EqualValues(t, -defs.ENXIO, Register(drv))
	assert.False(t, initRan)
}

func TestOpenIncrementsRefcntAndCallsDevops(t *testing.T) {
	devops := &memDevops{}
	drv := &Driver_t{Name: "mem2", Devops: devops}
	require.EqualValues(t, 0, Register(drv))

	dev, err := Create(drv, "mem2-test-open", D_CHR)
	require.EqualValues(t, 0, err)
	dev.Private = []byte{}

	opened, err := Open("mem2-test-open", 0)
	require.EqualValues(t, 0, err)
	assert.Same(t, dev, opened)
	assert.True(t, devops.opened)
	assert.EqualValues(t, 1, dev.refcnt)

	n, werr := dev.Write([]byte("hi"), 0)
	require.EqualValues(t, 0, werr)
	assert.Equal(t, 2, n)

	buf := make([]byte, 8)
	n, rerr := dev.Read(buf, 0)
	require.EqualValues(t, 0, rerr)
	assert.Equal(t, "hi", string(buf[:n]))

	require.EqualValues(t, 0, dev.Close())
	assert.False(t, devops.opened)
	assert.EqualValues(t, 0, dev.refcnt)
}

func TestOpenMissingDeviceFails(t *testing.T) {
	_, err := Open("mem-does-not-exist", 0)
	assert.EqualValues(t, -defs.ENXIO, err)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	drv := &Driver_t{Name: "mem3", Devops: &memDevops{}}
	require.EqualValues(t, 0, Register(drv))

	_, err := Create(drv, "mem3-dup", D_CHR)
	require.EqualValues(t, 0, err)
	_, err = Create(drv, "mem3-dup", D_CHR)
	assert.EqualValues(t, -defs.EEXIST, err)
}

func TestDestroyRefusesWhileOpen(t *testing.T) {
	drv := &Driver_t{Name: "mem4", Devops: &memDevops{}}
	require.EqualValues(t, 0, Register(drv))

	dev, err := Create(drv, "mem4-busy", D_CHR)
	require.EqualValues(t, 0, err)
	dev.Private = []byte{}

	_, err = Open("mem4-busy", 0)
	require.EqualValues(t, 0, err)

	assert.EqualValues(t, -defs.EBUSY, Destroy(dev))

	require.EqualValues(t, 0, dev.Close())
	assert.EqualValues(t, 0, Destroy(dev))
	_, err = Lookup("mem4-busy")
	assert.EqualValues(t, -defs.ENXIO, err)
}
