package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/defs"
)

func TestProfDevopsStartStopCapturesProfile(t *testing.T) {
	p := newProfDevops()

	n, err := p.Write(nil, []byte{1}, 0)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 1, n)

	// reading while running is not ready yet
	buf := make([]byte, 16)
	_, err = p.Read(nil, buf, 0)
	assert.EqualValues(t, -defs.EAGAIN, err)

	time.Sleep(10 * time.Millisecond)

	_, err = p.Write(nil, []byte{0}, 0)
	require.EqualValues(t, 0, err)
	assert.False(t, p.running)

	n2, err := p.Read(nil, buf, 0)
	assert.EqualValues(t, 0, err)
	assert.GreaterOrEqual(t, n2, 0)
}

func TestProfDevopsWriteEmptyIsInvalid(t *testing.T) {
	p := newProfDevops()
	_, err := p.Write(nil, nil, 0)
	assert.EqualValues(t, -defs.EINVAL, err)
}
