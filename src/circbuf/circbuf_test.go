package circbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/mem"
)

func TestCopyinCopyoutRoundTrip(t *testing.T) {
	pages := mem.AsPage1(mem.NewPageAlloc(4 * mem.PGSIZE))
	var cb Circbuf_t
	cb.Init(64, pages)

	n, err := cb.Copyin([]byte("abcdef"))
	require.EqualValues(t, 0, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, cb.Used())

	dst := make([]byte, 16)
	n, err = cb.Copyout(dst)
	require.EqualValues(t, 0, err)
	assert.Equal(t, "abcdef", string(dst[:n]))
	assert.True(t, cb.Empty())
}

func TestCopyinStopsAtCapacity(t *testing.T) {
	pages := mem.AsPage1(mem.NewPageAlloc(4 * mem.PGSIZE))
	var cb Circbuf_t
	cb.Init(4, pages)

	n, err := cb.Copyin([]byte("abcdef"))
	require.EqualValues(t, 0, err)
	assert.Equal(t, 4, n)
	assert.True(t, cb.Full())

	n, err = cb.Copyin([]byte("x"))
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0, n)
}

func TestCopyoutWrapsAroundBuffer(t *testing.T) {
	pages := mem.AsPage1(mem.NewPageAlloc(4 * mem.PGSIZE))
	var cb Circbuf_t
	cb.Init(4, pages)

	_, err := cb.Copyin([]byte("ab"))
	require.EqualValues(t, 0, err)
	out := make([]byte, 2)
	_, err = cb.Copyout(out)
	require.EqualValues(t, 0, err)

	_, err = cb.Copyin([]byte("cdef"))
	require.EqualValues(t, 0, err)
	assert.True(t, cb.Full())

	dst := make([]byte, 8)
	n, err := cb.Copyout(dst)
	require.EqualValues(t, 0, err)
	assert.Equal(t, "cdef", string(dst[:n]))
}
