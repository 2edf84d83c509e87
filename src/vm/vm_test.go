package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/mem"
)

func newTestVm(t *testing.T) *Vm_t {
	pages := mem.NewPageAlloc(8 * 1024 * 1024)
	return New(pages, NewSoftMMU())
}

// assertSegmentInvariant checks §8 property 3: strictly increasing
// addresses, sizes summing to the address space size, no adjacent FREE
// segments.
func assertSegmentInvariant(t *testing.T, vm *Vm_t) {
	vm.Lock()
	defer vm.Unlock()
	var prevEnd uintptr
	var prevFree bool
	first := true
	total := 0
	for e := vm.segs.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Segment_t)
		if !first {
			assert.Equal(t, prevEnd, s.Addr, "segment list must be contiguous")
			if prevFree {
				assert.False(t, s.Flags&FFREE != 0, "adjacent FREE segments must coalesce")
			}
		}
		prevEnd = s.Addr + uintptr(s.Size)
		prevFree = s.Flags&FFREE != 0
		total += s.Size
		first = false
	}
	assert.Equal(t, int(USERLIMIT-USERMIN), total)
}

func TestAllocateZeroFillAndWrite(t *testing.T) {
	vm := newTestVm(t)
	addr, err := vm.Allocate(true, 0, 8192, true)
	require.EqualValues(t, 0, err)
	assert.True(t, addr%uintptr(mem.PGSIZE) == 0)

	for _, off := range []int{0, 4096, 8191} {
		v, err := vm.Userreadn(int(addr)+off, 1)
		require.EqualValues(t, 0, err)
		assert.Equal(t, 0, v)
	}
	assert.EqualValues(t, 0, vm.Userwriten(int(addr), 1, 0x42))
	v, err := vm.Userreadn(int(addr), 1)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0x42, v)

	assertSegmentInvariant(t, vm)

	assert.EqualValues(t, 0, vm.Free(addr, 8192))
	assertSegmentInvariant(t, vm)

	_, err = vm.Userreadn(int(addr), 1)
	assert.NotEqualValues(t, 0, err, "reading after munmap must fault")
}

func TestDupSharesReadOnlyCopiesWritable(t *testing.T) {
	vm := newTestVm(t)
	roAddr, err := vm.Allocate(true, 0, 4096, false)
	require.EqualValues(t, 0, err)
	rwAddr, err := vm.Allocate(true, 0, 4096, true)
	require.EqualValues(t, 0, err)
	require.EqualValues(t, 0, vm.Userwriten(int(rwAddr), 1, 0x7))

	child, err := vm.Dup()
	require.EqualValues(t, 0, err)

	roSeg := child.segmentFor(roAddr).Value.(*Segment_t)
	assert.True(t, roSeg.Flags&FSHARED != 0, "read-only segment must be shared after dup")

	rwSeg := child.segmentFor(rwAddr).Value.(*Segment_t)
	assert.False(t, rwSeg.Flags&FSHARED != 0, "writable segment must be eagerly copied, not shared")
	v, err := child.Userreadn(int(rwAddr), 1)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0x7, v, "copy must carry over contents")

	require.EqualValues(t, 0, child.Userwriten(int(rwAddr), 1, 0x9))
	v, err = vm.Userreadn(int(rwAddr), 1)
	require.EqualValues(t, 0, err)
	assert.Equal(t, 0x7, v, "writes to the child's private copy must not leak to the parent")
}

func TestSharedRingInvariantOnBreakSharing(t *testing.T) {
	vm := newTestVm(t)
	addr, err := vm.Allocate(true, 0, 4096, false)
	require.EqualValues(t, 0, err)

	child, err := vm.Dup()
	require.EqualValues(t, 0, err)

	parentSeg := vm.segmentFor(addr).Value.(*Segment_t)
	childSeg := child.segmentFor(addr).Value.(*Segment_t)
	require.NotNil(t, parentSeg.shareNode)
	require.NotNil(t, childSeg.shareNode)
	assert.True(t, parentSeg.shareNode.next == childSeg.shareNode || parentSeg.shareNode.prev == childSeg.shareNode)

	// break sharing in the child by attributing WRITE
	assert.EqualValues(t, 0, child.Attribute(addr, 4096, FREAD|FWRITE))
	childSeg = child.segmentFor(addr).Value.(*Segment_t)
	assert.False(t, childSeg.Flags&FSHARED != 0, "breaking sharing clears SHARED on the writer")

	// a ring of one sharer is impossible: the parent, now alone, is no
	// longer flagged SHARED either
	parentSeg = vm.segmentFor(addr).Value.(*Segment_t)
	assert.False(t, parentSeg.Flags&FSHARED != 0, "last remaining sharer is not left flagged SHARED")
}

func TestMapClampsWritePermission(t *testing.T) {
	a := newTestVm(t)
	b := New(a.pages, NewSoftMMU())

	addr, err := a.Allocate(true, 0, 4096, false)
	require.EqualValues(t, 0, err)

	mapped, err := b.Map(a, addr, 4096, true)
	require.EqualValues(t, 0, err)
	seg := b.segmentFor(mapped).Value.(*Segment_t)
	assert.True(t, seg.Flags&FMAPPED != 0)
	assert.False(t, seg.Flags&FWRITE != 0, "map must clamp to the target's read-only permission")
}
