package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/timeout"
	"nanokernel/src/timer"
)

func newTestSched(t *testing.T) (*Sched_t, *Thread) {
	src := timer.NewSimSource()
	tq := timeout.New(src)
	s := Init(1, tq)

	ready := make(chan struct{})
	init := s.Bootstrap(func() {
		close(ready)
		<-make(chan struct{}) // park forever; test drives everything else
	})
	require.Eventually(t, func() bool {
		select {
		case <-ready:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	return s, init
}

// TestTidUniqueness covers §8 property 1: no two live threads share a
// tid, and tid 1 is never handed out by Clone.
func TestTidUniqueness(t *testing.T) {
	s, init := newTestSched(t)

	seen := map[int]bool{int(init.Tid): true}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		child, err := s.Clone(init, NPRIO/2, func() {})
		require.EqualValues(t, 0, err)
		go func() {
			defer wg.Done()
			mu.Lock()
			assert.False(t, seen[int(child.Tid)], "tid reused while still live")
			assert.NotEqual(t, 1, int(child.Tid), "tid 1 is reserved")
			seen[int(child.Tid)] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
}

// TestReadyQueueInvariant covers §8 property 2: every thread in a
// ready queue is in state READY, and getRunning always returns the
// head of the highest nonempty priority queue.
func TestReadyQueueInvariant(t *testing.T) {
	s, init := newTestSched(t)

	low, _ := s.Clone(init, 5, func() { select {} })
	high, _ := s.Clone(init, 1, func() { select {} })

	s.mu.Lock()
	assert.Equal(t, READY, low.State())
	assert.Equal(t, READY, high.State())
	next := s.getRunning(s.cpus[0])
	s.mu.Unlock()

	assert.Equal(t, high.Tid, next.Tid, "higher priority (lower number) must run first")
	assert.Equal(t, RUNNING, next.State())
}

// TestCloneDoesNotYieldParent exercises the documented "parent does
// not yield" rule from thread creation.
func TestCloneDoesNotYieldParent(t *testing.T) {
	s, init := newTestSched(t)
	before := init.State()
	_, err := s.Clone(init, NPRIO/2, func() {})
	require.EqualValues(t, 0, err)
	assert.Equal(t, before, init.State(), "cloning must not change the parent's own state")
}
