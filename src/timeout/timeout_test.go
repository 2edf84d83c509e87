package timeout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanokernel/src/timer"
)

type recorder struct {
	mu  sync.Mutex
	got []int
}

func (r *recorder) Wake(retval int) {
	r.mu.Lock()
	r.got = append(r.got, retval)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDeadlinesDeliveredNondecreasing(t *testing.T) {
	src := timer.NewSimSource()
	q := New(src)

	var mu sync.Mutex
	var order []int64

	now := src.Now()
	for _, d := range []int64{30e6, 10e6, 20e6} {
		d := d
		q.WakeCallback(now+d, func(arg1, arg2 int) {
			mu.Lock()
			order = append(order, int64(arg1))
			mu.Unlock()
		}, int(d), 0)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t, order[i-1], order[i], "deadlines must fire nondecreasing")
	}
}

func TestCancelWakesSleeperAnyway(t *testing.T) {
	src := timer.NewSimSource()
	q := New(src)
	r := &recorder{}

	e := q.WakeAt(src.Now()+int64(time.Hour), r, -1)
	ok := q.Cancel(e)
	assert.True(t, ok)
	assert.Equal(t, 1, r.len())
	assert.Equal(t, -1, r.got[0])
}

func TestCancelMatchMassCancellation(t *testing.T) {
	src := timer.NewSimSource()
	q := New(src)

	var fired int32
	var mu sync.Mutex
	cb := func(arg1, arg2 int) {
		mu.Lock()
		fired++
		mu.Unlock()
	}
	q.WakeCallback(src.Now()+int64(time.Hour), cb, 42, 7)
	q.WakeCallback(src.Now()+int64(time.Hour), cb, 42, 7)
	q.WakeCallback(src.Now()+int64(time.Hour), cb, 99, 0)

	n := q.CancelMatch(42, 7)
	assert.Equal(t, 2, n)
	mu.Lock()
	defer mu.Unlock()
	assert.EqualValues(t, 2, fired)
}
