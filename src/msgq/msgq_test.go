package msgq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWaiter stands in for a scheduler thread: Park blocks the calling
// goroutine until Release is called.
type fakeWaiter struct {
	release chan struct{}
}

func newFakeWaiter() *fakeWaiter { return &fakeWaiter{release: make(chan struct{})} }
func (w *fakeWaiter) Park()      { <-w.release }
func (w *fakeWaiter) wake()      { close(w.release) }

func TestGetNowaitEmpty(t *testing.T) {
	q := New()
	assert.Equal(t, MsgNone, q.GetNowait())
}

func TestSendThenGetNowait(t *testing.T) {
	q := New()
	q.Send(7)
	assert.Equal(t, 7, q.GetNowait())
	assert.Equal(t, MsgNone, q.GetNowait())
}

func TestGetBlocksUntilSend(t *testing.T) {
	q := New()
	w := newFakeWaiter()

	var got interface{}
	done := make(chan struct{})
	go func() {
		got = q.Get(w)
		close(done)
	}()

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)

	waiters := q.Send("hello")
	require.Len(t, waiters, 1)
	for _, w := range waiters {
		w.(*fakeWaiter).wake()
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Get never returned")
	}
	assert.Equal(t, "hello", got)
}

func TestSendWithNoWaitersReturnsEmpty(t *testing.T) {
	q := New()
	waiters := q.Send(1)
	assert.Empty(t, waiters)
}
