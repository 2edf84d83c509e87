// Package msgq implements the kernel message queue (§3, §4.5): an
// intrusive FIFO of envelopes plus the list of threads parked in Get.
// Blocking is delegated to the caller via the Waiter interface so this
// package stays independent of the scheduler — sched.Thread implements
// Waiter, not the other way around.
package msgq

import (
	"container/list"
	"sync"
)

// Waiter is implemented by whatever can block waiting for a message —
// sched.Thread in practice.
type Waiter interface {
	// Park suspends the caller until some other goroutine makes it
	// runnable again. Get calls this in a loop, re-checking the queue
	// on every wakeup since waiters race to dequeue.
	Park()
}

type envelope_t struct {
	msg interface{}
}

// noneT is the distinguished type of MsgNone.
type noneT struct{}

// MsgNone is returned by GetNowait when the queue is empty.
var MsgNone interface{} = noneT{}

// Queue_t is one message queue.
type Queue_t struct {
	mu      sync.Mutex
	envs    *list.List // of *envelope_t
	waiters []Waiter
}

// New constructs an empty queue.
func New() *Queue_t {
	return &Queue_t{envs: list.New()}
}

// Send appends msg and returns the threads that were parked in Get, so
// the caller — itself a live thread — can reschedule them (§4.5:
// "drop the lock and schedule that list"). The caller decides how;
// this package has no opinion on scheduling policy.
func (q *Queue_t) Send(msg interface{}) []Waiter {
	q.mu.Lock()
	q.envs.PushBack(&envelope_t{msg: msg})
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()
	return waiters
}

// Get pops the head envelope, parking self via Waiter.Park when the
// queue is empty and retrying on every wakeup.
func (q *Queue_t) Get(self Waiter) interface{} {
	for {
		q.mu.Lock()
		if front := q.envs.Front(); front != nil {
			q.envs.Remove(front)
			q.mu.Unlock()
			return front.Value.(*envelope_t).msg
		}
		q.waiters = append(q.waiters, self)
		q.mu.Unlock()
		self.Park()
	}
}

// GetNowait pops the head envelope without blocking, returning MsgNone
// if the queue is empty.
func (q *Queue_t) GetNowait() interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.envs.Front()
	if front == nil {
		return MsgNone
	}
	q.envs.Remove(front)
	return front.Value.(*envelope_t).msg
}

// Len reports the number of undelivered envelopes.
func (q *Queue_t) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.envs.Len()
}
