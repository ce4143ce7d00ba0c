package admission

import (
	"sync"

	"github.com/gammazero/deque"
)

// queued is one deferred admission.
type queued struct {
	ip     string
	admit  func()
	reject func()
}

// Queue defers admissions while the gateway is at its verifying
// capacity. At most one entry is held per address, re-submission
// replaces the deferred actions but keeps the queue position.
type Queue struct {
	mu      sync.Mutex
	order   *deque.Deque[string]
	pending map[string]queued
}

func NewQueue() *Queue {
	return &Queue{
		order:   new(deque.Deque[string]),
		pending: map[string]queued{},
	}
}

// Push defers an admission until a Poll with free capacity.
// It reports false if the address already had a deferred admission,
// in which case the actions are replaced and the old connection
// is rejected.
func (q *Queue) Push(ip string, admit, reject func()) bool {
	q.mu.Lock()
	old, replaced := q.pending[ip]
	q.pending[ip] = queued{ip: ip, admit: admit, reject: reject}
	if !replaced {
		q.order.PushBack(ip)
	}
	q.mu.Unlock()
	if replaced && old.reject != nil {
		old.reject()
	}
	return !replaced
}

// Poll removes and returns up to max deferred admissions
// in insertion order.
func (q *Queue) Poll(max int) []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var polled []queued
	for len(polled) < max && q.order.Len() > 0 {
		ip := q.order.PopFront()
		e, ok := q.pending[ip]
		if !ok {
			continue // removed while queued
		}
		delete(q.pending, ip)
		polled = append(polled, e)
	}
	return polled
}

// Remove drops a deferred admission without running any action.
func (q *Queue) Remove(ip string) {
	q.mu.Lock()
	delete(q.pending, ip)
	q.mu.Unlock()
}

// Drain removes and returns all deferred admissions, emptying the queue.
func (q *Queue) Drain() []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var all []queued
	for q.order.Len() > 0 {
		ip := q.order.PopFront()
		if e, ok := q.pending[ip]; ok {
			delete(q.pending, ip)
			all = append(all, e)
		}
	}
	return all
}

// Len returns the number of deferred admissions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
