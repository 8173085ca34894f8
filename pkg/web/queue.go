package web

import "sync/atomic"

// Command queue limits
const (
	QueueCapacity    = 20
	MaxCommandLength = 64
)

// Queue is a bounded, non-blocking FIFO of raw query strings.
type Queue struct {
	ch      chan string
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to capacity commands.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Put enqueues cmd, truncated to MaxCommandLength. It reports false and
// drops cmd when the queue is full.
func (q *Queue) Put(cmd string) bool {
	if len(cmd) > MaxCommandLength {
		cmd = cmd[:MaxCommandLength]
	}
	select {
	case q.ch <- cmd:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// TryGet dequeues one command without waiting.
func (q *Queue) TryGet() (string, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return "", false
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many commands were dropped because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
