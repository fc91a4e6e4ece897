// Package stream carries decoded transcript chunks from the session's read
// side to whoever wants to observe output incrementally (HTTP streaming,
// tmux mirroring, stderr echo). It is a plain producer/consumer queue; the
// control loop never depends on it.
package stream

import "sync"

// Queue is an ordered queue of text chunks. Pushing never blocks the
// producer: when the consumer falls behind and the buffer fills, the oldest
// chunk is dropped. Chunks are presentation data, so losing one under
// pressure is preferable to stalling the debugger read loop.
type Queue struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

// NewQueue creates a queue buffering up to size chunks. size <= 0 picks a
// default suited to per-command debugger output volume.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan string, size)}
}

// Push enqueues a chunk. Safe to call after Close (the chunk is discarded).
func (q *Queue) Push(text string) {
	if text == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- text:
			return
		default:
		}
		// Full: evict the oldest chunk and retry.
		select {
		case <-q.ch:
		default:
		}
	}
}

// Chunks returns the consumer side. The channel closes after Close.
func (q *Queue) Chunks() <-chan string {
	return q.ch
}

// Close marks the end of the stream. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
