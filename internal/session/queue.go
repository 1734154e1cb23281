package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("chunk queue closed")

type PopStatus int

const (
	PopChunk PopStatus = iota
	PopEmpty
	PopClosed
)

func (s PopStatus) String() string {
	switch s {
	case PopChunk:
		return "chunk"
	case PopEmpty:
		return "empty"
	case PopClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChunkQueue is an unbounded FIFO between the ingress producer and the
// request source consumer. Close acts as the end-of-stream sentinel: items
// pushed before it are still drained, after it every pop reports PopClosed.
type ChunkQueue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	ready  chan struct{}
}

func NewChunkQueue() *ChunkQueue {
	return &ChunkQueue{ready: make(chan struct{}, 1)}
}

func (q *ChunkQueue) Push(chunk []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, chunk)
	q.signalLocked()
	return nil
}

// Requeue puts a chunk back at the head of the queue. It is accepted even
// after Close so that audio handed back by a retired attempt is not lost.
func (q *ChunkQueue) Requeue(chunk []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([][]byte{chunk}, q.items...)
	q.signalLocked()
}

// Close pushes the sentinel. It reports whether this call closed the queue.
func (q *ChunkQueue) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	q.signalLocked()
	return true
}

func (q *ChunkQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pop waits up to timeout for a chunk. PopEmpty means no data yet and is
// distinct from PopClosed; a cancelled ctx also yields PopEmpty.
func (q *ChunkQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, PopStatus) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if chunk, status, ok := q.tryPop(); ok {
			return chunk, status
		}
		select {
		case <-q.ready:
		case <-timer.C:
			if chunk, status, ok := q.tryPop(); ok {
				return chunk, status
			}
			return nil, PopEmpty
		case <-ctx.Done():
			return nil, PopEmpty
		}
	}
}

func (q *ChunkQueue) tryPop() ([]byte, PopStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		chunk := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		if len(q.items) > 0 || q.closed {
			q.signalLocked()
		}
		return chunk, PopChunk, true
	}
	if q.closed {
		q.signalLocked()
		return nil, PopClosed, true
	}
	return nil, PopEmpty, false
}

func (q *ChunkQueue) signalLocked() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
