package queue

import (
	"context"
	"sync"

	"guildgate/internal/domain"
)

// MemoryQueue is an unbounded in-process FIFO. Delivery is at-most-once:
// items still queued when the process exits are lost.
type MemoryQueue struct {
	mu       sync.Mutex
	items    []*domain.VerificationRequest
	consumer sync.Mutex
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, req *domain.VerificationRequest) error {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*domain.VerificationRequest, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false, nil
	}
	req := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return req, true, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// AcquireLease is process-local; the queue cannot be shared between processes
func (q *MemoryQueue) AcquireLease(ctx context.Context) (Lease, error) {
	if !q.consumer.TryLock() {
		return nil, ErrLeaseHeld
	}
	return &memoryLease{q: q}, nil
}

type memoryLease struct {
	q    *MemoryQueue
	once sync.Once
}

func (l *memoryLease) Refresh(ctx context.Context) error {
	return nil
}

func (l *memoryLease) Release(ctx context.Context) error {
	l.once.Do(l.q.consumer.Unlock)
	return nil
}
