// Package queue buffers verification requests between the OAuth callback
// (many producers) and the verification job (single consumer).
package queue

import (
	"context"
	"errors"

	"guildgate/internal/domain"
)

// Queue is a FIFO of verification requests. Enqueue never blocks on the
// consumer. Dequeue returns ok=false when the queue is empty.
//
// Consumers must hold the lease from AcquireLease while dequeuing; it is the
// only thing keeping two drains (in one process or several) from running at
// once. AcquireLease returns ErrLeaseHeld when another consumer has it.
type Queue interface {
	Enqueue(ctx context.Context, req *domain.VerificationRequest) error
	Dequeue(ctx context.Context) (req *domain.VerificationRequest, ok bool, err error)
	Len(ctx context.Context) (int, error)
	AcquireLease(ctx context.Context) (Lease, error)
}

// Lease is exclusive consumer rights on a queue. Refresh returns ErrLeaseLost
// once the lease has expired or been taken over.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// ErrCorruptItem is returned by Dequeue when an item was removed but could not
// be decoded. The queue remains usable.
var ErrCorruptItem = errors.New("corrupt queue item")

var (
	ErrLeaseHeld = errors.New("queue lease held by another consumer")
	ErrLeaseLost = errors.New("queue lease lost")
)
