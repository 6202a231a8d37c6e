// Package queue provides the producer-to-manager handoff: an Ingestion
// Queue of owned record batches, built directly on the bounded, lock-free
// MPSC queue from code.hybscloud.com/lfq rather than hand-rolled atomics.
package queue

import (
	"context"
	"time"

	"code.hybscloud.com/lfq"
)

// Batch is a contiguous, owned slice of records in flight from a producer
// to the manager. Ownership transfers on a successful Push: the producer
// must not read from a batch again once it has been handed to the queue.
type Batch[K any] struct {
	Records []K
}

// Ingestion is the multi-producer, single-consumer queue of pending
// batches. The manager goroutine is the sole consumer.
type Ingestion[K any] struct {
	q *lfq.MPSC[*Batch[K]]
}

// capacityForThreads derives the queue capacity from a concurrency hint,
// giving each producer headroom for a few in-flight batches.
func capacityForThreads(threads int) int {
	if threads <= 0 {
		threads = 1
	}
	c := nextPow2(threads * 256)
	if c < 64 {
		c = 64
	}
	return c
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New constructs an Ingestion queue sized for the given concurrency hint.
func New[K any](threads int) *Ingestion[K] {
	return &Ingestion[K]{q: lfq.NewMPSC[*Batch[K]](capacityForThreads(threads))}
}

// Push copies buf[from:to] into a freshly allocated batch and enqueues it,
// spin-retrying with a short sleep while the queue reports ErrWouldBlock
// (cooperative backpressure). Returns ctx.Err() if the context is canceled
// while waiting for room.
func (iq *Ingestion[K]) Push(ctx context.Context, buf []K, from, to int) error {
	records := make([]K, to-from)
	copy(records, buf[from:to])
	batch := &Batch[K]{Records: records}

	for {
		err := iq.q.Enqueue(&batch)
		if err == nil {
			return nil
		}
		if !lfq.IsWouldBlock(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Microsecond * 50):
		}
	}
}

// TryPop performs a single non-blocking dequeue attempt.
func (iq *Ingestion[K]) TryPop() (*Batch[K], bool) {
	b, err := iq.q.Dequeue()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Drain signals that no further enqueues will be attempted, letting the
// manager dequeue remaining items without producers racing it at shutdown.
func (iq *Ingestion[K]) Drain() {
	iq.q.Drain()
}

// Cap reports the queue's physical capacity.
func (iq *Ingestion[K]) Cap() int {
	return iq.q.Cap()
}
