package scanner

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// SlotPool is a fixed pool of concurrency slots
// Acquire blocks while every slot is held; Release hands one back.
// InUse never exceeds Capacity, and Peak records the highest InUse observed.
type SlotPool struct {
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
	peak     atomic.Int64
}

// NewSlotPool creates a pool with the given number of slots (minimum 1)
func NewSlotPool(capacity int) *SlotPool {
	if capacity < 1 {
		capacity = 1
	}
	return &SlotPool{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire takes one slot, blocking until one is free or ctx is done
func (p *SlotPool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := p.inUse.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	return nil
}

// Release returns one slot to the pool
// Releasing more slots than were acquired panics.
func (p *SlotPool) Release() {
	// Decrement before handing the slot back so InUse never over-reports
	p.inUse.Add(-1)
	p.sem.Release(1)
}

// Capacity returns the number of slots the pool was created with
func (p *SlotPool) Capacity() int {
	return int(p.capacity)
}

// InUse returns the number of slots currently held
func (p *SlotPool) InUse() int {
	return int(p.inUse.Load())
}

// Peak returns the highest number of slots ever held at once
func (p *SlotPool) Peak() int {
	return int(p.peak.Load())
}
