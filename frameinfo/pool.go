package frameinfo

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool is a bounded ring of reusable FrameInfo objects. Its size bounds the
// number of pictures that may be in flight at once and is the pipeline's
// primary backpressure mechanism (spec §4.2); the typical size is
// numInputImages + 2*consecutiveBFrameCount + 2.
type Pool struct {
	sem   *semaphore.Weighted
	slots []*FrameInfo
	free  chan *FrameInfo
}

// NewPool creates a pool of size reusable, already-reset FrameInfo objects.
func NewPool(size int) *Pool {
	p := &Pool{
		sem:   semaphore.NewWeighted(int64(size)),
		slots: make([]*FrameInfo, size),
		free:  make(chan *FrameInfo, size),
	}
	for i := range p.slots {
		p.slots[i] = &FrameInfo{State: StateReset}
		p.free <- p.slots[i]
	}
	return p
}

// Size returns the pool's fixed slot count, so callers can size their own
// channel buffers to match the maximum number of in-flight pictures.
func (p *Pool) Size() int { return len(p.slots) }

// TryAcquire returns a reset FrameInfo without blocking, or (nil, false) if
// the pool is currently exhausted.
func (p *Pool) TryAcquire() (*FrameInfo, bool) {
	if !p.sem.TryAcquire(1) {
		return nil, false
	}
	fi := <-p.free
	fi.State = StateNew
	return fi, true
}

// Acquire blocks until a FrameInfo becomes available. Pool exhaustion never
// propagates as an error in the CORE's failure semantics (spec §7); callers
// that want to detect a stuck pipeline should combine this with their own
// cycle-detection, not treat ctx cancellation here as a fatal condition.
func (p *Pool) Acquire(ctx context.Context) (*FrameInfo, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	fi := <-p.free
	fi.State = StateNew
	return fi, nil
}

// Release resets fi and returns it to the free set. It is the caller's
// responsibility to have already released fi's handles into their owning
// pools (imagepool, bitstreampool) — Release here only recycles the
// FrameInfo struct itself.
func (p *Pool) Release(fi *FrameInfo) {
	fi.Reset()
	p.free <- fi
	p.sem.Release(1)
}
