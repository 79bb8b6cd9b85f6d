// Package bitstreampool implements C4: a bounded pool of host-visible
// output buffers, each acquisition also tying one unused query-pool slot
// and one fence (spec §4.4).
package bitstreampool

import (
	"context"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
)

// headroom is added on top of the 3/2-scaled coded extent to absorb worst
// case I-frame bit cost, mirroring the teacher's bitstreamSize sizing in
// video_encoder_h265_hw.go (4MB fixed there; here computed per-extent).
const headroom = 64 * 1024

// Size returns the buffer size for a coded extent: max(extent*3/2 +
// headroom, min).
func Size(width, height uint32, min uint64) uint64 {
	frameBytes := uint64(width) * uint64(height) * 3 / 2
	sized := frameBytes + headroom
	if sized < min {
		return min
	}
	return sized
}

// Entry is one acquired bitstream buffer plus its tied query slot and fence.
type Entry struct {
	Buffer       vk.Buffer
	Memory       vk.DeviceMemory
	Size         uint64
	QueryPoolSlot uint32
	Fence        vk.Fence

	// Mapped is the persistently host-mapped view of Memory the Assemble
	// stage reads encoded bytes from once the query-pool result reports
	// the bitstream's start offset and size (spec §4.7 "Assemble"). Like
	// Buffer/Memory, populating it is the caller's responsibility.
	Mapped []byte
}

type item struct {
	entry Entry
	inUse bool
}

// Pool is a fixed-size set of bitstream buffers with 1:1 query-slot/fence
// assignment.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []item
}

// New wraps n pre-allocated (buffer, memory, query slot, fence) tuples into
// a pool. Allocation of the underlying GPU objects is the caller's
// responsibility (out of CORE scope, spec §1).
func New(buffers []vk.Buffer, memories []vk.DeviceMemory, sizes []uint64, querySlots []uint32, fences []vk.Fence, mapped [][]byte) (*Pool, error) {
	n := len(buffers)
	if n == 0 || len(memories) != n || len(sizes) != n || len(querySlots) != n || len(fences) != n || len(mapped) != n {
		return nil, fmt.Errorf("bitstreampool: all slices must be non-empty and equal length")
	}
	p := &Pool{items: make([]item, n)}
	p.cond = sync.NewCond(&p.mu)
	for i := range buffers {
		p.items[i] = item{entry: Entry{
			Buffer:        buffers[i],
			Memory:        memories[i],
			Size:          sizes[i],
			QueryPoolSlot: querySlots[i],
			Fence:         fences[i],
			Mapped:        mapped[i],
		}}
	}
	return p, nil
}

// Acquire blocks until a buffer is free, then marks it in use and returns
// it. It is a suspension point (spec §5).
func (p *Pool) Acquire(ctx context.Context) (Entry, error) {
	if ctx != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for i := range p.items {
			if !p.items[i].inUse {
				p.items[i].inUse = true
				return p.items[i].entry, nil
			}
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return Entry{}, ctx.Err()
			default:
			}
		}
		p.cond.Wait()
	}
}

// Release returns a buffer (identified by its query-pool slot, which is
// unique per entry) to the free set.
func (p *Pool) Release(querySlot uint32) {
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].entry.QueryPoolSlot == querySlot {
			p.items[i].inUse = false
			break
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}
