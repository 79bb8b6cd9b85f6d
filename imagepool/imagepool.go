// Package imagepool implements C3: a bounded pool of DPB / input VkImage
// slots, each with a refcount and a tracked current layout. A slot is
// reusable only once its refcount reaches zero; the refcount is bumped
// once per admission to a DPB and once per FrameInfo that still points at
// the slot (spec §4.3).
package imagepool

import (
	"context"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
)

// Layout tracks the slot's currently-recorded Vulkan image layout, so the
// assembler (C6) knows whether a barrier is needed before binding.
type Layout uint32

const (
	LayoutUndefined Layout = iota
	LayoutVideoEncodeSrc
	LayoutVideoEncodeDpb
	LayoutTransferDst
)

// slot is one entry of the pool.
type slot struct {
	image          vk.Image
	view           vk.ImageView
	layout         Layout
	refcount       int32
	inEncodeQueue  bool
	inDisplayQueue bool
}

// Handle is an opaque reference to a pool slot. The zero Handle is never
// valid; Pool.Acquire always returns index+1 so callers can distinguish an
// unset field from slot 0.
type Handle struct{ idx int }

func (h Handle) valid() bool { return h.idx > 0 }

// Pool is a fixed-size set of image slots, each independently refcounted.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots []slot
}

// New creates a pool of n image slots, each already bound to the given
// image/view pair (the caller is responsible for having allocated and bound
// GPU memory to each image before handing it to the pool).
func New(images []vk.Image, views []vk.ImageView) (*Pool, error) {
	if len(images) != len(views) || len(images) == 0 {
		return nil, fmt.Errorf("imagepool: images and views must be non-empty and equal length")
	}
	p := &Pool{
		slots: make([]slot, len(images)),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range images {
		p.slots[i] = slot{image: images[i], view: views[i], layout: LayoutUndefined}
	}
	return p, nil
}

// SlotCount returns the number of slots in the pool.
func (p *Pool) SlotCount() int { return len(p.slots) }

// Acquire blocks until a slot with refcount==0 is available, then sets its
// refcount to 1 and records targetLayout as the layout required at first
// command-buffer use. It is a suspension point (spec §5): ctx cancellation
// unblocks the caller without acquiring a slot.
func (p *Pool) Acquire(ctx context.Context, targetLayout Layout) (Handle, error) {
	// Wake the waiter set when ctx is done so a cancelled caller doesn't
	// block forever behind other waiters.
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
		for i := range p.slots {
			if p.slots[i].refcount == 0 {
				p.slots[i].refcount = 1
				p.slots[i].layout = targetLayout
				return Handle{idx: i + 1}, nil
			}
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return Handle{}, ctx.Err()
			default:
			}
		}
		p.cond.Wait()
	}
}

func (p *Pool) tryAcquire(targetLayout Layout) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].refcount == 0 {
			p.slots[i].refcount = 1
			p.slots[i].layout = targetLayout
			return Handle{idx: i + 1}, true
		}
	}
	return Handle{}, false
}

// Retain bumps the refcount of an already-acquired handle (e.g. admitting
// the same image to the DPB in addition to the FrameInfo that produced it).
func (p *Pool) Retain(h Handle) {
	if !h.valid() {
		return
	}
	p.mu.Lock()
	p.slots[h.idx-1].refcount++
	p.mu.Unlock()
}

// Release decrements the handle's refcount; when it reaches zero the slot
// returns to the free set.
func (p *Pool) Release(h Handle) {
	if !h.valid() {
		return
	}
	p.mu.Lock()
	p.slots[h.idx-1].refcount--
	if p.slots[h.idx-1].refcount < 0 {
		p.slots[h.idx-1].refcount = 0
	}
	freed := p.slots[h.idx-1].refcount == 0
	p.mu.Unlock()
	if freed {
		p.cond.Broadcast()
	}
}

// IndexOf returns the slot index backing h, for serializing into hardware
// DPB-slot descriptors.
func (p *Pool) IndexOf(h Handle) int {
	if !h.valid() {
		return -1
	}
	return h.idx - 1
}

// View returns the image view and current layout for h.
func (p *Pool) View(h Handle) (vk.ImageView, Layout) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !h.valid() {
		return vk.ImageView(0), LayoutUndefined
	}
	s := p.slots[h.idx-1]
	return s.view, s.layout
}

// SetLayout records the slot's current layout after a barrier has been
// emitted for it. At most one pipeline stage mutates a slot's layout at a
// time (spec §4.3); callers must serialize their own barrier emission.
func (p *Pool) SetLayout(h Handle, layout Layout) {
	if !h.valid() {
		return
	}
	p.mu.Lock()
	p.slots[h.idx-1].layout = layout
	p.mu.Unlock()
}
