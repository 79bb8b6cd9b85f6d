package bitstreampool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	vk "github.com/goki/vulkan"
)

func newTestPool(t *testing.T, n int) *Pool {
	t.Helper()
	buffers := make([]vk.Buffer, n)
	memories := make([]vk.DeviceMemory, n)
	sizes := make([]uint64, n)
	slots := make([]uint32, n)
	fences := make([]vk.Fence, n)
	mapped := make([][]byte, n)
	for i := range buffers {
		buffers[i] = vk.Buffer(uintptr(i + 1))
		memories[i] = vk.DeviceMemory(uintptr(i + 1))
		sizes[i] = 4096
		slots[i] = uint32(i)
		fences[i] = vk.Fence(uintptr(i + 1))
		mapped[i] = make([]byte, sizes[i])
	}
	p, err := New(buffers, memories, sizes, slots, fences, mapped)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewRejectsMismatchedLengths(t *testing.T) {
	_, err := New(
		[]vk.Buffer{1, 2},
		[]vk.DeviceMemory{1, 2},
		[]uint64{4096, 4096},
		[]uint32{0, 1},
		[]vk.Fence{1},
		[][]byte{{}, {}},
	)
	require.Error(t, err, "expected error for mismatched fences slice length")
}

func TestAcquireReleaseReusesSlot(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	e1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e1.QueryPoolSlot == e2.QueryPoolSlot {
		t.Fatal("expected distinct query pool slots")
	}

	p.Release(e1.QueryPoolSlot)
	e3, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e3.QueryPoolSlot != e1.QueryPoolSlot {
		t.Fatalf("expected slot %d reused, got %d", e1.QueryPoolSlot, e3.QueryPoolSlot)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()

	e1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		if _, err := p.Acquire(ctx); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("acquire should have blocked with no free entries")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(e1.QueryPoolSlot)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()
	if _, err := p.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(cctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestEntryExposesMappedBytes(t *testing.T) {
	p := newTestPool(t, 1)
	e, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Mapped, int(e.Size))
}
