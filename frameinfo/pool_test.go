package frameinfo

import (
	"context"
	"testing"
	"time"
)

func TestPoolTryAcquireExhausts(t *testing.T) {
	p := NewPool(2)

	fi1, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected first TryAcquire to succeed")
	}
	fi2, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected second TryAcquire to succeed")
	}
	if fi1 == fi2 {
		t.Fatal("expected distinct FrameInfo objects")
	}

	if _, ok := p.TryAcquire(); ok {
		t.Fatal("expected pool to be exhausted")
	}

	p.Release(fi1)
	fi3, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected TryAcquire to succeed after release")
	}
	if fi3 != fi1 {
		t.Fatal("expected the released FrameInfo to be recycled")
	}
}

func TestPoolReleaseResetsFrameInfo(t *testing.T) {
	p := NewPool(1)
	fi, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected TryAcquire to succeed")
	}
	fi.State = StateSubmitted
	fi.Corrupted = true
	fi.Dependants = append(fi.Dependants, &FrameInfo{})

	p.Release(fi)
	fi2, ok := p.TryAcquire()
	if !ok {
		t.Fatal("expected TryAcquire to succeed")
	}
	if fi2.Corrupted {
		t.Fatal("expected Corrupted cleared after Release")
	}
	if len(fi2.Dependants) != 0 {
		t.Fatal("expected Dependants cleared after Release")
	}
	if fi2.State != StateNew {
		t.Fatalf("expected StateNew after re-acquire, got %v", fi2.State)
	}
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	p := NewPool(1)
	fi, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		if _, err := p.Acquire(context.Background()); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("acquire should have blocked with the pool exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(fi)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPoolAcquireRespectsContextCancellation(t *testing.T) {
	p := NewPool(1)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(cctx); err == nil {
		t.Fatal("expected context deadline error")
	}
}
