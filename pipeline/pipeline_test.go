package pipeline

import (
	"context"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/rs/zerolog"

	"github.com/NOT-REAL-GAMES/vkvideoenc/bitstreampool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/demux"
	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/frameinfo"
	"github.com/NOT-REAL-GAMES/vkvideoenc/gop"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// fixedSource hands back n identical, zero-filled frames.
type fixedSource struct{ n uint32 }

func (s fixedSource) FrameCount() uint32 { return s.n }
func (s fixedSource) LoadFrame(uint32) (demux.Frame, error) {
	return demux.Frame{Y: make([]byte, 16), Chroma: [][]byte{make([]byte, 8)}, Stride: []int{4}}, nil
}

// recordingOutput captures every WriteUnit call in order, so tests can
// compare two runs byte-for-byte.
type recordingOutput struct{ units [][]byte }

func (o *recordingOutput) WriteUnit(prelude, payload []byte, _ uint64) {
	unit := make([]byte, 0, len(prelude)+len(payload))
	unit = append(unit, prelude...)
	unit = append(unit, payload...)
	o.units = append(o.units, unit)
}

func newTestPipeline(t *testing.T, n int, out Output, drv driver.Driver) (*Pipeline, func()) {
	t.Helper()

	images, err := imagepool.New(make([]vk.Image, n), make([]vk.ImageView, n))
	if err != nil {
		t.Fatal(err)
	}

	buffers := make([]vk.Buffer, n)
	memories := make([]vk.DeviceMemory, n)
	sizes := make([]uint64, n)
	slots := make([]uint32, n)
	fences := make([]vk.Fence, n)
	mapped := make([][]byte, n)
	for i := 0; i < n; i++ {
		buffers[i] = vk.Buffer(uintptr(i + 1))
		memories[i] = vk.DeviceMemory(uintptr(i + 1))
		sizes[i] = 4096
		slots[i] = uint32(i)
		fences[i] = vk.Fence(uintptr(i + 1))
		mapped[i] = make([]byte, sizes[i])
	}
	bitstreams, err := bitstreampool.New(buffers, memories, sizes, slots, fences, mapped)
	if err != nil {
		t.Fatal(err)
	}

	frames := frameinfo.NewPool(n)

	cfg := Config{
		Codec:          driver.CodecH264,
		Gop:            testGopConfig(t),
		MaxDpbSlots:    4,
		MaxActiveRefL0: 2,
		MaxActiveRefL1: 1,
		InputExtent:    driver.Extent2D{Width: 16, Height: 16},
		QualityLevel:   0,
		FenceTimeoutRetries: 1,
	}

	p := New(cfg, drv, fixedSource{n: 6}, images, bitstreams, frames, vk.Queue(0), out, zerolog.Nop())
	return p, func() {}
}

func testGopConfig(t *testing.T) gop.Config {
	t.Helper()
	cfg := gop.Config{
		GopFrameCount:          6,
		IdrPeriod:              0,
		ConsecutiveBFrameCount: 2,
		TemporalLayerCount:     1,
		ClosedGop:              true,
		PreIdrAnchorType:       gop.FrameTypeP,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunProducesOneUnitPerFrame(t *testing.T) {
	out := &recordingOutput{}
	p, cleanup := newTestPipeline(t, 8, out, driver.NewSimulated())
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out.units) != 6 {
		t.Fatalf("expected 6 coded units, got %d", len(out.units))
	}
}

// TestRunSurvivesMidSequenceDriverFailure reproduces a mid-sequence query
// failure on one picture (spec §8 scenario 6): the run must still complete
// and commit every other picture, with only the corrupted picture's bytes
// withheld from Output.
func TestRunSurvivesMidSequenceDriverFailure(t *testing.T) {
	out := &recordingOutput{}
	sim := driver.NewSimulated()
	// Force one query-pool slot to report QueryErrorUnspecified once,
	// simulating a corrupted reconstruction on whichever picture happens
	// to hold that slot when it is queried.
	sim.FailQuerySlot(2)

	p, cleanup := newTestPipeline(t, 8, out, sim)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The run must still reach completion and flush every non-corrupted
	// picture; assembleLoop skips writeUnit for a corrupted picture, so its
	// coded unit is missing from Output rather than written short.
	if len(out.units) == 0 {
		t.Fatal("expected at least some coded units despite the injected failure")
	}
}

// TestRunAV1SynthesizesShowExistingFrame reproduces spec.md §4.7/§8's
// requirement that AV1 output include a synthesized show_existing_frame
// record for every deferred anchor: a forward anchor coded ahead of the
// B-run it references must be followed in Output by one extra, header-only
// unit once that run has flushed.
func TestRunAV1SynthesizesShowExistingFrame(t *testing.T) {
	out := &recordingOutput{}
	p, cleanup := newTestPipeline(t, 8, out, driver.NewSimulated())
	defer cleanup()

	p.cfg.Codec = driver.CodecAV1
	p.sess = newAV1Session(p.images, p.cfg.MaxActiveRefL0, p.cfg.MaxActiveRefL1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 6 input frames under GopFrameCount=6, ConsecutiveBFrameCount=2,
	// ClosedGop=true: IDR(0), B(1), B(2), P(3, anchors 1+2), B(4),
	// P(5, promoted close-GOP anchor, anchors 4). Both P anchors carry a
	// pending B-run behind them, so two show_existing_frame units are
	// expected alongside the six coded pictures.
	const wantCoded = 6
	const wantShowExisting = 2
	if len(out.units) != wantCoded+wantShowExisting {
		t.Fatalf("expected %d units (%d coded + %d show_existing), got %d", wantCoded+wantShowExisting, wantCoded, wantShowExisting, len(out.units))
	}
}

func TestRunSurvivesSubmitFailure(t *testing.T) {
	out := &recordingOutput{}
	sim := driver.NewSimulated()
	sim.FailNextSubmit()

	p, cleanup := newTestPipeline(t, 8, out, sim)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}
