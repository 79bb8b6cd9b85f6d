package dpb

import (
	"testing"

	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
	vk "github.com/goki/vulkan"
)

func newTestImagePool(t *testing.T, n int) *imagepool.Pool {
	t.Helper()
	images := make([]vk.Image, n)
	views := make([]vk.ImageView, n)
	for i := range images {
		images[i] = vk.Image(uintptr(i + 1))
		views[i] = vk.ImageView(uintptr(i + 1))
	}
	p, err := imagepool.New(images, views)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func countReferences(d *H264Dpb) int {
	n := 0
	for i := 0; i < d.maxDpbSize; i++ {
		if d.entries[i].InUse() && d.entries[i].Reference {
			n++
		}
	}
	return n
}

// TestSlidingWindowEvictsSmallestFrameNumWrap reproduces spec §8 scenario 4:
// max_num_ref_frames=3, a 10-frame IPPP sequence with frame_num gaps {3,4}
// missing. The DPB must hold exactly three non-UNUSED entries at every step
// once it fills, and eviction always drops the smallest frameNumWrap.
func TestSlidingWindowEvictsSmallestFrameNumWrap(t *testing.T) {
	imgs := newTestImagePool(t, 16)
	d := NewH264Dpb(imgs)
	d.SequenceStart(3, 0, 0)

	frameNums := []uint32{0, 1, 2, 5, 6, 7, 8, 9}
	maxFrameNum := uint32(16)

	for step, fn := range frameNums {
		pic := &PictureInfoH264{
			PictureInfo: PictureInfo{IsIDR: fn == 0, IsReference: true},
			FrameNum:    fn,
			MaxFrameNum: maxFrameNum,
			GapsAllowed: true,
		}

		idx := d.PictureStart(pic)
		if idx < 0 {
			t.Fatalf("step %d: PictureStart returned no free slot", step)
		}
		h, err := imgs.Acquire(nil, imagepool.LayoutVideoEncodeDpb)
		if err != nil {
			t.Fatalf("step %d: acquiring image slot: %v", step, err)
		}
		d.PictureEnd(idx, h, false)
		d.entries[idx].PicNum[0] = int32(fn)
		d.entries[idx].FrameNumWrap = int32(fn)
		d.DecodedRefPicMarking(idx, pic)

		if got := countReferences(d); !pic.IsIDR && got > 3 {
			t.Fatalf("step %d (frame_num=%d): DPB holds %d references, want <= 3", step, fn, got)
		}
	}

	if got := countReferences(d); got != 3 {
		t.Fatalf("final DPB reference count = %d, want 3", got)
	}

	minWrap := int32(1 << 30)
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.Reference && e.FrameNumWrap < minWrap {
			minWrap = e.FrameNumWrap
		}
	}
	if minWrap < 7 {
		t.Fatalf("expected the three most recent frames to survive, smallest surviving frameNumWrap = %d", minWrap)
	}
}

func TestFillFrameNumGapsSynthesizesMissingEntries(t *testing.T) {
	imgs := newTestImagePool(t, 16)
	d := NewH264Dpb(imgs)
	d.SequenceStart(6, 0, 0)

	idr := &PictureInfoH264{PictureInfo: PictureInfo{IsIDR: true, IsReference: true}, FrameNum: 0, MaxFrameNum: 16, GapsAllowed: true}
	idx := d.PictureStart(idr)
	h, _ := imgs.Acquire(nil, imagepool.LayoutVideoEncodeDpb)
	d.PictureEnd(idx, h, false)
	d.DecodedRefPicMarking(idx, idr)

	pic := &PictureInfoH264{PictureInfo: PictureInfo{IsReference: true}, FrameNum: 5, MaxFrameNum: 16, GapsAllowed: true}
	d.PictureStart(pic)

	found := map[uint32]bool{}
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.NotExisting {
			found[e.FrameNum] = true
		}
	}
	if !found[1] || !found[2] || !found[3] || !found[4] {
		t.Fatalf("expected synthesized non-existing entries for frame_num 1-4, got %v", found)
	}
}
