package assembler

import (
	"context"
	"testing"

	gomock "github.com/golang/mock/gomock"
	vk "github.com/goki/vulkan"

	"github.com/NOT-REAL-GAMES/vkvideoenc/bitstreampool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/frameinfo"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

func newTestImages(t *testing.T, n int) *imagepool.Pool {
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

func TestAssembleSetsSetupAndReferenceSlots(t *testing.T) {
	imgs := newTestImages(t, 4)
	sim := driver.NewSimulated()
	a := New(imgs, sim)

	src, err := imgs.Acquire(context.Background(), imagepool.LayoutVideoEncodeSrc)
	if err != nil {
		t.Fatal(err)
	}
	dpbSlot, err := imgs.Acquire(context.Background(), imagepool.LayoutVideoEncodeDpb)
	if err != nil {
		t.Fatal(err)
	}
	refSlot, err := imgs.Acquire(context.Background(), imagepool.LayoutVideoEncodeDpb)
	if err != nil {
		t.Fatal(err)
	}

	fi := &frameinfo.FrameInfo{
		InputImage: src,
		Bitstream: bitstreampool.Entry{
			Buffer:        vk.Buffer(1),
			Size:          4096,
			QueryPoolSlot: 3,
		},
	}

	in := Input{
		InputExtent: driver.Extent2D{Width: 1920, Height: 1080},
		SetupSlot:   &RefSlotSource{DpbIndex: 0, Image: dpbSlot},
		ReferenceSlots: []RefSlotSource{
			{DpbIndex: 1, Image: refSlot},
		},
		SessionParams: driver.VideoSessionParametersKHR{},
		NeedsPrelude:  true,
	}

	if err := a.Assemble(context.Background(), fi, in); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	if fi.EncodeInfo.SetupReferenceSlot == nil {
		t.Fatal("expected SetupReferenceSlot to be set")
	}
	if fi.EncodeInfo.SetupReferenceSlot.SlotIndex != 0 {
		t.Fatalf("expected setup slot index 0, got %d", fi.EncodeInfo.SetupReferenceSlot.SlotIndex)
	}
	if len(fi.EncodeInfo.ReferenceSlots) != 2 {
		t.Fatalf("expected 2 reference slots (reserved + 1 active), got %d", len(fi.EncodeInfo.ReferenceSlots))
	}
	if fi.EncodeInfo.ReferenceSlots[0].SlotIndex != ReservedSetupSlotIndex {
		t.Fatalf("expected reference_slots[0] to be the reserved placeholder, got %d", fi.EncodeInfo.ReferenceSlots[0].SlotIndex)
	}
	if fi.EncodeInfo.ReferenceSlots[1].SlotIndex != 1 {
		t.Fatalf("expected active reference slot index 1, got %d", fi.EncodeInfo.ReferenceSlots[1].SlotIndex)
	}
	if len(fi.Prelude) == 0 {
		t.Fatal("expected NeedsPrelude to populate fi.Prelude")
	}
	if fi.QueryPoolSlot != 3 {
		t.Fatalf("expected QueryPoolSlot propagated from the bitstream entry, got %d", fi.QueryPoolSlot)
	}

	_, layout := imgs.View(dpbSlot)
	if layout != imagepool.LayoutVideoEncodeDpb {
		t.Fatalf("expected setup slot layout VideoEncodeDpb, got %v", layout)
	}
}

// TestAssembleCallsGetEncodedParametersExactlyOnceWhenPreludeNeeded pins
// the "obtained once per IDR / sequence change" guarantee (spec §4.6) at
// the driver call-count level, rather than just inspecting fi.Prelude.
func TestAssembleCallsGetEncodedParametersExactlyOnceWhenPreludeNeeded(t *testing.T) {
	imgs := newTestImages(t, 2)
	ctrl := gomock.NewController(t)
	mockDrv := driver.NewMockDriver(ctrl)
	mockDrv.EXPECT().
		GetEncodedParameters(gomock.Any(), gomock.Any(), uint32(7), uint32(2)).
		Return([]byte{0x00, 0x00, 0x00, 0x01}, nil).
		Times(1)

	a := New(imgs, mockDrv)
	src, err := imgs.Acquire(context.Background(), imagepool.LayoutVideoEncodeSrc)
	if err != nil {
		t.Fatal(err)
	}

	fi := &frameinfo.FrameInfo{
		InputImage: src,
		Bitstream:  bitstreampool.Entry{Buffer: vk.Buffer(1), Size: 4096, QueryPoolSlot: 1},
	}
	in := Input{
		InputExtent:   driver.Extent2D{Width: 1920, Height: 1080},
		SessionParams: driver.VideoSessionParametersKHR{},
		NeedsPrelude:  true,
		SpsID:         7,
		PpsID:         2,
	}

	if err := a.Assemble(context.Background(), fi, in); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(fi.Prelude) == 0 {
		t.Fatal("expected GetEncodedParameters' result to populate fi.Prelude")
	}
}
