// Package assembler implements C6, PerFrameAssembler: it bakes a
// FrameInfo, GOP position, DPB state, and session parameters into the
// hardware EncodeInfo descriptor the driver contract expects (spec §4.6).
package assembler

import (
	"context"

	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/frameinfo"
	"github.com/NOT-REAL-GAMES/vkvideoenc/gop"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// ReservedSetupSlotIndex is slot[0]'s sentinel index in the reference-slot
// array (spec §4.6: "Slot[0] is the reserved 'setup' placeholder with
// slot_index = -1").
const ReservedSetupSlotIndex = -1

// RefSlotSource supplies one reference entry to Assemble: a DPB index plus
// the image-pool handle and codec-specific std reference info that backs
// it. Each DpbManager variant produces these from its own BuildRefLists
// output; the assembler does not know the codec-specific layout.
type RefSlotSource struct {
	DpbIndex        int
	Image           imagepool.Handle
	StdReferenceInfo any
}

// Assembler holds the pieces every Assemble call needs but that don't
// change per-picture: the image pool (for view/layout lookups) and the
// driver used only for GetEncodedParameters (the non-VCL prelude).
type Assembler struct {
	Images *imagepool.Pool
	Driver driver.Driver
}

// New creates an Assembler bound to the image pool and hardware driver.
func New(images *imagepool.Pool, drv driver.Driver) *Assembler {
	return &Assembler{Images: images, Driver: drv}
}

// Input bundles everything Assemble needs beyond the FrameInfo it mutates.
type Input struct {
	Pos gop.Position

	InputExtent driver.Extent2D

	// SetupSlot is the slot this picture reconstructs into, or nil if the
	// picture is not a reference.
	SetupSlot *RefSlotSource
	// ReferenceSlots lists every active L0/L1 (H.26x) or AV1 reference
	// name in hardware-submission order, excluding the reserved setup
	// placeholder.
	ReferenceSlots []RefSlotSource

	StdPictureInfo any

	Session       driver.VideoSessionKHR
	SessionParams driver.VideoSessionParametersKHR
	// NeedsPrelude is true once per IDR / sequence change (spec §4.6:
	// "obtained once per IDR / sequence change").
	NeedsPrelude       bool
	SpsID, PpsID       uint32
	PendingRateControl *driver.RateControlCommand
}

// Assemble fills fi.EncodeInfo (and fi.Prelude / fi.RateControl) from in,
// guaranteeing every reference slot id is live in the image pool and in
// the layout the hardware requires before binding (spec §4.6 "Assembler
// guarantees").
func (a *Assembler) Assemble(ctx context.Context, fi *frameinfo.FrameInfo, in Input) error {
	fi.Pos = in.Pos

	srcView, srcLayout := a.Images.View(fi.InputImage)
	if srcLayout != imagepool.LayoutVideoEncodeSrc {
		a.Images.SetLayout(fi.InputImage, imagepool.LayoutVideoEncodeSrc)
	}

	encodeInfo := driver.EncodeInfo{
		SrcPictureResource: driver.PictureResource{
			ImageView: srcView,
			Extent:    in.InputExtent,
		},
		StdPictureInfo: in.StdPictureInfo,
	}

	slots := make([]driver.ReferenceSlot, 0, len(in.ReferenceSlots)+1)
	slots = append(slots, driver.ReferenceSlot{SlotIndex: ReservedSetupSlotIndex})

	if in.SetupSlot != nil {
		view, layout := a.Images.View(in.SetupSlot.Image)
		if layout != imagepool.LayoutVideoEncodeDpb {
			a.Images.SetLayout(in.SetupSlot.Image, imagepool.LayoutVideoEncodeDpb)
		}
		setup := driver.ReferenceSlot{
			SlotIndex:        int32(in.SetupSlot.DpbIndex),
			Resource:         driver.PictureResource{ImageView: view, Extent: in.InputExtent},
			StdReferenceInfo: in.SetupSlot.StdReferenceInfo,
		}
		encodeInfo.SetupReferenceSlot = &setup
	}

	for _, ref := range in.ReferenceSlots {
		view, layout := a.Images.View(ref.Image)
		if layout != imagepool.LayoutVideoEncodeDpb {
			a.Images.SetLayout(ref.Image, imagepool.LayoutVideoEncodeDpb)
		}
		slots = append(slots, driver.ReferenceSlot{
			SlotIndex:        int32(ref.DpbIndex),
			Resource:         driver.PictureResource{ImageView: view, Extent: in.InputExtent},
			StdReferenceInfo: ref.StdReferenceInfo,
		})
	}
	encodeInfo.ReferenceSlots = slots

	if in.NeedsPrelude {
		prelude, err := a.Driver.GetEncodedParameters(ctx, in.SessionParams, in.SpsID, in.PpsID)
		if err != nil {
			return err
		}
		fi.Prelude = prelude
	}

	fi.RateControl = in.PendingRateControl
	fi.EncodeInfo = encodeInfo
	fi.EncodeInfo.DstBuffer = fi.Bitstream.Buffer
	fi.EncodeInfo.DstBufferRange = fi.Bitstream.Size
	fi.EncodeInfo.QueryPoolSlot = fi.Bitstream.QueryPoolSlot
	fi.QueryPoolSlot = fi.Bitstream.QueryPoolSlot

	return nil
}
