// Package dpb implements C5: the per-codec decoded-picture-buffer manager.
// Three variants share one contract (spec §4.5) but diverge heavily in
// marking and reference-list construction, so each codec gets its own file
// (h264.go, h265.go, av1.go) grounded on the original encoder's
// VkEncoderDpbH264 / VkEncoderDpbAV1 sources rather than one generalized
// implementation that would blur codec-specific standard behavior.
package dpb

import (
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// Marking is a DPB entry's reference status. H.265 and AV1 only ever use
// MarkingUnused/MarkingShortTerm/MarkingLongTerm; H.264 tracks one per field.
type Marking int

const (
	MarkingUnused Marking = iota
	MarkingShortTerm
	MarkingLongTerm
)

// Entry is the common skeleton shared by every codec's DPB slot (spec §3
// DpbEntry). Codec-specific fields live in the per-codec entry types that
// embed it.
type Entry struct {
	Refcount  uint32
	FrameType int8
	ImageView imagepool.Handle
	Timestamp int64
	Corrupted bool
}

// InUse reports whether the entry currently holds a live picture.
func (e *Entry) InUse() bool { return e.Refcount > 0 }

// PictureInfo is the subset of a FrameInfo's GOP position and codec
// parameters a DpbManager needs to admit or retire a picture. It is kept
// deliberately generic; codec-specific fields (POC, frame_num, reference
// name requests) are carried in the codec package's own picture-info type
// which embeds this one.
type PictureInfo struct {
	IsIDR       bool
	IsReference bool
	Corrupted   bool
	FrameType   int8 // mirrors gop.FrameType; duplicated to avoid an import cycle
}

// RefList is an ordered list of DPB indices (H.264/H.265 L0 or L1).
type RefList []int

// RefLists holds both prediction lists for an H.26x inter picture.
type RefLists struct {
	L0 RefList
	L1 RefList
}

// Manager is the common contract every codec DPB implements (spec §4.5).
// It holds only the calls whose signatures are the same for every codec;
// the per-picture calls (PictureStart, reference-list building,
// FillStdReferenceInfo) take each codec's own descriptor shape and are not
// part of it, so callers invoke them on the concrete DPB type.
type Manager interface {
	SequenceStart(maxDpbPictures uint32, bFrames uint8, quality uint32)
	PictureEnd(dpbIndex int, view imagepool.Handle, corrupted bool)
	NeedToReorder() bool
}
