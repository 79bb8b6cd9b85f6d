package dpb

import (
	"sort"

	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// MaxDpbSlotsH265 mirrors the H.264 capacity; HEVC's standard also bounds
// sps_max_dec_pic_buffering_minus1 to the same practical range (spec
// §4.5.2 "same skeleton as H264Dpb").
const MaxDpbSlotsH265 = 16

// EntryH265 is the POC-only variant of EntryH264: no frame_num, no field
// splitting, no frameNumWrap (spec §4.5.2).
type EntryH265 struct {
	Entry

	POC       int32
	Marking   Marking
	Reference bool
}

// PictureInfoH265 carries what PictureStart/PictureEnd/BuildRefLists need
// for one HEVC picture.
type PictureInfoH265 struct {
	PictureInfo

	POC int32
}

// H265Dpb is the HEVC DpbManager variant: same admission/eviction skeleton
// as H264Dpb, but reference numbering is POC-only and there are no field
// pairs (spec §4.5.2).
type H265Dpb struct {
	entries [MaxDpbSlotsH265]EntryH265
	images  *imagepool.Pool

	maxDpbSize int
}

// NewH265Dpb creates a DPB bound to the image pool supplying its slots.
func NewH265Dpb(images *imagepool.Pool) *H265Dpb {
	return &H265Dpb{images: images}
}

func (d *H265Dpb) SequenceStart(maxDpbPictures uint32, bFrames uint8, quality uint32) {
	*d = H265Dpb{images: d.images}
	if maxDpbPictures == 0 || maxDpbPictures > MaxDpbSlotsH265 {
		maxDpbPictures = MaxDpbSlotsH265
	}
	d.maxDpbSize = int(maxDpbPictures)
}

func (d *H265Dpb) emptySlot() int {
	for i := 0; i < d.maxDpbSize; i++ {
		if !d.entries[i].InUse() {
			return i
		}
	}
	return -1
}

func (d *H265Dpb) evictOldest() {
	minIdx := -1
	var minPOC int32
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if !e.InUse() || !e.Reference {
			continue
		}
		if minIdx < 0 || e.POC < minPOC {
			minIdx = i
			minPOC = e.POC
		}
	}
	if minIdx >= 0 {
		d.markUnused(minIdx)
	}
}

func (d *H265Dpb) markUnused(i int) {
	e := &d.entries[i]
	if !e.InUse() {
		return
	}
	if e.ImageView != (imagepool.Handle{}) {
		d.images.Release(e.ImageView)
	}
	*e = EntryH265{}
}

// PictureStart allocates a DPB index, evicting the oldest reference if the
// DPB is full (spec §4.5 common picture_start).
func (d *H265Dpb) PictureStart(pic *PictureInfoH265) int {
	if pic.IsIDR {
		for i := 0; i < d.maxDpbSize; i++ {
			d.markUnused(i)
		}
	}
	idx := d.emptySlot()
	if idx < 0 {
		d.evictOldest()
		idx = d.emptySlot()
	}
	return idx
}

// PictureEnd commits the reconstructed image and marking for dpbIndex.
func (d *H265Dpb) PictureEnd(dpbIndex int, view imagepool.Handle, corrupted bool) {
	if dpbIndex < 0 || dpbIndex >= d.maxDpbSize {
		return
	}
	e := &d.entries[dpbIndex]
	e.ImageView = view
	e.Corrupted = corrupted
	d.images.Retain(view)
}

// CommitPicture finalizes POC and reference marking, mirroring H.264's
// DecodedRefPicMarking but with no sliding window / MMCO distinction:
// HEVC's encoder-side DPB here uses straightforward POC-ordered eviction.
func (d *H265Dpb) CommitPicture(dpbIndex int, pic *PictureInfoH265) {
	e := &d.entries[dpbIndex]
	e.POC = pic.POC
	e.Reference = pic.IsReference
	if pic.IsReference {
		e.Marking = MarkingShortTerm
	}
}

// BuildRefLists mirrors H264Dpb.BuildRefLists with POC replacing PicNum
// throughout, and no long-term/short-term distinction (spec §4.5.2).
func (d *H265Dpb) BuildRefLists(pic *PictureInfoH265, curPOC int32, skipCorrupt bool) RefLists {
	type refEnt struct {
		idx int
		poc int32
	}
	var lowerAsc, higherDesc []refEnt
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if !e.InUse() || !e.Reference {
			continue
		}
		if skipCorrupt && e.Corrupted {
			continue
		}
		if e.POC < curPOC {
			lowerAsc = append(lowerAsc, refEnt{idx: i, poc: e.POC})
		} else {
			higherDesc = append(higherDesc, refEnt{idx: i, poc: e.POC})
		}
	}

	if !isBFrameLikeH265(pic) {
		all := append(append([]refEnt{}, lowerAsc...), higherDesc...)
		sort.Slice(all, func(a, b int) bool { return all[a].poc > all[b].poc })
		var l0 RefList
		for _, e := range all {
			l0 = append(l0, e.idx)
		}
		return RefLists{L0: l0}
	}

	sort.Slice(lowerAsc, func(a, b int) bool { return lowerAsc[a].poc > lowerAsc[b].poc })
	sort.Slice(higherDesc, func(a, b int) bool { return higherDesc[a].poc < higherDesc[b].poc })

	var l0, l1 RefList
	for _, e := range lowerAsc {
		l0 = append(l0, e.idx)
	}
	for _, e := range higherDesc {
		l0 = append(l0, e.idx)
	}
	for _, e := range higherDesc {
		l1 = append(l1, e.idx)
	}
	for _, e := range lowerAsc {
		l1 = append(l1, e.idx)
	}

	if len(l1) > 1 && sameList(l0, l1) {
		l1[0], l1[1] = l1[1], l1[0]
	}
	return RefLists{L0: l0, L1: l1}
}

func isBFrameLikeH265(pic *PictureInfoH265) bool {
	return pic.PictureInfo.FrameType == frameTypeB
}

// NeedToReorder reports true if any active reference is flagged corrupted.
func (d *H265Dpb) NeedToReorder() bool {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.Reference && e.Corrupted {
			return true
		}
	}
	return false
}

// FillStdReferenceInfo emits the HEVC std-header fields for one reference
// slot.
func (d *H265Dpb) FillStdReferenceInfo(dpbIndex int) (poc int32) {
	return d.entries[dpbIndex].POC
}

// ImageHandle returns the imagepool handle backing dpbIndex.
func (d *H265Dpb) ImageHandle(dpbIndex int) imagepool.Handle {
	if dpbIndex < 0 || dpbIndex >= d.maxDpbSize {
		return imagepool.Handle{}
	}
	return d.entries[dpbIndex].ImageView
}
