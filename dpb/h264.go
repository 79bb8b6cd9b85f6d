package dpb

import (
	"sort"

	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// MaxDpbSlotsH264 is the hardware-mandated H.264 DPB capacity: 16 reference
// slots plus one working entry (spec §4.5.1), ported from
// VkEncDpbH264::MAX_DPB_SLOTS.
const MaxDpbSlotsH264 = 16

// FieldMarking holds the independent top/bottom field markings H.264 DPB
// entries track (spec's DpbEntry "marking" field for this codec).
type FieldMarking struct {
	Top, Bottom Marking
}

// EntryH264 is one H.264 DPB slot, embedding the common Entry skeleton plus
// the POC/frame_num/field bookkeeping from DpbEntryH264 in
// VkEncoderDpbH264.h.
type EntryH264 struct {
	Entry

	FrameNum     uint32
	FrameNumWrap int32
	PicNum       [2]int32 // indexed by field: 0=top/frame, 1=bottom
	LongTermIdx  int32

	TopFOC, BottomFOC int32

	FieldMark           FieldMarking
	ComplementaryField  bool
	NotExisting         bool
	Reference           bool
}

// PictureInfoH264 carries everything PictureStart/PictureEnd/BuildRefLists
// need for one H.264 picture (spec §4.5.1 admission + marking rules).
type PictureInfoH264 struct {
	PictureInfo

	FrameNum       uint32
	FieldPicFlag   bool
	BottomField    bool
	PicOrderCntLsb int32
	DeltaPicOrderCntBottom int32

	LongTermReferenceFlag bool
	AdaptiveRefPicMarking bool
	MMCOs                 []MMCO

	PocType      uint8 // 0 or 2
	Log2MaxFrameNum uint32
	Log2MaxPicOrderCntLsb uint32
	MaxFrameNum  uint32

	GapsAllowed bool
}

// MMCOOp is one of the six memory-management-control-operation kinds H.264
// supports under adaptive reference-picture marking.
type MMCOOp int

const (
	MMCOUnmarkShort MMCOOp = iota + 1
	MMCOUnmarkLong
	MMCOMarkCurrentLong
	MMCOSetMaxLongTermIdx
	MMCOUnmarkAll
	MMCOAssignCurrentLong
)

// MMCO is one decoded memory_management_control_operation command.
type MMCO struct {
	Op                MMCOOp
	DifferenceOfPicNumsMinus1 int32
	LongTermPicNum    int32
	LongTermFrameIdx  int32
	MaxLongTermFrameIdxPlus1 int32
}

// H264Dpb is the H.264 DpbManager variant (spec §4.5.1).
type H264Dpb struct {
	entries [MaxDpbSlotsH264 + 1]EntryH264
	images  *imagepool.Pool

	maxDpbSize int

	prevPicOrderCntMsb int32
	prevPicOrderCntLsb int32
	prevFrameNumOffset int32
	prevFrameNum       uint32
	prevRefFrameNum    uint32

	maxLongTermFrameIdx int32

	needReorder bool
}

// NewH264Dpb creates a DPB bound to the image pool supplying its slots.
func NewH264Dpb(images *imagepool.Pool) *H264Dpb {
	return &H264Dpb{images: images, maxLongTermFrameIdx: -1}
}

// SequenceStart resets all state for a new IDR-anchored sequence (spec
// §4.5's common sequence_start).
func (d *H264Dpb) SequenceStart(maxDpbPictures uint32, bFrames uint8, quality uint32) {
	*d = H264Dpb{images: d.images, maxLongTermFrameIdx: -1}
	if maxDpbPictures == 0 || maxDpbPictures > MaxDpbSlotsH264 {
		maxDpbPictures = MaxDpbSlotsH264
	}
	d.maxDpbSize = int(maxDpbPictures)
}

func (d *H264Dpb) emptySlot() int {
	for i := 0; i < d.maxDpbSize; i++ {
		if !d.entries[i].InUse() {
			return i
		}
	}
	return -1
}

// FillFrameNumGaps synthesizes non-existing reference entries for every
// frame_num between PrevRefFrameNum+1 and the current frame_num (spec
// §4.5.1 admission step 1), each immediately sliding-window marked.
func (d *H264Dpb) FillFrameNumGaps(pic *PictureInfoH264) {
	if !pic.GapsAllowed || pic.FrameNum == (d.prevRefFrameNum+1)%pic.MaxFrameNum {
		return
	}
	unUsedShortTermFrameNum := (d.prevRefFrameNum + 1) % pic.MaxFrameNum
	for unUsedShortTermFrameNum != pic.FrameNum {
		idx := d.emptySlot()
		if idx < 0 {
			d.slidingWindowEvict()
			idx = d.emptySlot()
			if idx < 0 {
				return
			}
		}
		d.entries[idx] = EntryH264{
			Entry:     Entry{Refcount: 1},
			FrameNum:  unUsedShortTermFrameNum,
			NotExisting: true,
			Reference: true,
			FieldMark: FieldMarking{Top: MarkingShortTerm, Bottom: MarkingShortTerm},
		}
		unUsedShortTermFrameNum = (unUsedShortTermFrameNum + 1) % pic.MaxFrameNum
	}
}

// PictureStart allocates a DPB index for the incoming picture (spec
// §4.5.1 admission steps 2-3).
func (d *H264Dpb) PictureStart(pic *PictureInfoH264) int {
	if pic.IsReference {
		d.FillFrameNumGaps(pic)
	}

	if !pic.FieldPicFlag {
		idx := d.findComplementaryFieldPair(pic)
		if idx >= 0 {
			return idx
		}
	}

	idx := d.emptySlot()
	if idx < 0 && pic.IsReference {
		d.slidingWindowEvict()
		idx = d.emptySlot()
	}
	if idx < 0 {
		return -1
	}
	d.entries[idx].FrameNum = pic.FrameNum
	return idx
}

func (d *H264Dpb) findComplementaryFieldPair(pic *PictureInfoH264) int {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if !e.InUse() || e.ComplementaryField || pic.IsIDR {
			continue
		}
		if e.FrameNum == pic.FrameNum && e.Reference == pic.IsReference {
			return i
		}
	}
	return -1
}

// PictureEnd attaches view and the corrupted flag to dpbIndex and retains
// the image; reference marking is applied separately by
// DecodedRefPicMarking.
func (d *H264Dpb) PictureEnd(dpbIndex int, view imagepool.Handle, corrupted bool) {
	if dpbIndex < 0 || dpbIndex >= d.maxDpbSize {
		return
	}
	e := &d.entries[dpbIndex]
	e.ImageView = view
	e.Corrupted = corrupted
	d.images.Retain(view)
}

// DecodedRefPicMarking applies either IDR reset, sliding-window eviction,
// or an ordered MMCO list to dpbIndex (spec §4.5.1 Marking).
func (d *H264Dpb) DecodedRefPicMarking(dpbIndex int, pic *PictureInfoH264) {
	if pic.IsIDR {
		for i := 0; i < d.maxDpbSize; i++ {
			d.markUnused(i)
		}
		m := MarkingShortTerm
		if pic.LongTermReferenceFlag {
			m = MarkingLongTerm
			d.maxLongTermFrameIdx = 0
		} else {
			d.maxLongTermFrameIdx = -1
		}
		d.entries[dpbIndex].FieldMark = FieldMarking{Top: m, Bottom: m}
		d.entries[dpbIndex].Reference = true
		d.prevRefFrameNum = 0
		return
	}

	if !pic.IsReference {
		return
	}

	if pic.AdaptiveRefPicMarking {
		d.adaptiveMemoryManagement(dpbIndex, pic)
	} else {
		d.entries[dpbIndex].FieldMark = FieldMarking{Top: MarkingShortTerm, Bottom: MarkingShortTerm}
		d.entries[dpbIndex].Reference = true
		d.slidingWindowMark(pic)
	}
	d.prevRefFrameNum = pic.FrameNum
}

func (d *H264Dpb) markUnused(i int) {
	e := &d.entries[i]
	if !e.InUse() {
		return
	}
	e.FieldMark = FieldMarking{}
	e.Reference = false
	if e.ImageView != (imagepool.Handle{}) {
		d.images.Release(e.ImageView)
	}
	*e = EntryH264{}
}

// slidingWindowEvict drops the short-term entry with the smallest
// frameNumWrap, used both for normal admission and FillFrameNumGaps
// overflow (spec §4.5.1 sliding window).
func (d *H264Dpb) slidingWindowEvict() {
	minIdx := -1
	var minWrap int32
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if !e.InUse() || e.FieldMark.Top != MarkingShortTerm {
			continue
		}
		if minIdx < 0 || e.FrameNumWrap < minWrap {
			minIdx = i
			minWrap = e.FrameNumWrap
		}
	}
	if minIdx >= 0 {
		d.markUnused(minIdx)
	}
}

func (d *H264Dpb) slidingWindowMark(pic *PictureInfoH264) {
	numRef := 0
	for i := 0; i < d.maxDpbSize; i++ {
		if d.entries[i].InUse() && d.entries[i].Reference {
			numRef++
		}
	}
	maxRef := d.maxDpbSize
	if maxRef < 1 {
		maxRef = 1
	}
	for numRef > maxRef {
		d.slidingWindowEvict()
		numRef--
	}
}

func (d *H264Dpb) adaptiveMemoryManagement(dpbIndex int, pic *PictureInfoH264) {
	for _, op := range pic.MMCOs {
		switch op.Op {
		case MMCOUnmarkShort:
			d.unmarkShortByPicNum(pic.FrameNum, op.DifferenceOfPicNumsMinus1)
		case MMCOUnmarkLong:
			d.unmarkLongByLtPicNum(op.LongTermPicNum)
		case MMCOMarkCurrentLong:
			d.entries[dpbIndex].FieldMark = FieldMarking{Top: MarkingLongTerm, Bottom: MarkingLongTerm}
			d.entries[dpbIndex].LongTermIdx = op.LongTermFrameIdx
		case MMCOSetMaxLongTermIdx:
			d.maxLongTermFrameIdx = op.MaxLongTermFrameIdxPlus1 - 1
			d.evictLongTermAbove(d.maxLongTermFrameIdx)
		case MMCOUnmarkAll:
			for i := 0; i < d.maxDpbSize; i++ {
				d.markUnused(i)
			}
			d.maxLongTermFrameIdx = -1
		case MMCOAssignCurrentLong:
			d.entries[dpbIndex].FieldMark = FieldMarking{Top: MarkingLongTerm, Bottom: MarkingLongTerm}
		}
	}
	d.entries[dpbIndex].Reference = true
	if d.entries[dpbIndex].FieldMark.Top == MarkingUnused {
		d.entries[dpbIndex].FieldMark = FieldMarking{Top: MarkingShortTerm, Bottom: MarkingShortTerm}
	}
}

func (d *H264Dpb) unmarkShortByPicNum(currFrameNum uint32, diffMinus1 int32) {
	target := int32(currFrameNum) - (diffMinus1 + 1)
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.FieldMark.Top == MarkingShortTerm && e.PicNum[0] == target {
			d.markUnused(i)
			return
		}
	}
}

func (d *H264Dpb) unmarkLongByLtPicNum(ltPicNum int32) {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.FieldMark.Top == MarkingLongTerm && e.LongTermIdx == ltPicNum {
			d.markUnused(i)
			return
		}
	}
}

func (d *H264Dpb) evictLongTermAbove(maxIdx int32) {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.FieldMark.Top == MarkingLongTerm && e.LongTermIdx > maxIdx {
			d.markUnused(i)
		}
	}
}

// BuildRefLists produces L0/L1 for a P or B picture (spec §4.5.1
// Ref-list construction).
func (d *H264Dpb) BuildRefLists(pic *PictureInfoH264, curPOC int32, skipCorrupt bool) RefLists {
	type refEnt struct {
		idx    int
		poc    int32
		picNum int32
		long   bool
	}
	var shorts, longs []refEnt
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if !e.InUse() || !e.Reference {
			continue
		}
		if skipCorrupt && e.Corrupted {
			continue
		}
		if e.FieldMark.Top == MarkingLongTerm {
			longs = append(longs, refEnt{idx: i, poc: e.TopFOC, picNum: e.LongTermIdx, long: true})
		} else if e.FieldMark.Top == MarkingShortTerm {
			shorts = append(shorts, refEnt{idx: i, poc: e.TopFOC, picNum: e.PicNum[0]})
		}
	}

	if !pic.PictureInfo.IsReference && pic.PocType != 0 {
		// non-B path handled below; fall through to generic construction
	}

	var l0, l1 RefList

	if !isBFrameLike(pic) {
		sort.Slice(shorts, func(a, b int) bool { return shorts[a].picNum > shorts[b].picNum })
		sort.Slice(longs, func(a, b int) bool { return longs[a].picNum < longs[b].picNum })
		for _, s := range shorts {
			l0 = append(l0, s.idx)
		}
		for _, lg := range longs {
			l0 = append(l0, lg.idx)
		}
		return RefLists{L0: l0}
	}

	var lowerAsc, higherDesc []refEnt
	for _, s := range shorts {
		if s.poc < curPOC {
			lowerAsc = append(lowerAsc, s)
		} else {
			higherDesc = append(higherDesc, s)
		}
	}
	sort.Slice(lowerAsc, func(a, b int) bool { return lowerAsc[a].poc > lowerAsc[b].poc })
	sort.Slice(higherDesc, func(a, b int) bool { return higherDesc[a].poc < higherDesc[b].poc })
	sort.Slice(longs, func(a, b int) bool { return longs[a].picNum < longs[b].picNum })

	for _, s := range lowerAsc {
		l0 = append(l0, s.idx)
	}
	for _, s := range higherDesc {
		l0 = append(l0, s.idx)
	}
	for _, lg := range longs {
		l0 = append(l0, lg.idx)
	}

	for _, s := range higherDesc {
		l1 = append(l1, s.idx)
	}
	for _, s := range lowerAsc {
		l1 = append(l1, s.idx)
	}
	for _, lg := range longs {
		l1 = append(l1, lg.idx)
	}

	if len(l1) > 1 && sameList(l0, l1) {
		l1[0], l1[1] = l1[1], l1[0]
	}

	return RefLists{L0: l0, L1: l1}
}

func isBFrameLike(pic *PictureInfoH264) bool {
	// BuildRefLists is called for every picture; it takes the "B-frame:"
	// branch from the FrameType the caller set on the picture info rather
	// than re-deriving the frame type here.
	return pic.PictureInfo.FrameType == frameTypeB
}

const frameTypeB = 1 // mirrors gop.FrameTypeB; duplicated to avoid an import cycle with gop.

func sameList(a, b RefList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NeedToReorder reports true if any currently active reference is flagged
// corrupted (spec §4.5.1).
func (d *H264Dpb) NeedToReorder() bool {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.Reference && e.Corrupted {
			return true
		}
	}
	return false
}

// FillStdReferenceInfo emits the codec's std-header fields for one
// reference slot (spec §4.5 common contract).
func (d *H264Dpb) FillStdReferenceInfo(dpbIndex int) (frameNum uint32, poc int32, longTerm bool) {
	e := &d.entries[dpbIndex]
	return e.FrameNum, e.TopFOC, e.FieldMark.Top == MarkingLongTerm
}

// ImageHandle returns the imagepool handle backing dpbIndex, so the
// pipeline can bind it into a reference-slot resource.
func (d *H264Dpb) ImageHandle(dpbIndex int) imagepool.Handle {
	if dpbIndex < 0 || dpbIndex >= d.maxDpbSize {
		return imagepool.Handle{}
	}
	return d.entries[dpbIndex].ImageView
}
