package dpb

import (
	"sort"

	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// AV1 reference names, matching STD_VIDEO_AV1_REFERENCE_NAME_x ordering
// (1-based in the standard; here 0-based into the 7-wide arrays below).
type RefName int

const (
	RefLast RefName = iota
	RefLast2
	RefLast3
	RefGolden
	RefBwd
	RefAltref2
	RefAltref
	refNameCount
)

func (r RefName) String() string {
	names := [...]string{"LAST", "LAST2", "LAST3", "GOLDEN", "BWDREF", "ALTREF2", "ALTREF"}
	if r < 0 || int(r) >= len(names) {
		return "INVALID"
	}
	return names[r]
}

// FrameUpdateType drives the refresh_frame_flags policy (spec §4.5.3
// "Refresh-flag policy"), ported from VkVideoEncoderAV1FrameUpdateType.
type FrameUpdateType int

const (
	UpdateKey FrameUpdateType = iota
	UpdateLast
	UpdateGolden
	UpdateAltref
	UpdateOverlay
	UpdateInternalOverlay
	UpdateInternalAltref
	UpdateBackward
	UpdateNone
)

// PrimaryRefType selects which virtual buffer supplies the CDF context
// (spec §4.5.3 "Primary-ref selection"), ported from
// VkVideoEncoderAV1PrimaryRefType.
type PrimaryRefType int

const (
	PrimaryRegular PrimaryRefType = iota
	PrimaryArf
	PrimaryOverlay
	PrimaryGolden
	PrimaryBwd
	PrimaryInternalArf
	primaryRefTypeCount
)

// bufferPoolSize is the AV1 virtual-buffer pool: 8 named buffers + 1
// working plus 1 spare entry, mirroring BUFFER_POOL_MAX_SIZE (spec §4.5.3
// "dpb[10]").
const bufferPoolSize = 10

const invalidIdx = -1

// EntryAV1 is one AV1 DPB slot: a reconstructed image plus the standard
// reference-name and display-order bookkeeping (spec §4.5.3), ported from
// DpbEntryAV1.
type EntryAV1 struct {
	Entry

	FrameID       uint32
	PicOrderCnt   uint32
	AV1FrameType  int8
	RefName       RefName
	HasRefName    bool
}

// PictureInfoAV1 carries what PictureStart/PictureEnd/BuildRefLists need
// for one AV1 picture.
type PictureInfoAV1 struct {
	PictureInfo

	FrameType          int8 // gop.FrameType at the AV1 level: KEY/INTRA_ONLY/INTER/SWITCH
	RefNameRequestMask uint32
	PicOrderCnt        uint32
	FrameID            uint32

	ShowExistingFrame bool
	FrameToShowMapIdx int32

	OverlayFrame        bool
	ErrorResilientMode  bool
	ShownKeyFrameOrSwitch bool
}

const (
	av1FrameKey = iota
	av1FrameInter
	av1FrameIntraOnly
	av1FrameSwitch
)

// AV1Dpb is the AV1 DpbManager variant (spec §4.5.3).
type AV1Dpb struct {
	entries [bufferPoolSize + 1]EntryAV1
	images  *imagepool.Pool

	maxDpbSize int
	bFrames    int32

	refBufIdMap        [int(refNameCount) + 1]int32 // reference-name -> virtual-buffer id
	refFrameDpbIdMap   [bufferPoolSize]int8          // virtual-buffer id -> dpb index
	primaryRefBufIdMap [primaryRefTypeCount]int32

	lastLastRefNameInUse RefName

	refNamesInGroup1 []int32
	refNamesInGroup2 []int32
	numRefFramesL0   int
	numRefFramesL1   int

	supportedRefNameMask uint32
}

// NewAV1Dpb creates a DPB bound to the image pool supplying its slots.
func NewAV1Dpb(images *imagepool.Pool) *AV1Dpb {
	return &AV1Dpb{images: images}
}

// SequenceStart resets all state and seeds last_last_ref_name_in_use
// (spec §4.5's common sequence_start: "AV1 last-last-ref-name-in-use =
// (B_count==0 ? GOLDEN : LAST3)").
func (d *AV1Dpb) SequenceStart(maxDpbPictures uint32, bFrames uint8, quality uint32) {
	images := d.images
	*d = AV1Dpb{images: images}
	if maxDpbPictures == 0 || maxDpbPictures > bufferPoolSize {
		maxDpbPictures = bufferPoolSize
	}
	d.maxDpbSize = int(maxDpbPictures)
	d.bFrames = int32(bFrames)
	for i := range d.refBufIdMap {
		d.refBufIdMap[i] = int32(invalidIdx)
	}
	for i := range d.refFrameDpbIdMap {
		d.refFrameDpbIdMap[i] = invalidIdx
	}
	for i := range d.primaryRefBufIdMap {
		d.primaryRefBufIdMap[i] = int32(invalidIdx)
	}
	if bFrames == 0 {
		d.lastLastRefNameInUse = RefGolden
	} else {
		d.lastLastRefNameInUse = RefLast3
	}
	d.supportedRefNameMask = 0x7F
}

func (d *AV1Dpb) emptySlot() int {
	for i := 0; i < d.maxDpbSize; i++ {
		if !d.entries[i].InUse() {
			return i
		}
	}
	return -1
}

// PictureStart allocates a slot, or for show_existing_frame just bumps the
// existing slot's refcount (spec §4.5 common picture_start).
func (d *AV1Dpb) PictureStart(pic *PictureInfoAV1) int {
	if pic.ShowExistingFrame {
		dpbIdx := d.refFrameDpbIdMap[d.refBufIdMap[pic.FrameToShowMapIdx]]
		if dpbIdx != invalidIdx {
			d.entries[dpbIdx].Refcount++
		}
		return int(dpbIdx)
	}

	idx := d.emptySlot()
	if idx < 0 {
		// Evict the virtual buffer with the lowest refcount; real hardware
		// DPBs never actually hit this path because refresh flags keep the
		// buffer pool exactly full, but a defensive fallback avoids a hard
		// failure on a malformed reference-name request.
		minIdx, minRef := -1, int32(1<<31-1)
		for i := 0; i < d.maxDpbSize; i++ {
			if int32(d.entries[i].Refcount) < minRef {
				minIdx, minRef = i, int32(d.entries[i].Refcount)
			}
		}
		idx = minIdx
		if idx >= 0 {
			d.releaseSlot(idx)
		}
	}
	if idx < 0 {
		return -1
	}
	d.entries[idx] = EntryAV1{Entry: Entry{Refcount: 1}, FrameID: pic.FrameID, PicOrderCnt: pic.PicOrderCnt, AV1FrameType: pic.FrameType}
	return idx
}

func (d *AV1Dpb) releaseSlot(idx int) {
	e := &d.entries[idx]
	if e.ImageView != (imagepool.Handle{}) {
		d.images.Release(e.ImageView)
	}
	*e = EntryAV1{}
}

// PictureEnd attaches the reconstructed image to dpbIndex.
func (d *AV1Dpb) PictureEnd(dpbIndex int, view imagepool.Handle, corrupted bool) {
	if dpbIndex < 0 || dpbIndex >= d.maxDpbSize {
		return
	}
	e := &d.entries[dpbIndex]
	e.ImageView = view
	e.Corrupted = corrupted
	d.images.Retain(view)
}

// AssignReferenceFrameType implements spec §4.5.3's "Assign reference
// name (new picture)".
func (d *AV1Dpb) AssignReferenceFrameType(isKey bool, refNameRequestMask uint32, isReference bool) (RefName, bool) {
	if isKey {
		return 0, false // INTRA_FRAME: not one of the 7 inter reference names
	}
	for _, candidate := range [...]RefName{RefAltref, RefAltref2, RefBwd, RefGolden} {
		if refNameRequestMask&(1<<uint(candidate)) != 0 {
			return candidate, true
		}
	}
	if isReference {
		return RefLast, true
	}
	return 0, false
}

// GetFrameUpdateType maps a reference name (plus overlay flag) to the
// refresh-flag policy bucket (spec §4.5.3).
func (d *AV1Dpb) GetFrameUpdateType(name RefName, hasName bool, isKey bool, overlay bool) FrameUpdateType {
	if isKey {
		return UpdateKey
	}
	if !hasName {
		return UpdateNone
	}
	switch name {
	case RefAltref:
		return UpdateAltref
	case RefAltref2:
		return UpdateInternalAltref
	case RefBwd:
		return UpdateBackward
	case RefGolden:
		if overlay {
			return UpdateOverlay
		}
		return UpdateGolden
	case RefLast:
		if overlay {
			return UpdateInternalOverlay
		}
		return UpdateLast
	}
	return UpdateNone
}

// GetRefreshFrameFlags implements spec §4.5.3's refresh-flag policy table.
func (d *AV1Dpb) GetRefreshFrameFlags(updateType FrameUpdateType, shownKeyOrSwitch, showExisting bool) uint8 {
	if showExisting {
		return 0
	}
	if shownKeyOrSwitch {
		return 0xFF
	}
	switch updateType {
	case UpdateKey:
		return bit(d.lastLastRefNameInUse) | bit(RefGolden) | bit(RefAltref2) | bit(RefAltref)
	case UpdateLast, UpdateGolden, UpdateOverlay, UpdateInternalOverlay:
		flags := bit(d.lastLastRefNameInUse)
		if updateType == UpdateGolden {
			flags |= bit(RefGolden)
		}
		return flags
	case UpdateAltref:
		return bit(RefAltref)
	case UpdateInternalAltref:
		return bit(RefAltref2)
	case UpdateBackward:
		return bit(RefBwd)
	default:
		return 0
	}
}

func bit(name RefName) uint8 { return 1 << uint(name) }

// rotateVirtualBuffers implements spec §4.5.3's "Virtual-buffer rotation".
func (d *AV1Dpb) rotateVirtualBuffers(updateType FrameUpdateType, refName RefName, showExisting bool) {
	switch {
	case updateType == UpdateOverlay:
		d.swapRefBufIds(d.lastLastRefNameInUse, RefGolden)
		d.swapRefBufIds(RefGolden, RefAltref)
	case updateType == UpdateInternalOverlay && showExisting:
		d.swapRefBufIds(refName, d.lastLastRefNameInUse)
	case updateType == UpdateLast || updateType == UpdateGolden || updateType == UpdateInternalOverlay || updateType == UpdateOverlay:
		d.shiftLastSlots()
	}
}

func (d *AV1Dpb) swapRefBufIds(a, b RefName) {
	d.refBufIdMap[a], d.refBufIdMap[b] = d.refBufIdMap[b], d.refBufIdMap[a]
}

// shiftLastSlots shifts the LAST..last_last_ref window down by one slot so
// the oldest LAST buffer slides out, then the newest buffer is written by
// the caller's refresh-flag assignment in UpdateRefBufIdMap.
func (d *AV1Dpb) shiftLastSlots() {
	for name := d.lastLastRefNameInUse; name > RefLast; name-- {
		d.refBufIdMap[name] = d.refBufIdMap[name-1]
	}
}

// UpdateRefBufIdMap applies refresh flags to the virtual-buffer map, then
// rotates, implementing spec §4.5.3's admission/refresh sequence.
func (d *AV1Dpb) UpdateRefBufIdMap(dpbIdx int, updateType FrameUpdateType, refName RefName, shownKeyOrSwitch, showExisting bool) {
	flags := d.GetRefreshFrameFlags(updateType, shownKeyOrSwitch, showExisting)
	for name := RefLast; name < refNameCount; name++ {
		if flags&bit(name) != 0 {
			d.refBufIdMap[name] = int32(dpbIdx)
		}
	}
	d.refFrameDpbIdMap[dpbIdx] = int8(dpbIdx)
	d.rotateVirtualBuffers(updateType, refName, showExisting)
}

// GetPrimaryRefType implements spec §4.5.3's "Primary-ref selection"
// lookup table: reference-name + overlay + error-resilient flags select
// which virtual buffer supplies the CDF context.
func (d *AV1Dpb) GetPrimaryRefType(name RefName, hasName bool, errorResilient, overlay bool) PrimaryRefType {
	if errorResilient || !hasName {
		return PrimaryRegular
	}
	switch name {
	case RefAltref:
		return PrimaryArf
	case RefGolden:
		if overlay {
			return PrimaryOverlay
		}
		return PrimaryGolden
	case RefBwd:
		return PrimaryBwd
	case RefAltref2:
		return PrimaryInternalArf
	default:
		return PrimaryRegular
	}
}

// SetupReferenceFrameGroups partitions active DPB entries into the two
// POC-ordered prediction groups, truncated to the hardware's reported
// reference-count caps (spec §4.5.3 "Ref-list grouping").
func (d *AV1Dpb) SetupReferenceFrameGroups(curPOC uint32, maxRefL0, maxRefL1 int) {
	type cand struct {
		name RefName
		poc  uint32
	}
	var group1, group2 []cand
	for name := RefLast; name < refNameCount; name++ {
		vbi := d.refBufIdMap[name]
		if vbi < 0 {
			continue
		}
		dpbIdx := d.refFrameDpbIdMap[vbi]
		if dpbIdx == invalidIdx || !d.entries[dpbIdx].InUse() {
			continue
		}
		poc := d.entries[dpbIdx].PicOrderCnt
		if poc < curPOC {
			group1 = append(group1, cand{name, poc})
		} else {
			group2 = append(group2, cand{name, poc})
		}
	}
	sort.Slice(group1, func(i, j int) bool { return group1[i].poc > group1[j].poc })
	sort.Slice(group2, func(i, j int) bool { return group2[i].poc < group2[j].poc })
	if len(group1) > maxRefL0 {
		group1 = group1[:maxRefL0]
	}
	if len(group2) > maxRefL1 {
		group2 = group2[:maxRefL1]
	}

	d.refNamesInGroup1 = d.refNamesInGroup1[:0]
	for _, c := range group1 {
		d.refNamesInGroup1 = append(d.refNamesInGroup1, int32(c.name))
	}
	d.refNamesInGroup2 = d.refNamesInGroup2[:0]
	for _, c := range group2 {
		d.refNamesInGroup2 = append(d.refNamesInGroup2, int32(c.name))
	}
	d.numRefFramesL0 = len(group1)
	d.numRefFramesL1 = len(group2)
}

// PredictionMode is the strongest AV1 inter-prediction mode a ref-list
// configuration supports, ordered by preference (spec §4.5.3).
type PredictionMode int

const (
	PredictionIntraOnly PredictionMode = iota
	PredictionSingleReference
	PredictionUnidirCompound
	PredictionBidirCompound
)

// SelectPredictionMode picks the strongest mode the hardware's supported
// reference-name mask still allows, given the two reference groups built
// by SetupReferenceFrameGroups.
func (d *AV1Dpb) SelectPredictionMode() PredictionMode {
	maskedGroup1 := d.maskByHardwareSupport(d.refNamesInGroup1)
	maskedGroup2 := d.maskByHardwareSupport(d.refNamesInGroup2)
	switch {
	case len(maskedGroup1) > 0 && len(maskedGroup2) > 0:
		return PredictionBidirCompound
	case len(maskedGroup1) > 0 || len(maskedGroup2) > 0:
		if len(maskedGroup1)+len(maskedGroup2) > 1 {
			return PredictionUnidirCompound
		}
		return PredictionSingleReference
	default:
		return PredictionIntraOnly
	}
}

func (d *AV1Dpb) maskByHardwareSupport(names []int32) []int32 {
	var out []int32
	for _, n := range names {
		if d.supportedRefNameMask&(1<<uint(n)) != 0 {
			out = append(out, n)
		}
	}
	return out
}

// GetPrimaryRefFrame resolves which active reference supplies CDF
// context, inserting it as an extra non-predicting reference when it is
// otherwise unused (spec §4.5.3 "Primary-ref selection", final
// paragraph).
func (d *AV1Dpb) GetPrimaryRefFrame(primary PrimaryRefType) (dpbIdx int, extraInserted bool) {
	vbi := d.primaryRefBufIdMap[primary]
	if vbi < 0 {
		return invalidIdx, false
	}
	dpbIdx = int(d.refFrameDpbIdMap[vbi])
	for _, n := range d.refNamesInGroup1 {
		if d.refBufIdMap[n] == vbi {
			return dpbIdx, false
		}
	}
	for _, n := range d.refNamesInGroup2 {
		if d.refBufIdMap[n] == vbi {
			return dpbIdx, false
		}
	}
	return dpbIdx, true
}

// NeedToReorder reports true if any currently live virtual buffer is
// flagged corrupted.
func (d *AV1Dpb) NeedToReorder() bool {
	for i := 0; i < d.maxDpbSize; i++ {
		e := &d.entries[i]
		if e.InUse() && e.Corrupted {
			return true
		}
	}
	return false
}

// FillStdReferenceInfo emits the AV1 std-header fields for one reference
// slot.
func (d *AV1Dpb) FillStdReferenceInfo(dpbIndex int) (frameID uint32, poc uint32) {
	e := &d.entries[dpbIndex]
	return e.FrameID, e.PicOrderCnt
}

// ImageHandle returns the imagepool handle backing dpbIndex.
func (d *AV1Dpb) ImageHandle(dpbIndex int) imagepool.Handle {
	if dpbIndex < 0 || dpbIndex >= len(d.entries) {
		return imagepool.Handle{}
	}
	return d.entries[dpbIndex].ImageView
}
