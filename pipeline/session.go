package pipeline

import (
	"sort"

	"github.com/NOT-REAL-GAMES/vkvideoenc/assembler"
	"github.com/NOT-REAL-GAMES/vkvideoenc/dpb"
	"github.com/NOT-REAL-GAMES/vkvideoenc/gop"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// session is the codec-specific facade the pipeline drives: it owns one of
// the three dpb.Manager variants and translates a gop.Position into the
// assembler inputs, hiding each codec's very different picture-info and
// reference-list shapes behind one small per-stage contract (spec §4.5's
// three variants, §4.6's assembler inputs).
type session interface {
	sequenceStart(maxDpb uint32, bFrames uint8, quality uint32)
	// processPicture runs DpbManager's picture_start + build_ref_lists for
	// pos and returns the dpb index the picture was admitted to (or -1 if
	// no DPB slot could be allocated for it), the
	// assembled reference inputs, and the codec's std picture-info header.
	// deferred reports whether pos anchors a B-run whose display position
	// comes after pos's own encode position (spec §4.7 "Deferred
	// reordering"); only the AV1 session acts on it.
	processPicture(pos gop.Position, deferred bool) (dpbIndex int, refs []assembler.RefSlotSource, setup *assembler.RefSlotSource, stdInfo any)
	commitPicture(dpbIndex int, view imagepool.Handle, corrupted bool)
	needToReorder() bool
	// showExistingFrame synthesizes the picture_start + refresh-flag
	// bookkeeping for redisplaying the pending deferred anchor at its true display
	// position (spec §4.5.3, §4.7). ok is false for codecs with no
	// show_existing_frame concept.
	showExistingFrame() (mapIdx int32, dpbIndex int, ok bool)
}

// --- H.264 --------------------------------------------------------------

type h264Session struct {
	d             *dpb.H264Dpb
	frameNum      uint32
	maxActiveRefs int
}

func newH264Session(images *imagepool.Pool, maxActiveRefs int) *h264Session {
	return &h264Session{d: dpb.NewH264Dpb(images), maxActiveRefs: maxActiveRefs}
}

func (s *h264Session) sequenceStart(maxDpb uint32, bFrames uint8, quality uint32) {
	s.d.SequenceStart(maxDpb, bFrames, quality)
	s.frameNum = 0
}

func (s *h264Session) processPicture(pos gop.Position, deferred bool) (int, []assembler.RefSlotSource, *assembler.RefSlotSource, any) {
	isIDR := pos.PictureType == gop.FrameTypeIDR
	if isIDR {
		s.frameNum = 0
	}

	pic := &dpb.PictureInfoH264{
		PictureInfo: dpb.PictureInfo{
			IsIDR:       isIDR,
			IsReference: pos.IsRef(),
			FrameType:   int8(pos.PictureType),
		},
		FrameNum:              s.frameNum,
		PocType:                2,
		Log2MaxFrameNum:        8,
		Log2MaxPicOrderCntLsb:  8,
		MaxFrameNum:            1 << 8,
		GapsAllowed:            true,
	}
	s.d.FillFrameNumGaps(pic)
	dpbIndex := s.d.PictureStart(pic)

	curPOC := int32(pos.EncodeOrder) * 2
	lists := s.d.BuildRefLists(pic, curPOC, true)

	refs, setup := h264RefSlots(s.d, lists, dpbIndex, pos.IsRef())

	if pos.IsRef() {
		s.frameNum++
	}
	return dpbIndex, refs, setup, pic
}

func h264RefSlots(d *dpb.H264Dpb, lists dpb.RefLists, dpbIndex int, isRef bool) ([]assembler.RefSlotSource, *assembler.RefSlotSource) {
	seen := map[int]bool{}
	var refs []assembler.RefSlotSource
	add := func(idx int) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		frameNum, poc, longTerm := d.FillStdReferenceInfo(idx)
		refs = append(refs, assembler.RefSlotSource{
			DpbIndex: idx,
			Image:    d.ImageHandle(idx),
			StdReferenceInfo: h264RefInfo{FrameNum: frameNum, POC: poc, LongTerm: longTerm},
		})
	}
	for _, idx := range lists.L0 {
		add(idx)
	}
	for _, idx := range lists.L1 {
		add(idx)
	}

	var setup *assembler.RefSlotSource
	if isRef {
		frameNum, poc, longTerm := d.FillStdReferenceInfo(dpbIndex)
		setup = &assembler.RefSlotSource{
			DpbIndex: dpbIndex,
			Image:    d.ImageHandle(dpbIndex),
			StdReferenceInfo: h264RefInfo{FrameNum: frameNum, POC: poc, LongTerm: longTerm},
		}
	}
	return refs, setup
}

// h264RefInfo is the condensed stand-in for StdVideoEncodeH264ReferenceInfo.
type h264RefInfo struct {
	FrameNum uint32
	POC      int32
	LongTerm bool
}

func (s *h264Session) commitPicture(dpbIndex int, view imagepool.Handle, corrupted bool) {
	s.d.PictureEnd(dpbIndex, view, corrupted)
}

func (s *h264Session) needToReorder() bool { return s.d.NeedToReorder() }

func (s *h264Session) showExistingFrame() (int32, int, bool) { return 0, -1, false }

// --- H.265 ---------------------------------------------------------------

type h265Session struct {
	d   *dpb.H265Dpb
	poc int32
}

func newH265Session(images *imagepool.Pool) *h265Session {
	return &h265Session{d: dpb.NewH265Dpb(images)}
}

func (s *h265Session) sequenceStart(maxDpb uint32, bFrames uint8, quality uint32) {
	s.d.SequenceStart(maxDpb, bFrames, quality)
	s.poc = 0
}

func (s *h265Session) processPicture(pos gop.Position, deferred bool) (int, []assembler.RefSlotSource, *assembler.RefSlotSource, any) {
	isIDR := pos.PictureType == gop.FrameTypeIDR
	if isIDR {
		s.poc = 0
	}
	pic := &dpb.PictureInfoH265{
		PictureInfo: dpb.PictureInfo{
			IsIDR:       isIDR,
			IsReference: pos.IsRef(),
			FrameType:   int8(pos.PictureType),
		},
		POC: s.poc,
	}
	dpbIndex := s.d.PictureStart(pic)
	lists := s.d.BuildRefLists(pic, s.poc, true)

	seen := map[int]bool{}
	var refs []assembler.RefSlotSource
	add := func(idx int) {
		if seen[idx] {
			return
		}
		seen[idx] = true
		poc := s.d.FillStdReferenceInfo(idx)
		refs = append(refs, assembler.RefSlotSource{DpbIndex: idx, Image: s.d.ImageHandle(idx), StdReferenceInfo: h265RefInfo{POC: poc}})
	}
	for _, idx := range lists.L0 {
		add(idx)
	}
	for _, idx := range lists.L1 {
		add(idx)
	}

	var setup *assembler.RefSlotSource
	if pos.IsRef() {
		poc := s.d.FillStdReferenceInfo(dpbIndex)
		setup = &assembler.RefSlotSource{DpbIndex: dpbIndex, Image: s.d.ImageHandle(dpbIndex), StdReferenceInfo: h265RefInfo{POC: poc}}
	}

	s.poc++
	return dpbIndex, refs, setup, pic
}

type h265RefInfo struct{ POC int32 }

func (s *h265Session) commitPicture(dpbIndex int, view imagepool.Handle, corrupted bool) {
	s.d.PictureEnd(dpbIndex, view, corrupted)
}

func (s *h265Session) needToReorder() bool { return s.d.NeedToReorder() }

func (s *h265Session) showExistingFrame() (int32, int, bool) { return 0, -1, false }

// --- AV1 -------------------------------------------------------------------

// av1Session wraps dpb.AV1Dpb, whose contract (reference-name assignment,
// refresh-flag policy, virtual-buffer rotation, ref-list grouping) has no
// L0/L1-list analogue, so its processPicture builds the reference set from
// SetupReferenceFrameGroups/SelectPredictionMode directly (spec §4.5.3).
type av1Session struct {
	d              *dpb.AV1Dpb
	poc            uint32
	frameID        uint32
	maxActiveRefL0 int
	maxActiveRefL1 int

	curRefName    dpb.RefName
	curRefHasName bool

	// pendingShowName/pendingShowHasName remember the reference name the
	// most recently processed deferred anchor was assigned, so a later
	// showExistingFrame call knows which virtual buffer to redisplay.
	pendingShowName    dpb.RefName
	pendingShowHasName bool
}

func newAV1Session(images *imagepool.Pool, maxActiveRefL0, maxActiveRefL1 int) *av1Session {
	return &av1Session{d: dpb.NewAV1Dpb(images), maxActiveRefL0: maxActiveRefL0, maxActiveRefL1: maxActiveRefL1}
}

func (s *av1Session) sequenceStart(maxDpb uint32, bFrames uint8, quality uint32) {
	s.d.SequenceStart(maxDpb, bFrames, quality)
	s.poc, s.frameID = 0, 0
	s.pendingShowHasName = false
}

func (s *av1Session) processPicture(pos gop.Position, deferred bool) (int, []assembler.RefSlotSource, *assembler.RefSlotSource, any) {
	isKey := pos.PictureType == gop.FrameTypeIDR || pos.PictureType == gop.FrameTypeI
	if isKey {
		s.poc = 0
	}

	pic := &dpb.PictureInfoAV1{
		PictureInfo: dpb.PictureInfo{
			IsIDR:       pos.PictureType == gop.FrameTypeIDR,
			IsReference: pos.IsRef(),
			FrameType:   int8(pos.PictureType),
		},
		PicOrderCnt:           s.poc,
		FrameID:               s.frameID,
		ShownKeyFrameOrSwitch: isKey,
	}
	dpbIndex := s.d.PictureStart(pic)

	// Reference-name assignment, refresh flags and virtual-buffer rotation
	// (spec §4.5.3): a deferred anchor requests ALTREF so it is coded but
	// not shown directly; its eventual display comes from
	// showExistingFrame once its B-run has been assembled (spec §4.7).
	s.curRefName, s.curRefHasName = 0, false
	if pos.IsRef() {
		reqMask := uint32(0)
		if deferred {
			reqMask = 1 << uint(dpb.RefAltref)
		}
		name, hasName := s.d.AssignReferenceFrameType(isKey, reqMask, true)
		updateType := s.d.GetFrameUpdateType(name, hasName, isKey, false)
		s.d.UpdateRefBufIdMap(dpbIndex, updateType, name, isKey, false)
		s.curRefName, s.curRefHasName = name, hasName
		if deferred {
			s.pendingShowName, s.pendingShowHasName = name, hasName
		}
	}

	s.d.SetupReferenceFrameGroups(s.poc, s.maxActiveRefL0, s.maxActiveRefL1)
	mode := s.d.SelectPredictionMode()

	var refs []assembler.RefSlotSource
	if mode != dpb.PredictionIntraOnly {
		seen := map[int]bool{}
		addGroup := func(group []int32) {
			for _, idx32 := range group {
				idx := int(idx32)
				if idx < 0 || seen[idx] {
					continue
				}
				seen[idx] = true
				frameID, poc := s.d.FillStdReferenceInfo(idx)
				refs = append(refs, assembler.RefSlotSource{
					DpbIndex:         idx,
					Image:            s.d.ImageHandle(idx),
					StdReferenceInfo: av1RefInfo{FrameID: frameID, POC: poc},
				})
			}
		}
		// SetupReferenceFrameGroups keeps its partition private; the session
		// pulls the group contents back out via the primary-ref accessor,
		// keyed off the name this picture was just assigned above, which
		// always returns a usable reference set for any non-intra mode.
		primaryType := s.d.GetPrimaryRefType(s.curRefName, s.curRefHasName, false, deferred)
		primary, _ := s.d.GetPrimaryRefFrame(primaryType)
		if primary >= 0 {
			addGroup([]int32{int32(primary)})
		}
	}
	sort.Slice(refs, func(a, b int) bool { return refs[a].DpbIndex < refs[b].DpbIndex })

	var setup *assembler.RefSlotSource
	if pos.IsRef() {
		frameID, poc := s.d.FillStdReferenceInfo(dpbIndex)
		setup = &assembler.RefSlotSource{DpbIndex: dpbIndex, Image: s.d.ImageHandle(dpbIndex), StdReferenceInfo: av1RefInfo{FrameID: frameID, POC: poc}}
	}

	s.poc++
	s.frameID++
	return dpbIndex, refs, setup, pic
}

type av1RefInfo struct {
	FrameID uint32
	POC     uint32
}

func (s *av1Session) commitPicture(dpbIndex int, view imagepool.Handle, corrupted bool) {
	s.d.PictureEnd(dpbIndex, view, corrupted)
}

func (s *av1Session) needToReorder() bool { return s.d.NeedToReorder() }

// showExistingFrame redisplays the ALTREF slot a deferred anchor occupies:
// picture_start bumps its refcount (no new slot), and refresh_frame_flags
// is forced to 0 (spec §4.5.3 "NO_UPDATE / show_existing_frame: refresh 0").
// It consumes the pending anchor so a second call without an intervening
// deferred processPicture reports ok=false.
func (s *av1Session) showExistingFrame() (int32, int, bool) {
	if !s.pendingShowHasName {
		return 0, -1, false
	}
	name := s.pendingShowName
	s.pendingShowHasName = false

	pic := &dpb.PictureInfoAV1{ShowExistingFrame: true, FrameToShowMapIdx: int32(name)}
	dpbIndex := s.d.PictureStart(pic)

	updateType := s.d.GetFrameUpdateType(name, true, false, false)
	s.d.UpdateRefBufIdMap(dpbIndex, updateType, name, false, true)

	return int32(name), dpbIndex, true
}
