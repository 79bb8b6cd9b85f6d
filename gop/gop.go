// Package gop produces the per-input-frame GOP position (input order,
// encode order, picture type, B-run placement and flags) for a configured
// GOP/IDR/B-frame structure. It owns no GPU resources and performs no I/O;
// it is a pure sequencer driven one call per input frame.
package gop

import "fmt"

// FrameType is the picture type assigned to a GOP position.
type FrameType int8

const (
	FrameTypeInvalid      FrameType = -1
	FrameTypeP            FrameType = 0
	FrameTypeB            FrameType = 1
	FrameTypeI            FrameType = 2
	FrameTypeIDR          FrameType = 3
	FrameTypeIntraRefresh FrameType = 6
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeP:
		return "P"
	case FrameTypeB:
		return "B"
	case FrameTypeI:
		return "I"
	case FrameTypeIDR:
		return "IDR"
	case FrameTypeIntraRefresh:
		return "INTRA_REFRESH"
	default:
		return "UNDEFINED"
	}
}

// Flags is a bitset of per-position flags.
type Flags uint32

const (
	FlagIsRef         Flags = 1 << 0
	FlagCloseGop      Flags = 1 << 1
	FlagNonuniformGop Flags = 1 << 2
)

// MaxGopSize is an upper limit for the GOP frame count; Config.Validate
// does not check against it.
const MaxGopSize = 64

// Position is the value emitted by Sequencer.Next for one input frame.
type Position struct {
	InputOrder  uint32
	EncodeOrder uint32
	InGop       uint8
	NumBFrames  int8 // -1 if not part of a B-run
	BFramePos   int8 // -1 if not a B frame
	PictureType FrameType
	Flags       Flags
}

// IsRef reports whether the position carries FlagIsRef.
func (p Position) IsRef() bool { return p.Flags&FlagIsRef != 0 }

// State is the sequencer's running position, carried across calls to Next.
// Whenever an IDR is produced the last-reference fields are reset to zero
// and PositionInInputOrder to 1, the IDR itself taking input position 0.
type State struct {
	PositionInInputOrder uint32
	LastRefInInputOrder  uint32
	LastRefInEncodeOrder uint32
}

// Config is the immutable-after-Init sequencer configuration.
type Config struct {
	GopFrameCount         uint8 // 1-255; frames per GOP cycle
	IdrPeriod             uint32 // 0 = infinite (no periodic IDR beyond the first)
	ConsecutiveBFrameCount uint8
	TemporalLayerCount    uint8
	ClosedGop             bool
	PreIdrAnchorType      FrameType // FrameTypeP or FrameTypeI
}

// Validate checks the configuration is within the documented ranges.
func (c Config) Validate() error {
	if c.GopFrameCount == 0 {
		return fmt.Errorf("gop: GopFrameCount must be >= 1")
	}
	if c.PreIdrAnchorType != FrameTypeP && c.PreIdrAnchorType != FrameTypeI {
		return fmt.Errorf("gop: PreIdrAnchorType must be P or I, got %s", c.PreIdrAnchorType)
	}
	return nil
}

// Sequencer implements the picture-type and encode-order rules of the
// component's contract: next(state, frames_left) -> GopPosition.
type Sequencer struct {
	cfg Config
}

// NewSequencer validates cfg and returns a ready Sequencer.
func NewSequencer(cfg Config) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{cfg: cfg}, nil
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// periodDelta returns the distance, in input-order frames, to the next
// boundary of the given period (IDR period or closed-GOP period).
func periodDelta(st State, period uint32) uint32 {
	if period == 0 {
		return ^uint32(0) >> 1 // INT32_MAX equivalent
	}
	return period - (st.PositionInInputOrder % period)
}

// refDelta returns the distance from the last reference frame to the
// position `delta` frames ahead of the current one.
func refDelta(st State, delta uint32) uint32 {
	periodPos := delta + st.PositionInInputOrder
	return periodPos - st.LastRefInInputOrder
}

// Next advances the sequencer by one input frame and returns its GopPosition.
// firstFrame forces an IDR regardless of state (start of stream); framesLeft
// is the number of input frames still to come, used to avoid stranding a
// B-run that can't reach a forward anchor before end of stream.
//
// Picture-type rule, evaluated in order: see spec §4.1.
func (s *Sequencer) Next(st *State, firstFrame bool, framesLeft uint32) Position {
	pos := Position{
		InputOrder:  st.PositionInInputOrder,
		NumBFrames:  -1,
		BFramePos:   -1,
		PictureType: FrameTypeInvalid,
	}

	if firstFrame || (s.cfg.IdrPeriod > 0 && st.PositionInInputOrder%s.cfg.IdrPeriod == 0) {
		pos.PictureType = FrameTypeIDR
		pos.InputOrder = 0
		pos.Flags |= FlagIsRef | FlagCloseGop
		st.LastRefInInputOrder = 0
		st.LastRefInEncodeOrder = 0
		st.PositionInInputOrder = 1
		return pos
	}

	bCount := s.cfg.ConsecutiveBFrameCount
	pos.InGop = uint8(st.PositionInInputOrder % uint32(s.cfg.GopFrameCount))

	switch {
	case pos.InGop == 0:
		pos.PictureType = FrameTypeI
	case uint32(pos.InGop)%(uint32(bCount)+1) == 0:
		pos.PictureType = FrameTypeP
	case bCount > 0:
		pd := ^uint32(0) >> 1
		if framesLeft <= uint32(bCount) {
			pd = minU32(pd, framesLeft)
		}
		if s.cfg.IdrPeriod > 0 {
			pd = minU32(pd, periodDelta(*st, s.cfg.IdrPeriod))
		}
		if s.cfg.ClosedGop {
			pd = minU32(pd, periodDelta(*st, uint32(s.cfg.GopFrameCount)))
		}

		rd := ^uint32(0) >> 1
		if pd < ^uint32(0)>>1 {
			rd = refDelta(*st, pd)
		}

		if uint32(bCount)+1 >= rd {
			// The tail of a closed GOP (or the stream) is too short for a
			// full B-run: promote the last such B-frame to a reference and
			// shrink the effective B-run for the remaining tail.
			bCount = uint8(rd - 2)
			if pd == 1 {
				pos.PictureType = s.cfg.PreIdrAnchorType
				pos.Flags |= FlagIsRef | FlagCloseGop
			} else {
				pos.PictureType = FrameTypeB
			}
		} else {
			pos.PictureType = FrameTypeB
		}

		if pos.PictureType == FrameTypeB {
			// A naturally-occurring open-GOP boundary truncates an
			// in-flight B-run even when it never forces a promoted
			// reference: the boundary I-frame is itself a valid forward
			// anchor, so the run only needs to be short enough to reach it.
			openPd := periodDelta(*st, uint32(s.cfg.GopFrameCount))
			openRd := refDelta(*st, openPd)
			if openRd-1 < uint32(bCount) {
				bCount = uint8(openRd - 1)
			}
		}
	default:
		pos.PictureType = FrameTypeP
	}

	if pos.PictureType == FrameTypeB {
		pos.EncodeOrder = st.PositionInInputOrder + 1
		pos.BFramePos = int8(st.PositionInInputOrder - st.LastRefInInputOrder - 1)
		pos.NumBFrames = int8(bCount)
	} else {
		pos.EncodeOrder = st.LastRefInInputOrder + 1
		pos.Flags |= FlagIsRef
		st.LastRefInInputOrder = st.PositionInInputOrder
		st.LastRefInEncodeOrder = pos.EncodeOrder
	}

	st.PositionInInputOrder++
	return pos
}
