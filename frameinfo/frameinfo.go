// Package frameinfo implements C2 (the bounded FrameInfo pool) and the
// FrameInfo type itself: the one-per-in-flight-picture context object that
// owns every resource handle a picture touches until Assemble completes.
package frameinfo

import (
	vk "github.com/goki/vulkan"

	"github.com/NOT-REAL-GAMES/vkvideoenc/bitstreampool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/gop"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
)

// State is a FrameInfo's position in the pipeline state machine (spec §4.7).
type State int

const (
	StateNew State = iota
	StateLoaded
	StateEnqueued
	StateSubmitted
	StateAssembled
	StateReset
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateLoaded:
		return "LOADED"
	case StateEnqueued:
		return "ENQUEUED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateAssembled:
		return "ASSEMBLED"
	case StateReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// MaxReferenceSlots bounds the number of active reference-slot handles one
// FrameInfo can hold (spec §3: "up to 16 reference-slot handles").
const MaxReferenceSlots = 16

// FrameInfo is one in-flight picture's full resource ownership record.
// Every field is owned (refcounted) except StdHeaders, which is a borrowed
// reference to the active session-parameters object.
type FrameInfo struct {
	Pos gop.Position

	InputImage imagepool.Handle
	DpbSlot    imagepool.Handle // zero Handle if this picture is not a reference
	RefSlots   []imagepool.Handle

	Bitstream bitstreampool.Entry

	CommandBuffer vk.CommandBuffer
	Fence         vk.Fence
	Semaphore     vk.Semaphore
	QueryPoolSlot uint32

	// StdHeaders is a borrowed (non-owning) pointer to the codec-specific
	// session-parameters payload (SPS/PPS/VPS or AV1 sequence header)
	// active when this picture was recorded.
	StdHeaders any

	// EncodeInfo is the hardware descriptor the assembler (C6) fills in:
	// source/reference picture resources, rate-control commands, and the
	// non-VCL prelude bytes for this picture.
	EncodeInfo driver.EncodeInfo
	Prelude    []byte
	RateControl *driver.RateControlCommand

	State State

	// Corrupted is set when a fence timeout or query status != COMPLETE
	// affects this picture (spec §7 kinds 4-5); it feeds DpbManager's
	// need_to_reorder().
	Corrupted bool

	// Dependants holds FrameInfos chained behind this one because they are
	// B-frames deferred on this picture as their forward anchor (spec §9's
	// DAG-of-dependants model, replacing the original's recursive
	// InsertOrdered linked list).
	Dependants []*FrameInfo

	// ShowExistingFrame marks a synthesized AV1 dependant that carries only
	// a header payload and shares its anchor's DPB slot (spec §4.7).
	ShowExistingFrame bool
	ShowExistingIndex int32 // frame_to_show_map_idx, valid iff ShowExistingFrame
}

// Reset clears every owned handle and field so the FrameInfo can be reused.
// It is idempotent: calling it twice in a row is a no-op the second time.
// Callers are responsible for releasing handles into their backing pools
// *before* calling Reset (Pool.Release calls Reset and leaves that to its
// own caller) — Reset only clears bookkeeping,
// it does not itself call imagepool.Pool.Release / bitstreampool.Pool.Release,
// since the FrameInfo does not hold references to those pools.
func (f *FrameInfo) Reset() {
	*f = FrameInfo{
		RefSlots:   f.RefSlots[:0],
		Dependants: f.Dependants[:0],
		State:      StateReset,
	}
}
