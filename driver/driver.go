// Package driver defines the hardware-abstraction contract the CORE
// consumes (spec §6.1): session/parameter creation, command recording,
// queue submission and query-pool readback. The CORE never talks to
// Vulkan directly; it only ever holds a Driver and the handle types below.
//
// Handle types for the common GPU objects (images, buffers, fences,
// semaphores, command buffers, queues) are the real bindings from
// github.com/goki/vulkan, the same package IntuitionAmiga-IntuitionEngine
// uses for its Vulkan backend. The Vulkan Video KHR surface (sessions,
// session parameters, encode/query structures) is not yet covered by that
// package, so it is modeled here following the shape of the teacher's
// video.go / video_h264.go / video_h265.go KHR bindings, generalized to
// also describe AV1.
package driver

import (
	"context"

	vk "github.com/goki/vulkan"
)

// Codec identifies the codec toolchain a session was created for.
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
	CodecAV1
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	case CodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

// VideoSessionKHR is an opaque handle to a Vulkan Video encode session.
type VideoSessionKHR struct{ handle uintptr }

// VideoSessionParametersKHR is an opaque handle to a session-parameters
// object (SPS/PPS/VPS or AV1 sequence header baked for the driver).
type VideoSessionParametersKHR struct{ handle uintptr }

// Extent2D mirrors VkExtent2D.
type Extent2D struct{ Width, Height uint32 }

// Profile describes the encode profile requested of CreateVideoSession.
type Profile struct {
	Codec        Codec
	ProfileIDC   uint32
	LumaBitDepth uint32
	ChromaFormat uint32
}

// Capabilities mirrors the fields of VkVideoCapabilitiesKHR /
// VkVideoEncodeCapabilitiesKHR this CORE actually consults.
type Capabilities struct {
	MinCodedExtent            Extent2D
	MaxCodedExtent             Extent2D
	MaxDpbSlots                uint32
	MaxActiveReferencePictures uint32
	MaxBitrate                 uint64
	MinQP, MaxQP                int32
	SupportedRefNameMask        uint32 // AV1 only: which of the 7 ref names the hw supports concurrently
}

// PictureResource is the { image view, coded extent } pair bound as the
// source or setup/reference picture resource of an encode submission.
type PictureResource struct {
	ImageView vk.ImageView
	Extent    Extent2D
	BaseLayer uint32
}

// ReferenceSlot is one entry of the reference-slot array bound at
// BeginVideoCoding / EncodeVideo time. SlotIndex -1 marks the reserved
// "setup" placeholder (spec §4.6).
type ReferenceSlot struct {
	SlotIndex int32
	Resource  PictureResource
	// StdReferenceInfo is the codec's std header for this slot (one of
	// StdVideoEncodeH264ReferenceInfo / ...H265.../ ...AV1...), left
	// untyped here since the three codecs disagree on shape; assembler
	// fills the codec-appropriate concrete value.
	StdReferenceInfo any
}

// EncodeInfo is the full per-frame hardware-submission descriptor the
// assembler (C6) bakes and the driver consumes in EncodeVideo.
type EncodeInfo struct {
	DstBuffer          vk.Buffer
	DstBufferOffset    uint64
	DstBufferRange     uint64
	SrcPictureResource PictureResource
	SetupReferenceSlot *ReferenceSlot
	ReferenceSlots     []ReferenceSlot
	// StdPictureInfo is one of StdVideoEncodeH264PictureInfo /
	// ...H265.../ ...AV1..., filled by the assembler.
	StdPictureInfo any
	QueryPoolSlot  uint32
}

// CodingControl selects the operation of ControlVideoCoding.
type CodingControl int

const (
	ControlReset CodingControl = iota
	ControlRateControl
	ControlQuality
)

// RateControlCommand is the rate-control reconfiguration chained onto
// ControlVideoCoding when a reconfiguration is pending (spec §4.6).
type RateControlCommand struct {
	Mode           RateControlMode
	AverageBitrate uint64
	MaxBitrate     uint64
	MinQP, MaxQP   int32
}

// RateControlMode mirrors the rate_control configuration option (spec §6.4).
type RateControlMode int

const (
	RateControlDisabled RateControlMode = iota
	RateControlDefault
	RateControlCBR
	RateControlVBR
)

// QueryStatus is the status reported by QueryPool.GetResults.
type QueryStatus int

const (
	QueryComplete QueryStatus = iota
	QueryIncomplete
	QueryNotReady
	QueryErrorUnspecified
)

// QueryResult is the result of a single query-pool slot readback.
type QueryResult struct {
	BitstreamStartOffset uint64
	BitstreamSize        uint64
	Status               QueryStatus
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffer vk.CommandBuffer
	Wait          []vk.Semaphore
	Signal        []vk.Semaphore
	Fence         vk.Fence
}

// Driver is the five operations of spec §6.1. Implementations must be
// safe for the CORE's single-producer-thread usage; they are not required
// to be safe for concurrent calls from multiple goroutines.
type Driver interface {
	// CreateVideoSession creates a session for profile at the given max
	// coded extent and picture format.
	CreateVideoSession(ctx context.Context, profile Profile, maxExtent Extent2D, format uint32, maxDpbSlots, maxActiveRefs uint32) (VideoSessionKHR, Capabilities, error)

	// CreateSessionParameters bakes codec-specific std headers into a
	// session-parameters object.
	CreateSessionParameters(ctx context.Context, session VideoSessionKHR, stdHeaders any, qualityLevel uint32) (VideoSessionParametersKHR, error)
	// GetEncodedParameters returns the non-VCL prelude bytes (e.g. the
	// SPS/PPS Annex-B blob) for the given parameter-set ids.
	GetEncodedParameters(ctx context.Context, params VideoSessionParametersKHR, spsID, ppsID uint32) ([]byte, error)

	BeginVideoCoding(cmd vk.CommandBuffer, session VideoSessionKHR, params VideoSessionParametersKHR, refs []ReferenceSlot) error
	ControlVideoCoding(cmd vk.CommandBuffer, control CodingControl, rc *RateControlCommand) error
	EncodeVideo(cmd vk.CommandBuffer, info EncodeInfo) error
	EndVideoCoding(cmd vk.CommandBuffer) error

	Submit(ctx context.Context, queue vk.Queue, info SubmitInfo) error

	QueryResults(ctx context.Context, slot uint32) (QueryResult, error)

	DestroySession(session VideoSessionKHR)
	DestroySessionParameters(params VideoSessionParametersKHR)
}

// TimelineSemaphore orders a compute pre-processing submission against the
// video-encode submission for one FrameInfo (spec §5).
type TimelineSemaphore struct {
	Semaphore vk.Semaphore
	value     uint64
}

// Next returns the next wait/signal value to use for this frame's pair of
// submissions.
func (t *TimelineSemaphore) Next() uint64 {
	t.value++
	return t.value
}
