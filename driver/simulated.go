package driver

import (
	"context"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
)

// Simulated is a deterministic, GPU-free Driver used by tests and by
// cmd/vkenc. It never blocks on real hardware: Submit "completes"
// synchronously and QueryResults reports success for every slot an encode
// was recorded into (not-ready for any other slot), unless
// FailQuerySlot/FailNextSubmit have been armed by a test.
type Simulated struct {
	mu sync.Mutex

	nextHandle uint64
	sessions   map[uintptr]Capabilities

	queryResults map[uint32]QueryResult

	failNextSubmit atomic.Bool
	failQuerySlots map[uint32]bool
}

// NewSimulated returns a ready Simulated driver.
func NewSimulated() *Simulated {
	return &Simulated{
		sessions:       make(map[uintptr]Capabilities),
		queryResults:   make(map[uint32]QueryResult),
		failQuerySlots: make(map[uint32]bool),
	}
}

func (s *Simulated) alloc() uintptr {
	return uintptr(atomic.AddUint64(&s.nextHandle, 1))
}

// FailQuerySlot arms QueryResults to report QueryErrorUnspecified the next
// time the given slot is read, simulating a corrupted reconstruction
// (spec §8 scenario 6).
func (s *Simulated) FailQuerySlot(slot uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQuerySlots[slot] = true
}

// FailNextSubmit arms the next Submit call to fail once.
func (s *Simulated) FailNextSubmit() { s.failNextSubmit.Store(true) }

func (s *Simulated) CreateVideoSession(_ context.Context, profile Profile, maxExtent Extent2D, _ uint32, maxDpbSlots, maxActiveRefs uint32) (VideoSessionKHR, Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := Capabilities{
		MinCodedExtent:             Extent2D{Width: 16, Height: 16},
		MaxCodedExtent:             maxExtent,
		MaxDpbSlots:                maxDpbSlots,
		MaxActiveReferencePictures: maxActiveRefs,
		MaxBitrate:                 200_000_000,
		MinQP:                      0,
		MaxQP:                      51,
		SupportedRefNameMask:       0x7F, // all 7 AV1 reference names
	}
	h := s.alloc()
	s.sessions[h] = caps
	return VideoSessionKHR{handle: h}, caps, nil
}

func (s *Simulated) CreateSessionParameters(_ context.Context, _ VideoSessionKHR, _ any, _ uint32) (VideoSessionParametersKHR, error) {
	return VideoSessionParametersKHR{handle: s.alloc()}, nil
}

func (s *Simulated) GetEncodedParameters(_ context.Context, _ VideoSessionParametersKHR, spsID, ppsID uint32) ([]byte, error) {
	return []byte{0x00, 0x00, 0x00, 0x01, byte(spsID), byte(ppsID)}, nil
}

func (s *Simulated) BeginVideoCoding(vk.CommandBuffer, VideoSessionKHR, VideoSessionParametersKHR, []ReferenceSlot) error {
	return nil
}

func (s *Simulated) ControlVideoCoding(vk.CommandBuffer, CodingControl, *RateControlCommand) error {
	return nil
}

func (s *Simulated) EncodeVideo(_ vk.CommandBuffer, info EncodeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryResults[info.QueryPoolSlot] = QueryResult{
		BitstreamStartOffset: 0,
		BitstreamSize:        4096,
		Status:                QueryComplete,
	}
	return nil
}

func (s *Simulated) EndVideoCoding(vk.CommandBuffer) error { return nil }

func (s *Simulated) Submit(_ context.Context, _ vk.Queue, _ SubmitInfo) error {
	if s.failNextSubmit.CompareAndSwap(true, false) {
		return errSimulatedSubmitFailure
	}
	return nil
}

func (s *Simulated) QueryResults(_ context.Context, slot uint32) (QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQuerySlots[slot] {
		delete(s.failQuerySlots, slot)
		return QueryResult{Status: QueryErrorUnspecified}, nil
	}
	r, ok := s.queryResults[slot]
	if !ok {
		return QueryResult{Status: QueryNotReady}, nil
	}
	return r, nil
}

func (s *Simulated) DestroySession(session VideoSessionKHR) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session.handle)
}

func (s *Simulated) DestroySessionParameters(VideoSessionParametersKHR) {}

type simulatedError string

func (e simulatedError) Error() string { return string(e) }

const errSimulatedSubmitFailure = simulatedError("driver: simulated submit failure")
