package bitio

// ObuType is the AV1 obu_type field (spec §6.3).
type ObuType uint8

const (
	ObuSequenceHeader   ObuType = 1
	ObuTemporalDelim    ObuType = 2
	ObuFrameHeader      ObuType = 3
	ObuTileGroup        ObuType = 4
	ObuMetadata         ObuType = 5
	ObuFrame            ObuType = 6
	ObuRedundantFrameHdr ObuType = 7
	ObuPadding          ObuType = 15
)

// TemporalDelimiterOBU is the fixed two-byte temporal delimiter OBU every
// AV1 temporal unit begins with (spec §6.3: "0x12 0x00").
var TemporalDelimiterOBU = []byte{0x12, 0x00}

// WriteOBU wraps payload in an OBU header + uleb128 size, matching
// has_size=1 framing (every OBU this encoder emits carries an explicit
// size field, spec §6.3).
func WriteOBU(obuType ObuType, extensionFlag bool, payload []byte) []byte {
	header := NewWriter(1)
	header.WriteBit(0) // obu_forbidden_bit
	header.WriteBits(uint32(obuType), 4)
	ext := uint32(0)
	if extensionFlag {
		ext = 1
	}
	header.WriteBit(ext)
	header.WriteBit(1) // obu_has_size_field
	header.WriteBit(0) // obu_reserved_1bit

	size := NewWriter(4)
	size.WriteULEB128(uint64(len(payload)))

	out := make([]byte, 0, len(header.Data())+len(size.Data())+len(payload))
	out = append(out, header.Data()...)
	out = append(out, size.Data()...)
	out = append(out, payload...)
	return out
}

// ShowExistingFrameParams carries the optional fields of a synthesized
// show_existing_frame frame header (spec §6.3).
type ShowExistingFrameParams struct {
	FrameToShowMapIdx int

	FramePresentationTimeLength int // 0 disables the field
	PresentationTime            uint32

	// CurrentFrameID, when CurrentFrameIDBits > 0, is written as
	// delta_frame_id_length + 2 + additional_frame_id_length + 1 bits
	// (spec §6.3).
	CurrentFrameIDBits int
	CurrentFrameID     uint32
}

// WriteShowExistingFrameOBU synthesizes the FRAME_HEADER OBU for an AV1
// show_existing_frame picture (spec §6.3 and §4.7's "ShowExistingFrame"
// dependant): show_existing_frame=1, frame_to_show_map_idx, optional
// presentation time and frame id, trailing bit.
func WriteShowExistingFrameOBU(p ShowExistingFrameParams) []byte {
	payload := NewWriter(4)
	payload.WriteBit(1) // show_existing_frame
	payload.WriteBits(uint32(p.FrameToShowMapIdx), 3)

	if p.FramePresentationTimeLength > 0 {
		payload.WriteBits(p.PresentationTime, p.FramePresentationTimeLength)
	}
	if p.CurrentFrameIDBits > 0 {
		payload.WriteBits(p.CurrentFrameID, p.CurrentFrameIDBits)
	}
	payload.ByteAlign()

	return WriteOBU(ObuFrameHeader, false, payload.Data())
}
