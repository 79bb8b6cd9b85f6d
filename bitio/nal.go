package bitio

// NalUnitType is the H.264/H.265 NAL unit type field, generalized from the
// teacher's H264NalUnitType enum in video_h264.go.
type NalUnitType uint8

// AnnexBStartCode is the 4-byte Annex-B start code every NAL unit is
// prefixed with.
var AnnexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// WriteNALUnit wraps rbsp in a NAL unit with Annex-B start code and
// emulation-prevention escaping, ported from the teacher's WriteNALUnit.
// refIdc and nalType are packed into a single-byte H.264-style header
// (forbidden_zero_bit | nal_ref_idc | nal_unit_type); H.265 callers pass
// their own two-byte header via WriteNALUnitRaw instead.
func WriteNALUnit(nalType NalUnitType, refIdc uint8, rbsp []byte) []byte {
	escaped := escapeEmulation(rbsp)
	header := (refIdc << 5) | uint8(nalType)

	result := make([]byte, 0, len(AnnexBStartCode)+1+len(escaped))
	result = append(result, AnnexBStartCode...)
	result = append(result, header)
	result = append(result, escaped...)
	return result
}

// WriteNALUnitRaw wraps rbsp in a NAL unit with a caller-supplied header
// (used by H.265, whose NAL header is two bytes).
func WriteNALUnitRaw(header []byte, rbsp []byte) []byte {
	escaped := escapeEmulation(rbsp)
	result := make([]byte, 0, len(AnnexBStartCode)+len(header)+len(escaped))
	result = append(result, AnnexBStartCode...)
	result = append(result, header...)
	result = append(result, escaped...)
	return result
}

// escapeEmulation replaces 00 00 00/01/02/03 with 00 00 03 00/01/02/03 so
// the start-code scanner never misfires inside RBSP payload bytes.
func escapeEmulation(rbsp []byte) []byte {
	escaped := make([]byte, 0, len(rbsp)+len(rbsp)/2)
	zeroCount := 0
	for _, b := range rbsp {
		if zeroCount >= 2 && b <= 3 {
			escaped = append(escaped, 0x03)
			zeroCount = 0
		}
		escaped = append(escaped, b)
		if b == 0 {
			zeroCount++
		} else {
			zeroCount = 0
		}
	}
	return escaped
}
