package bitio

import (
	"bytes"
	"testing"
)

func TestWriteBitsMSBFirst(t *testing.T) {
	w := NewWriter(4)
	w.WriteBits(0b101, 3)
	w.WriteBits(0b1, 1)
	got := w.Data()
	want := []byte{0b10110000}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %08b, want %08b", got, want)
	}
}

func TestWriteUERoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 2, 3, 7, 8, 255, 65535}
	for _, c := range cases {
		w := NewWriter(8)
		w.WriteUE(c)
		r := newBitReader(w.Data())
		got := r.readUE()
		if got != c {
			t.Fatalf("WriteUE(%d) round-tripped to %d", c, got)
		}
	}
}

func TestWriteSERoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 2, -2, 100, -100}
	for _, c := range cases {
		w := NewWriter(8)
		w.WriteSE(c)
		r := newBitReader(w.Data())
		got := r.readSE()
		if got != c {
			t.Fatalf("WriteSE(%d) round-tripped to %d", c, got)
		}
	}
}

func TestByteAlignAlwaysWritesStopBit(t *testing.T) {
	w := NewWriter(2)
	w.WriteBits(0xFF, 8) // already byte-aligned
	before := len(w.Data())
	w.ByteAlign()
	if len(w.Data()) != before+1 {
		t.Fatalf("expected ByteAlign to append one byte for the stop bit, data len went from %d to %d", before, len(w.Data()))
	}
	if w.Data()[before] != 0x80 {
		t.Fatalf("expected trailing byte 0x80 (stop bit then zeros), got %#x", w.Data()[before])
	}
}

func TestWriteULEB128(t *testing.T) {
	cases := map[uint64][]byte{
		0:   {0x00},
		1:   {0x01},
		127: {0x7f},
		128: {0x80, 0x01},
		300: {0xac, 0x02},
	}
	for in, want := range cases {
		w := NewWriter(4)
		w.WriteULEB128(in)
		if !bytes.Equal(w.Data(), want) {
			t.Fatalf("WriteULEB128(%d) = %v, want %v", in, w.Data(), want)
		}
	}
}

func TestEscapeEmulationPreventsFalseStartCodes(t *testing.T) {
	rbsp := []byte{0x00, 0x00, 0x00, 0x01, 0x02, 0x03}
	nal := WriteNALUnit(1, 3, rbsp)
	body := nal[len(AnnexBStartCode)+1:] // skip start code + nal header
	if bytes.Contains(body, []byte{0x00, 0x00, 0x00}) {
		t.Fatalf("escaped RBSP still contains a raw 00 00 00 sequence: %v", body)
	}
	if bytes.Contains(body, []byte{0x00, 0x00, 0x01}) {
		t.Fatalf("escaped RBSP still contains a raw start-code-like sequence: %v", body)
	}
}

func TestWriteShowExistingFrameOBU(t *testing.T) {
	data := WriteShowExistingFrameOBU(ShowExistingFrameParams{FrameToShowMapIdx: 5})

	header := data[0]
	if header&0x80 != 0 {
		t.Fatal("obu_forbidden_bit must be 0")
	}
	obuType := (header >> 3) & 0x0F
	if ObuType(obuType) != ObuFrameHeader {
		t.Fatalf("expected obu_type FRAME_HEADER, got %d", obuType)
	}
	if header&0x02 == 0 {
		t.Fatal("expected obu_has_size_field set")
	}

	size := uint64(data[1])
	payload := data[2 : 2+size]
	if payload[0]&0x80 == 0 {
		t.Fatal("expected show_existing_frame bit set in payload")
	}
	mapIdx := (payload[0] >> 4) & 0x07
	if mapIdx != 5 {
		t.Fatalf("expected frame_to_show_map_idx=5, got %d", mapIdx)
	}
}

// bitReader is a tiny test-only MSB-first reader mirroring the writer's bit
// order, used only to round-trip WriteUE/WriteSE in these tests.
type bitReader struct {
	data []byte
	pos  int
}

func newBitReader(data []byte) *bitReader { return &bitReader{data: data} }

func (r *bitReader) readBit() uint32 {
	byteIdx := r.pos / 8
	bitIdx := r.pos % 8
	r.pos++
	if byteIdx >= len(r.data) {
		return 0
	}
	return uint32((r.data[byteIdx] >> (7 - bitIdx)) & 1)
}

func (r *bitReader) readBits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = (v << 1) | r.readBit()
	}
	return v
}

func (r *bitReader) readUE() uint32 {
	leadingZeros := 0
	for r.readBit() == 0 {
		leadingZeros++
		if leadingZeros > 32 {
			break
		}
	}
	if leadingZeros == 0 {
		return 0
	}
	return (1 << leadingZeros) - 1 + r.readBits(leadingZeros)
}

func (r *bitReader) readSE() int32 {
	codeNum := r.readUE()
	if codeNum%2 == 0 {
		return -int32(codeNum / 2)
	}
	return int32((codeNum + 1) / 2)
}
