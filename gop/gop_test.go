package gop

import "testing"

// scenario 1: gop=11, idr=25, b=3, open GOP, 30 frames, last-frame P.
func TestSequencer_Scenario1(t *testing.T) {
	cfg := Config{
		GopFrameCount:          11,
		IdrPeriod:              25,
		ConsecutiveBFrameCount: 3,
		ClosedGop:              false,
		PreIdrAnchorType:       FrameTypeP,
	}
	seq, err := NewSequencer(cfg)
	if err != nil {
		t.Fatal(err)
	}

	wantEncodeOrder := []uint32{
		0, 2, 3, 4, 1, 6, 7, 8, 5, 10, 11, 9,
		13, 14, 15, 12, 17, 18, 19, 16, 21, 22, 20, 24, 23, 0, 2, 3, 4, 1,
	}

	var st State
	gotEncodeOrder := make([]uint32, 0, len(wantEncodeOrder))
	for i := 0; i < len(wantEncodeOrder); i++ {
		pos := seq.Next(&st, i == 0, uint32(len(wantEncodeOrder)-i-1))
		gotEncodeOrder = append(gotEncodeOrder, pos.EncodeOrder)
	}

	for i := range wantEncodeOrder {
		if gotEncodeOrder[i] != wantEncodeOrder[i] {
			t.Errorf("frame %d: encodeOrder = %d, want %d (full: %v)", i, gotEncodeOrder[i], wantEncodeOrder[i], gotEncodeOrder)
			break
		}
	}
}

// scenario 2: gop=8, idr=16, b=0, 20 frames: encode_order == input_order; no B.
func TestSequencer_Scenario2(t *testing.T) {
	cfg := Config{
		GopFrameCount:          8,
		IdrPeriod:              16,
		ConsecutiveBFrameCount: 0,
		PreIdrAnchorType:       FrameTypeP,
	}
	seq, err := NewSequencer(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var st State
	for i := 0; i < 20; i++ {
		pos := seq.Next(&st, i == 0, uint32(19-i))
		if pos.PictureType == FrameTypeB {
			t.Fatalf("frame %d: unexpected B frame with b=0", i)
		}
		wantInput := pos.InputOrder
		if pos.EncodeOrder != wantInput {
			t.Errorf("frame %d: encodeOrder=%d inputOrder=%d, want equal", i, pos.EncodeOrder, wantInput)
		}
	}
}

// scenario 3: gop=8, idr=16, b=1, 20 frames: output is I, B, P, B, P, ...;
// B at odd positions, promoted P at last position before IDR.
func TestSequencer_Scenario3(t *testing.T) {
	cfg := Config{
		GopFrameCount:          8,
		IdrPeriod:              16,
		ConsecutiveBFrameCount: 1,
		PreIdrAnchorType:       FrameTypeP,
	}
	seq, err := NewSequencer(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var st State
	for i := 0; i < 20; i++ {
		pos := seq.Next(&st, i == 0, uint32(19-i))
		if i == 0 {
			if pos.PictureType != FrameTypeIDR {
				t.Fatalf("frame 0: want IDR, got %s", pos.PictureType)
			}
			continue
		}
		inGop := i % 8
		if inGop%2 == 1 {
			// odd positions within the GOP are candidate B frames, except
			// when promoted to close out a period.
			if pos.PictureType != FrameTypeB && !(pos.Flags&FlagCloseGop != 0) {
				t.Errorf("frame %d (inGop=%d): got %s, want B or a promoted anchor", i, inGop, pos.PictureType)
			}
		}
	}
}
