package encconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
)

func validDoc() string {
	return `{
		"codec": "h264",
		"gop_frame_count": 30,
		"idr_period": 60,
		"b_frames": 2,
		"last_frame_type": "P",
		"rate_control": "cbr",
		"average_bitrate": 4000000,
		"max_bitrate": 6000000,
		"min_qp": 10,
		"max_qp": 51,
		"input_width": 1920,
		"input_height": 1080,
		"input_bpp": 8,
		"chroma": "420p8",
		"encode_width": 1920,
		"encode_height": 1080,
		"max_width": 1920,
		"max_height": 1080,
		"quality_level": 2,
		"tuning_mode": "lowlatency",
		"num_input_images": 8,
		"num_bitstream_buffers_to_preallocate": 8
	}`
}

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validDoc()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Codec != driver.CodecH264 {
		t.Fatalf("expected h264, got %v", cfg.Codec)
	}
	if cfg.RateControl != driver.RateControlCBR {
		t.Fatalf("expected cbr, got %v", cfg.RateControl)
	}
	if cfg.Gop.GopFrameCount != 30 || cfg.Gop.ConsecutiveBFrameCount != 2 {
		t.Fatalf("gop parameters not propagated: %+v", cfg.Gop)
	}
	if cfg.TuningMode != TuningLowLatency {
		t.Fatalf("expected lowlatency tuning, got %v", cfg.TuningMode)
	}
}

func TestParseRejectsUnknownCodec(t *testing.T) {
	doc := map[string]any{"codec": "mpeg2", "input_width": 1, "input_height": 1,
		"encode_width": 1, "encode_height": 1, "max_width": 1, "max_height": 1,
		"num_input_images": 1, "gop_frame_count": 1, "last_frame_type": "P"}
	raw, _ := json.Marshal(doc)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected an error for an unknown codec")
	}
}

func TestValidateRejectsEncodeExtentLargerThanMax(t *testing.T) {
	var doc jsonDoc
	if err := json.Unmarshal([]byte(validDoc()), &doc); err != nil {
		t.Fatal(err)
	}
	doc.EncodeWidth = 3840
	raw, _ := json.Marshal(doc)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected an error when encode extent exceeds max extent")
	}
}

func TestValidateRequiresBitrateForCBR(t *testing.T) {
	var doc jsonDoc
	if err := json.Unmarshal([]byte(validDoc()), &doc); err != nil {
		t.Fatal(err)
	}
	doc.AverageBitrate = 0
	raw, _ := json.Marshal(doc)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected an error when cbr is selected without average_bitrate")
	}
}

func TestValidateRequiresQPMapFileWhenEnabled(t *testing.T) {
	var doc jsonDoc
	if err := json.Unmarshal([]byte(validDoc()), &doc); err != nil {
		t.Fatal(err)
	}
	doc.EnableQPMap = true
	doc.QPMapFile = ""
	raw, _ := json.Marshal(doc)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected an error when enable_qp_map is set without qp_map_file")
	}
}

func TestWatchQPMapPushesInitialAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qpmap.json")
	if err := os.WriteFile(path, []byte(`{"deltas":[1,2,3]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := WatchQPMap(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatalf("WatchQPMap: %v", err)
	}

	select {
	case m := <-ch:
		if len(m.Deltas) != 3 {
			t.Fatalf("expected 3 deltas, got %d", len(m.Deltas))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial qp map")
	}

	if err := os.WriteFile(path, []byte(`{"deltas":[4,5]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-ch:
		if len(m.Deltas) != 2 {
			t.Fatalf("expected 2 deltas after reload, got %d", len(m.Deltas))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reloaded qp map")
	}
}
