// Package muxout implements the two output container writers spec §6.3
// calls for: raw Annex-B for H.264/H.265, and an IVF container for AV1.
// Structured box/container assembly here follows the teacher's MP4Writer
// in video_h264.go (accumulate into a growable []byte, finalize on
// demand) even though neither output format here is box-structured MP4.
package muxout

import (
	"encoding/binary"
)

// AnnexBWriter accumulates H.264/H.265 Annex-B bytes: the non-VCL header
// prelude once, then VCL NAL units in encode order (spec §6.3).
type AnnexBWriter struct {
	data []byte
}

// NewAnnexBWriter creates an empty writer with capacity pre-reserved.
func NewAnnexBWriter(capacity int) *AnnexBWriter {
	return &AnnexBWriter{data: make([]byte, 0, capacity)}
}

// WritePrelude appends the non-VCL header prelude bytes (SPS/PPS/VPS),
// emitted once per IDR / sequence change (spec §4.6).
func (w *AnnexBWriter) WritePrelude(prelude []byte) {
	w.data = append(w.data, prelude...)
}

// WriteFrame appends one VCL NAL unit (already Annex-B framed by bitio).
func (w *AnnexBWriter) WriteFrame(nal []byte) {
	w.data = append(w.data, nal...)
}

// Bytes returns the accumulated stream.
func (w *AnnexBWriter) Bytes() []byte { return w.data }

// ivfFileHeaderSize and ivfFrameHeaderSize are the fixed IVF header sizes
// (spec §6.3: "32-byte file header, 12-byte frame header").
const (
	ivfFileHeaderSize  = 32
	ivfFrameHeaderSize = 12
)

// IVFWriter wraps an AV1 bitstream (temporal delimiter + optional sequence
// header + frame/tile OBUs per temporal unit, including synthesized
// show_existing_frame units) in an IVF container.
type IVFWriter struct {
	width, height uint32
	timebaseNum   uint32
	timebaseDen   uint32

	frames [][]byte
	ptss   []uint64
}

// NewIVFWriter creates a writer for the given coded dimensions and
// timebase.
func NewIVFWriter(width, height, timebaseNum, timebaseDen uint32) *IVFWriter {
	return &IVFWriter{width: width, height: height, timebaseNum: timebaseNum, timebaseDen: timebaseDen}
}

// WriteFrame appends one temporal unit's OBU payload (the caller is
// responsible for having prefixed it with the temporal delimiter OBU and
// any sequence header / frame OBUs, per spec §6.3) tagged with pts.
func (w *IVFWriter) WriteFrame(payload []byte, pts uint64) {
	w.frames = append(w.frames, payload)
	w.ptss = append(w.ptss, pts)
}

// Finalize returns the complete IVF file bytes.
func (w *IVFWriter) Finalize() []byte {
	total := ivfFileHeaderSize
	for _, f := range w.frames {
		total += ivfFrameHeaderSize + len(f)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, w.fileHeader()...)
	for i, f := range w.frames {
		buf = append(buf, frameHeader(uint32(len(f)), w.ptss[i])...)
		buf = append(buf, f...)
	}
	return buf
}

func (w *IVFWriter) fileHeader() []byte {
	h := make([]byte, ivfFileHeaderSize)
	copy(h[0:4], []byte("DKIF"))
	binary.LittleEndian.PutUint16(h[4:6], 0)  // version
	binary.LittleEndian.PutUint16(h[6:8], 32) // header length
	copy(h[8:12], []byte("AV01"))
	binary.LittleEndian.PutUint16(h[12:14], uint16(w.width))
	binary.LittleEndian.PutUint16(h[14:16], uint16(w.height))
	binary.LittleEndian.PutUint32(h[16:20], w.timebaseDen)
	binary.LittleEndian.PutUint32(h[20:24], w.timebaseNum)
	binary.LittleEndian.PutUint32(h[24:28], uint32(len(w.frames)))
	binary.LittleEndian.PutUint32(h[28:32], 0) // unused
	return h
}

func frameHeader(size uint32, pts uint64) []byte {
	h := make([]byte, ivfFrameHeaderSize)
	binary.LittleEndian.PutUint32(h[0:4], size)
	binary.LittleEndian.PutUint64(h[4:12], pts)
	return h
}
