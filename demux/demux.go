// Package demux implements C's external demuxer contract (spec §6.2): a
// minimal interface the pipeline pulls raw picture planes from, plus a
// planar-YUV file-backed implementation. Demuxing, YUV parsing, and
// bitstream file writers are explicitly out of the CORE's scope (spec
// §1); this package exists only so the pipeline and its tests have a
// concrete, in-scope collaborator to call through the contract.
package demux

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ChromaFormat selects the subsampling and bit-depth packing the demuxer
// must produce (spec §6.2: "Layout must match the codec input format").
type ChromaFormat int

const (
	Chroma420Planar8 ChromaFormat = iota // three-plane 4:2:0, 8-bit (Y, Cb, Cr); the two-plane interleaved-CbCr layout is not read
	Chroma420Packed10
	Chroma420Packed12
)

// Frame is one demuxed picture: a luma plane and one or more chroma
// planes, each with its own stride (spec §6.2).
type Frame struct {
	Y      []byte
	Chroma [][]byte
	Stride []int
}

// Source is the minimal demuxer contract the pipeline consumes.
type Source interface {
	// LoadFrame returns the picture at inputOrder.
	LoadFrame(inputOrder uint32) (Frame, error)
	// FrameCount reports the total number of pictures available, or 0 if
	// unknown (e.g. a live/streaming source).
	FrameCount() uint32
}

// FileSource reads fixed-size planar YUV frames sequentially from a
// single file, the common "raw YUV dump" format demuxer contracts in this
// space are tested against.
type FileSource struct {
	f      *os.File
	r      *bufio.Reader
	width  uint32
	height uint32
	format ChromaFormat

	frameSize  int
	frameCount uint32

	ySize      int
	chromaSize []int
	strides    []int
}

// NewFileSource opens path and computes per-frame plane sizes for width x
// height at format.
func NewFileSource(path string, width, height uint32, format ChromaFormat) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "demux: opening source file")
	}

	fs := &FileSource{f: f, r: bufio.NewReaderSize(f, 1<<20), width: width, height: height, format: format}
	fs.computeLayout()

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "demux: stat source file")
	}
	if fs.frameSize > 0 {
		fs.frameCount = uint32(info.Size() / int64(fs.frameSize))
	}
	return fs, nil
}

func (fs *FileSource) computeLayout() {
	w, h := int(fs.width), int(fs.height)
	switch fs.format {
	case Chroma420Planar8:
		fs.ySize = w * h
		cw, ch := (w+1)/2, (h+1)/2
		fs.chromaSize = []int{cw * ch, cw * ch}
		fs.strides = []int{w, cw, cw}
	case Chroma420Packed10, Chroma420Packed12:
		fs.ySize = w * h * 2
		cw, ch := (w+1)/2, (h+1)/2
		fs.chromaSize = []int{cw * ch * 2, cw * ch * 2}
		fs.strides = []int{w * 2, cw * 2, cw * 2}
	}
	fs.frameSize = fs.ySize
	for _, s := range fs.chromaSize {
		fs.frameSize += s
	}
}

// FrameCount returns the number of whole frames in the file.
func (fs *FileSource) FrameCount() uint32 { return fs.frameCount }

// LoadFrame seeks to inputOrder's frame from the start of the file and
// reads its planes, so frames can be loaded in any order.
func (fs *FileSource) LoadFrame(inputOrder uint32) (Frame, error) {
	if fs.frameCount > 0 && inputOrder >= fs.frameCount {
		return Frame{}, fmt.Errorf("demux: input_order %d out of range (have %d frames)", inputOrder, fs.frameCount)
	}

	offset := int64(inputOrder) * int64(fs.frameSize)
	if _, err := fs.f.Seek(offset, io.SeekStart); err != nil {
		return Frame{}, errors.Wrap(err, "demux: seeking to frame")
	}
	fs.r.Reset(fs.f)

	y := make([]byte, fs.ySize)
	if _, err := io.ReadFull(fs.r, y); err != nil {
		return Frame{}, errors.Wrap(err, "demux: reading luma plane")
	}

	chroma := make([][]byte, len(fs.chromaSize))
	for i, sz := range fs.chromaSize {
		chroma[i] = make([]byte, sz)
		if _, err := io.ReadFull(fs.r, chroma[i]); err != nil {
			return Frame{}, errors.Wrapf(err, "demux: reading chroma plane %d", i)
		}
	}

	return Frame{Y: y, Chroma: chroma, Stride: fs.strides}, nil
}

// Close releases the underlying file handle.
func (fs *FileSource) Close() error { return fs.f.Close() }
