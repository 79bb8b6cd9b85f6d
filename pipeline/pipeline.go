// Package pipeline implements C7: the staged multi-frame pipeline that
// drives every other component (spec §4.7). One producer goroutine walks
// the GOP sequence in input order and hands each picture through
// LoadFrame -> ProcessDpb -> RecordCmdBuffer; Submit and Assemble run on
// their own goroutines so that, per spec §5, "Assemble blocks on the
// per-FrameInfo completion fence; other stages for other FrameInfos are
// allowed to proceed." golang.org/x/sync/errgroup supervises the three
// goroutines and propagates the first fatal error for cancellation,
// mirroring the stage-supervision style the vala submodule (a sibling of
// the teacher, NOT-REAL-GAMES/vala) uses errgroup for.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	vk "github.com/goki/vulkan"

	"github.com/NOT-REAL-GAMES/vkvideoenc/assembler"
	"github.com/NOT-REAL-GAMES/vkvideoenc/bitio"
	"github.com/NOT-REAL-GAMES/vkvideoenc/bitstreampool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/demux"
	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/encerr"
	"github.com/NOT-REAL-GAMES/vkvideoenc/frameinfo"
	"github.com/NOT-REAL-GAMES/vkvideoenc/gop"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"

	"github.com/rs/zerolog"
)

// Output is the produced bitstream writer contract (spec §6.3): prelude
// bytes are written at most once per IDR/sequence change, and each coded
// unit is written with its presentation timestamp so an AV1 IVF writer can
// pack both into one temporal unit while an Annex-B writer simply ignores
// the timestamp.
type Output interface {
	WriteUnit(prelude, payload []byte, pts uint64)
}

// AnnexBOutput adapts muxout.AnnexBWriter to Output for H.264/H.265.
type AnnexBOutput struct{ W interface{ WritePrelude([]byte); WriteFrame([]byte) } }

// WriteUnit writes prelude once (if non-empty) then the VCL payload.
func (o AnnexBOutput) WriteUnit(prelude, payload []byte, _ uint64) {
	if len(prelude) > 0 {
		o.W.WritePrelude(prelude)
	}
	o.W.WriteFrame(payload)
}

// IVFOutput adapts muxout.IVFWriter to Output for AV1: the prelude (e.g. a
// sequence header OBU) is prefixed directly onto the temporal unit's
// payload since IVF has no separate header record (spec §6.3).
type IVFOutput struct{ W interface{ WriteFrame([]byte, uint64) } }

func (o IVFOutput) WriteUnit(prelude, payload []byte, pts uint64) {
	unit := make([]byte, 0, len(prelude)+len(payload))
	unit = append(unit, prelude...)
	unit = append(unit, payload...)
	o.W.WriteFrame(unit, pts)
}

// Config is the pipeline's run-time configuration, assembled from
// encconfig.Config by the caller (spec §6.4's C1/C6 parameters).
type Config struct {
	Codec driver.Codec

	Gop gop.Config

	MaxDpbSlots    uint32
	MaxActiveRefL0 int
	MaxActiveRefL1 int

	InputExtent driver.Extent2D
	QualityLevel uint32

	// FenceTimeoutRetries bounds Assemble's retry count before a picture is
	// marked corrupted (spec §4.7 "Failure semantics"). Its DPB admission is
	// not dropped: the entry stays in the DPB with its corrupted flag set.
	FenceTimeoutRetries int
}

// Pipeline wires every component (C1-C6) into the staged flow of C7.
type Pipeline struct {
	cfg Config
	log zerolog.Logger

	drv    driver.Driver
	source demux.Source

	images     *imagepool.Pool
	bitstreams *bitstreampool.Pool
	frames     *frameinfo.Pool
	asm        *assembler.Assembler
	sess       session

	queue vk.Queue
	out   Output

	session      driver.VideoSessionKHR
	params       driver.VideoSessionParametersKHR
	spsID, ppsID uint32
}

// New builds a Pipeline for cfg.Codec, allocating the matching dpb.Manager
// variant.
func New(cfg Config, drv driver.Driver, source demux.Source, images *imagepool.Pool, bitstreams *bitstreampool.Pool, frames *frameinfo.Pool, queue vk.Queue, out Output, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		cfg: cfg, drv: drv, source: source,
		images: images, bitstreams: bitstreams, frames: frames,
		asm: assembler.New(images, drv), queue: queue, out: out, log: log,
	}
	switch cfg.Codec {
	case driver.CodecH265:
		p.sess = newH265Session(images)
	case driver.CodecAV1:
		p.sess = newAV1Session(images, cfg.MaxActiveRefL0, cfg.MaxActiveRefL1)
	default:
		p.sess = newH264Session(images, cfg.MaxActiveRefL0)
	}
	return p
}

// unit is one picture in flight: the FrameInfo plus bookkeeping the
// pipeline needs across its stages but that doesn't belong on the shared
// FrameInfo type.
type unit struct {
	fi         *frameinfo.FrameInfo
	pos        gop.Position
	dpbIndex   int
	dependants []*unit // B-pictures deferred behind this unit as their anchor (spec §9 dependants-DAG)
}

// Run drains source from input order 0 until FrameCount (or ctx
// cancellation), producing output bytes through out. It implements the
// stage pipeline, B-run deferral, and failure semantics of spec §4.7.
func (p *Pipeline) Run(ctx context.Context) error {
	profile := driver.Profile{Codec: p.cfg.Codec}
	sess, caps, err := p.drv.CreateVideoSession(ctx, profile, p.cfg.InputExtent, 0, p.cfg.MaxDpbSlots, uint32(p.cfg.MaxActiveRefL0+p.cfg.MaxActiveRefL1))
	if err != nil {
		return encerr.Wrap(encerr.KindInvalidConfig, err, "pipeline: creating video session")
	}
	p.session = sess
	defer p.drv.DestroySession(sess)

	params, err := p.drv.CreateSessionParameters(ctx, sess, nil, p.cfg.QualityLevel)
	if err != nil {
		return encerr.Wrap(encerr.KindInvalidConfig, err, "pipeline: creating session parameters")
	}
	p.params = params
	defer p.drv.DestroySessionParameters(params)

	p.sess.sequenceStart(caps.MaxDpbSlots, p.cfg.Gop.ConsecutiveBFrameCount, p.cfg.QualityLevel)

	g, ctx := errgroup.WithContext(ctx)
	units := make(chan *unit, p.frames.Size())
	assembled := make(chan *unit, p.frames.Size())

	g.Go(func() error { return p.produce(ctx, units) })
	g.Go(func() error { return p.submitLoop(ctx, units, assembled) })
	g.Go(func() error { return p.assembleLoop(ctx, assembled) })

	return g.Wait()
}

// produce runs LoadFrame and ProcessDpb in strict input order, deferring
// B-pictures onto their forward anchor's dependants list until the anchor
// itself has been handed to submitLoop (spec §4.7 "Deferred reordering").
func (p *Pipeline) produce(ctx context.Context, out chan<- *unit) error {
	defer close(out)

	var st gop.State
	seq, err := gop.NewSequencer(p.cfg.Gop)
	if err != nil {
		return encerr.Wrap(encerr.KindInvalidConfig, err, "pipeline: gop sequencer")
	}

	total := p.source.FrameCount()
	var pending []*unit // B-pictures waiting on the next reference picture

	for i := uint32(0); total == 0 || i < total; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		framesLeft := uint32(0)
		if total > 0 {
			framesLeft = total - i
		}
		pos := seq.Next(&st, i == 0, framesLeft)
		if pos.PictureType == gop.FrameTypeInvalid {
			break
		}

		frame, err := p.source.LoadFrame(pos.InputOrder)
		if err != nil {
			if total == 0 {
				return nil // live/unknown-length source drained
			}
			return encerr.Wrap(encerr.KindInvalidConfig, err, "pipeline: loading frame")
		}

		fi, err := p.frames.Acquire(ctx)
		if err != nil {
			return err
		}
		fi.State = frameinfo.StateLoaded

		img, err := p.images.Acquire(ctx, imagepool.LayoutVideoEncodeSrc)
		if err != nil {
			p.frames.Release(fi)
			return err
		}
		fi.InputImage = img
		_ = frame // payload upload to img is below the CORE's abstraction (spec §1)

		u := &unit{fi: fi, pos: pos}

		if pos.PictureType == gop.FrameTypeB {
			pending = append(pending, u)
			continue
		}

		deferred := p.cfg.Codec == driver.CodecAV1 && len(pending) > 0
		if err := p.processDpb(ctx, u, deferred); err != nil {
			return err
		}
		u.dependants = pending
		for _, dep := range pending {
			if err := p.processDpb(ctx, dep, false); err != nil {
				return err
			}
		}
		pending = nil

		var show *unit
		if deferred {
			show, err = p.synthesizeShowExistingFrame(ctx, u)
			if err != nil {
				return err
			}
		}

		select {
		case out <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
		for _, dep := range u.dependants {
			select {
			case out <- dep:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if show != nil {
			select {
			case out <- show:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// synthesizeShowExistingFrame builds the AV1 dependant that redisplays
// anchor at its true display position once its B-run has been flushed
// (spec §4.7 "AV1 additionally synthesizes a show_existing_frame
// FrameInfo"). It carries no input image or bitstream buffer: RecordCmdBuffer
// and Submit are skipped for it entirely.
func (p *Pipeline) synthesizeShowExistingFrame(ctx context.Context, anchor *unit) (*unit, error) {
	mapIdx, dpbIndex, ok := p.sess.showExistingFrame()
	if !ok {
		return nil, nil
	}

	fi, err := p.frames.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	fi.ShowExistingFrame = true
	fi.ShowExistingIndex = mapIdx
	fi.State = frameinfo.StateLoaded

	return &unit{fi: fi, pos: anchor.pos, dpbIndex: dpbIndex}, nil
}

// processDpb runs C5's picture_start + build_ref_lists for u, acquires its
// bitstream buffer (C4) and runs C6's Assemble — the RecordCmdBuffer stage
// of spec §4.7, which is where the assembler's "query-pool slot id and
// fence, taken from C4" are obtained.
func (p *Pipeline) processDpb(ctx context.Context, u *unit, deferred bool) error {
	entry, err := p.bitstreams.Acquire(ctx)
	if err != nil {
		return err
	}
	u.fi.Bitstream = entry

	dpbIndex, refs, setup, stdInfo := p.sess.processPicture(u.pos, deferred)
	u.dpbIndex = dpbIndex

	in := assembler.Input{
		Pos:            u.pos,
		InputExtent:    p.cfg.InputExtent,
		SetupSlot:      setup,
		ReferenceSlots: refs,
		StdPictureInfo: stdInfo,
		Session:        p.session,
		SessionParams:  p.params,
		NeedsPrelude:   u.pos.PictureType == gop.FrameTypeIDR,
		SpsID:          p.spsID,
		PpsID:          p.ppsID,
	}
	if err := p.asm.Assemble(ctx, u.fi, in); err != nil {
		u.fi.Corrupted = true
	}
	u.fi.State = frameinfo.StateEnqueued
	return nil
}

// submitLoop issues the driver submission for each unit in the order
// produce emits them (encode order), enforcing that a B-picture cannot
// advance past SUBMITTED until its anchor has (spec §4.7's state-machine
// constraint is satisfied for free here since produce never emits a
// dependant before its anchor).
//
// recordCmdBuffer issues the four command-buffer calls of spec §6.1 item 3
// for one unit's encode submission.
func (p *Pipeline) recordCmdBuffer(u *unit) error {
	if err := p.drv.BeginVideoCoding(u.fi.CommandBuffer, p.session, p.params, u.fi.EncodeInfo.ReferenceSlots); err != nil {
		return err
	}
	if u.fi.RateControl != nil {
		if err := p.drv.ControlVideoCoding(u.fi.CommandBuffer, driver.ControlRateControl, u.fi.RateControl); err != nil {
			return err
		}
	}
	if err := p.drv.EncodeVideo(u.fi.CommandBuffer, u.fi.EncodeInfo); err != nil {
		return err
	}
	return p.drv.EndVideoCoding(u.fi.CommandBuffer)
}

func (p *Pipeline) submitLoop(ctx context.Context, in <-chan *unit, out chan<- *unit) error {
	defer close(out)
	for u := range in {
		if u.fi.ShowExistingFrame {
			// A synthesized show_existing_frame unit was never recorded or
			// submitted to hardware: it carries only a header payload.
			u.fi.State = frameinfo.StateSubmitted
			select {
			case out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := p.recordCmdBuffer(u); err != nil {
			return encerr.Wrap(encerr.KindSubmissionFailure, err, "pipeline: recording encode command buffer")
		}

		submitErr := p.drv.Submit(ctx, p.queue, driver.SubmitInfo{CommandBuffer: u.fi.CommandBuffer, Fence: u.fi.Fence})
		if submitErr != nil {
			u.fi.Corrupted = true
			p.log.Warn().Err(submitErr).Uint32("input_order", u.pos.InputOrder).Msg("pipeline: submission failed, dropping sequence")
		}
		u.fi.State = frameinfo.StateSubmitted

		select {
		case out <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// assembleLoop waits on each unit's completion query, commits it to the DPB
// and writes its bitstream bytes to Output, retrying fence timeouts up to
// FenceTimeoutRetries (spec §4.7 "Failure semantics").
func (p *Pipeline) assembleLoop(ctx context.Context, in <-chan *unit) error {
	for u := range in {
		if u.fi.ShowExistingFrame {
			// Shares its anchor's DPB slot; the anchor's own Assemble pass
			// already committed that slot, so there is nothing to re-commit.
			p.writeUnit(u)
			u.fi.State = frameinfo.StateAssembled
			p.releaseUnit(u)
			continue
		}

		corrupted := u.fi.Corrupted
		if !corrupted {
			corrupted = p.waitAndQuery(ctx, u)
		}

		p.sess.commitPicture(u.dpbIndex, u.fi.InputImage, corrupted)

		if !corrupted {
			p.writeUnit(u)
		}

		u.fi.State = frameinfo.StateAssembled
		p.releaseUnit(u)
	}
	return nil
}

func (p *Pipeline) waitAndQuery(ctx context.Context, u *unit) (corrupted bool) {
	for attempt := 0; attempt <= p.cfg.FenceTimeoutRetries; attempt++ {
		result, err := p.drv.QueryResults(ctx, u.fi.QueryPoolSlot)
		if err != nil {
			continue
		}
		switch result.Status {
		case driver.QueryComplete:
			u.fi.EncodeInfo.DstBufferOffset = result.BitstreamStartOffset
			u.fi.EncodeInfo.DstBufferRange = result.BitstreamSize
			return false
		case driver.QueryNotReady:
			continue // retry: fence hasn't signaled yet
		default:
			p.log.Warn().Uint32("query_pool_slot", u.fi.QueryPoolSlot).Msg("pipeline: query status != COMPLETE, marking reference corrupted")
			return true
		}
	}
	p.log.Warn().Uint32("query_pool_slot", u.fi.QueryPoolSlot).Msg("pipeline: fence timeout exceeded retry budget")
	return true
}

func (p *Pipeline) writeUnit(u *unit) {
	if u.fi.ShowExistingFrame {
		payload := bitio.WriteShowExistingFrameOBU(bitio.ShowExistingFrameParams{
			FrameToShowMapIdx: int(u.fi.ShowExistingIndex),
		})
		p.out.WriteUnit(nil, payload, uint64(u.pos.InputOrder))
		return
	}

	start := u.fi.EncodeInfo.DstBufferOffset
	size := u.fi.EncodeInfo.DstBufferRange
	var payload []byte
	if mapped := u.fi.Bitstream.Mapped; uint64(len(mapped)) >= start+size {
		payload = mapped[start : start+size]
	}

	p.out.WriteUnit(u.fi.Prelude, payload, uint64(u.pos.InputOrder))
}

func (p *Pipeline) releaseUnit(u *unit) {
	if u.fi.ShowExistingFrame {
		// Never acquired a bitstream buffer or input image of its own.
		p.frames.Release(u.fi)
		return
	}
	p.bitstreams.Release(u.fi.QueryPoolSlot)
	if !u.pos.IsRef() {
		p.images.Release(u.fi.InputImage)
	}
	p.frames.Release(u.fi)
}
