package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	vk "github.com/goki/vulkan"

	"github.com/NOT-REAL-GAMES/vkvideoenc/bitstreampool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/demux"
	"github.com/NOT-REAL-GAMES/vkvideoenc/driver"
	"github.com/NOT-REAL-GAMES/vkvideoenc/encconfig"
	"github.com/NOT-REAL-GAMES/vkvideoenc/enclog"
	"github.com/NOT-REAL-GAMES/vkvideoenc/frameinfo"
	"github.com/NOT-REAL-GAMES/vkvideoenc/imagepool"
	"github.com/NOT-REAL-GAMES/vkvideoenc/muxout"
	"github.com/NOT-REAL-GAMES/vkvideoenc/pipeline"
)

var encodeArgs struct {
	configPath string
	inputPath  string
	outputPath string
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a raw planar-YUV file against an encconfig document.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVarP(&encodeArgs.configPath, "config", "c", "", "path to the encconfig JSON document")
	encodeCmd.MarkFlagRequired("config")
	encodeCmd.Flags().StringVarP(&encodeArgs.inputPath, "input", "i", "", "path to the raw planar-YUV input file")
	encodeCmd.MarkFlagRequired("input")
	encodeCmd.Flags().StringVarP(&encodeArgs.outputPath, "output", "o", "", "path to write the coded bitstream")
	encodeCmd.MarkFlagRequired("output")
}

func runEncode(ctx context.Context) error {
	cfg, err := encconfig.Load(encodeArgs.configPath)
	if err != nil {
		return err
	}

	source, err := demux.NewFileSource(encodeArgs.inputPath, cfg.InputWidth, cfg.InputHeight, cfg.Chroma)
	if err != nil {
		return fmt.Errorf("vkenc: opening input: %w", err)
	}

	images, bitstreams, frames := newPools(cfg)

	var out pipeline.Output
	var finalize func() []byte
	switch cfg.Codec {
	case driver.CodecAV1:
		ivf := muxout.NewIVFWriter(cfg.EncodeWidth, cfg.EncodeHeight, 1, 30)
		out = pipeline.IVFOutput{W: ivf}
		finalize = ivf.Finalize
	default:
		annexB := muxout.NewAnnexBWriter(int(bitstreampool.Size(cfg.EncodeWidth, cfg.EncodeHeight, 0)))
		out = pipeline.AnnexBOutput{W: annexB}
		finalize = annexB.Bytes
	}

	drv := driver.NewSimulated()
	log := enclog.New("pipeline", enclog.Options{JSON: logJSON, Level: logLevel})

	p := pipeline.New(pipeline.Config{
		Codec:               cfg.Codec,
		Gop:                 cfg.Gop,
		MaxDpbSlots:         16,
		MaxActiveRefL0:      2,
		MaxActiveRefL1:      1,
		InputExtent:         driver.Extent2D{Width: cfg.EncodeWidth, Height: cfg.EncodeHeight},
		QualityLevel:        cfg.QualityLevel,
		FenceTimeoutRetries: 3,
	}, drv, source, images, bitstreams, frames, vk.Queue(0), out, log)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("vkenc: encode run: %w", err)
	}

	if err := os.WriteFile(encodeArgs.outputPath, finalize(), 0o644); err != nil {
		return fmt.Errorf("vkenc: writing output: %w", err)
	}
	log.Info().Str("output", encodeArgs.outputPath).Msg("encode complete")
	return nil
}

// newPools allocates the placeholder GPU-object handles for C2-C4's pools.
// Real allocation (VkImage/VkBuffer creation, memory binding) is hardware
// driver internals out of the CORE's scope (spec §1); vkenc stands these
// up as opaque handles so driver.Simulated has something to key its
// deterministic query results on.
func newPools(cfg encconfig.Config) (*imagepool.Pool, *bitstreampool.Pool, *frameinfo.Pool) {
	numImages := int(cfg.NumInputImages) + 2*int(cfg.Gop.ConsecutiveBFrameCount) + 2
	vkImages := make([]vk.Image, numImages)
	vkViews := make([]vk.ImageView, numImages)
	for i := range vkImages {
		vkImages[i] = vk.Image(uintptr(i + 1))
		vkViews[i] = vk.ImageView(uintptr(i + 1))
	}
	images, err := imagepool.New(vkImages, vkViews)
	if err != nil {
		log.Fatal().Err(err).Msg("vkenc: creating image pool")
	}

	numBuffers := int(cfg.NumBitstreamBuffersToPreallocate)
	if numBuffers == 0 {
		numBuffers = numImages
	}
	size := bitstreampool.Size(cfg.EncodeWidth, cfg.EncodeHeight, 0)
	buffers := make([]vk.Buffer, numBuffers)
	memories := make([]vk.DeviceMemory, numBuffers)
	sizes := make([]uint64, numBuffers)
	slots := make([]uint32, numBuffers)
	fences := make([]vk.Fence, numBuffers)
	mapped := make([][]byte, numBuffers)
	for i := range buffers {
		buffers[i] = vk.Buffer(uintptr(i + 1))
		memories[i] = vk.DeviceMemory(uintptr(i + 1))
		sizes[i] = size
		slots[i] = uint32(i)
		fences[i] = vk.Fence(uintptr(i + 1))
		mapped[i] = make([]byte, size)
	}
	bitstreams, err := bitstreampool.New(buffers, memories, sizes, slots, fences, mapped)
	if err != nil {
		log.Fatal().Err(err).Msg("vkenc: creating bitstream pool")
	}

	frames := frameinfo.NewPool(numImages)
	return images, bitstreams, frames
}
