// Command vkenc drives C7's Pipeline end to end: it loads an encconfig
// document, opens a planar-YUV file source, runs the encode loop against
// a driver.Driver, and writes the coded bitstream to an output file.
// Hardware driver internals, YUV demuxer internals, and bitstream file
// writers beyond the CORE's own contracts are out of scope (spec §1); this
// binary exists only to exercise the CORE end to end with driver.Simulated
// standing in for real hardware.
package main

import (
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
)

func main() {
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Error().Str("stack", string(buf)).Any("error", err).Msg("panic recover")
		}
	}()
	os.Exit(Execute())
}
