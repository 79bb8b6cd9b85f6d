// Package enclog wires up per-component zerolog loggers (spec §7's
// "Error reporting is out-of-band (logging)"), following
// bugVanisher-streamer's cmd/root.go initLogger for the console/JSON
// writer selection and github.com/rs/zerolog/pkgerrors stack marshaling,
// and ausocean-av's lumberjack usage for optional file rotation.
//
// Unlike the teacher's global log.Logger, every component here takes an
// injected zerolog.Logger: the pipeline (C7) can run several concurrent
// Pipeline instances in tests and a shared global logger would interleave
// their output unpredictably.
package enclog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Options configures New.
type Options struct {
	// JSON selects structured JSON output; otherwise a colorized console
	// writer is used.
	JSON bool
	// Level is one of zerolog's level names (debug, info, warn, error,
	// fatal, panic); empty defaults to info.
	Level string
	// FilePath, if non-empty, tees output through a rotating lumberjack
	// file in addition to stderr.
	FilePath      string
	FileMaxSizeMB int
	FileMaxBackup int
	FileMaxAgeDay int
}

// New builds a component-scoped logger. Component identifies the
// subsystem (e.g. "pipeline", "dpb.h264", "assembler") as a zerolog field
// so multiple components' output can be filtered without separate
// loggers-per-package plumbing.
func New(component string, opts Options) zerolog.Logger {
	var writer io.Writer
	if opts.JSON {
		writer = os.Stderr
	} else {
		noColor := false
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: noColor}
	}

	if opts.FilePath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    firstNonZero(opts.FileMaxSizeMB, 100),
			MaxBackups: firstNonZero(opts.FileMaxBackup, 5),
			MaxAge:     firstNonZero(opts.FileMaxAgeDay, 28),
		}
		writer = io.MultiWriter(writer, fileWriter)
	}

	level := parseLevel(opts.Level)
	return zerolog.New(writer).With().Timestamp().Str("component", component).Logger().Level(level)
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func firstNonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
