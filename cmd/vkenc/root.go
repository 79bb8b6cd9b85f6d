package main

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vkenc",
	Short: "Vulkan Video KHR hardware encoder core.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel, logJSON)
	},
	Version:          "v1.0.0",
	TraverseChildren: true,
	SilenceUsage:     true,
}

var (
	logLevel string
	logJSON  bool
)

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main.
func Execute() int {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "set log level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "set log to json format (default colorized console)")

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func initLogger(level string, asJSON bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writer io.Writer
	if asJSON {
		writer = os.Stderr
	} else {
		noColor := runtime.GOOS == "windows"
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: noColor}
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
