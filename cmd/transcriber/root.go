// Package transcriber implements the command line interface.
package transcriber

import (
	stdlog "log"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "speech-transcriber",
	Short: "Offline speech transcription with whisper.cpp",
	Long: `speech-transcriber - offline speech-to-text over local audio files.

Decodes WAV, MP3, FLAC, OGG/Vorbis natively and Opus, M4A/AAC, WMA and WebM
through ffmpeg, normalizes audio to mono 16 kHz, and transcribes it with a
local whisper.cpp model. Inference prefers the accelerated device and falls
back to the CPU automatically.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRun:  initLog,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initLog(cmd *cobra.Command, args []string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	stdlog.SetOutput(os.Stderr)
}
