package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// noStreamMarkers are ffmpeg stderr fragments indicating the container was
// read fine but held nothing decodable as audio.
var noStreamMarkers = []string{
	"does not contain any stream",
	"Output file does not contain any stream",
	"Stream map 'a' matches no streams",
}

// decodeViaFFmpeg converts codec families without a pure-Go decoder (Opus,
// AAC/M4A, WMA, WebM) to a temporary PCM WAV at the stream's native rate and
// channel layout, then decodes that through the wav path.
func (d *Decoder) decodeViaFFmpeg(ctx context.Context, inputPath string) (Buffer, error) {
	tempDir, err := d.mkdirTemp("", "speech-transcriber-*")
	if err != nil {
		return Buffer{}, fmt.Errorf("create temporary workspace: %w", err)
	}
	defer func() { _ = d.removeAll(tempDir) }()

	outPath := filepath.Join(tempDir, "decoded.wav")
	args := buildFFmpegArgs(inputPath, outPath)

	result, runErr := d.runner.Run(ctx, d.ffmpegPath, args...)
	if runErr != nil {
		if ctx.Err() != nil {
			return Buffer{}, ctx.Err()
		}
		if hasNoStreamMarker(result.Stderr) {
			return Buffer{}, fmt.Errorf("%w: %s", ErrNoAudioTrack, inputPath)
		}
		return Buffer{}, fmt.Errorf("%w: ffmpeg exit %d: %s", ErrDecode, result.ExitCode, lastStderrLine(result.Stderr))
	}

	f, err := d.open(outPath)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: ffmpeg completed but produced no output", ErrDecode)
	}
	defer f.Close()

	return decodeWAV(f)
}

// hasNoStreamMarker reports whether stderr indicates a missing audio stream.
func hasNoStreamMarker(stderr string) bool {
	for _, marker := range noStreamMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// lastStderrLine extracts the final non-empty stderr line for error messages.
func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no diagnostic output"
}

// buildFFmpegArgs builds conversion CLI args for PCM WAV output. The native
// sample rate and channel count are kept so the resampler stage stays the
// single place format normalization happens.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
