//go:build !nowhisper

package engine

import (
	"fmt"
	"io"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"speech-transcriber/internal/domain"
)

// newWhisperLoader builds the production loader over the whisper.cpp Go
// bindings. GPU offload is decided by the linked whisper.cpp build; the
// loader treats a missing accelerated runtime as an init failure so the
// engine's CPU retry path handles it.
func newWhisperLoader(probe acceleratorProbe) loaderFunc {
	return func(modelPath string, device domain.Device) (backend, error) {
		if device == domain.DeviceAccelerated && !probe.Available() {
			return nil, fmt.Errorf("accelerated runtime not detected")
		}

		model, err := whisper.New(modelPath)
		if err != nil {
			return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
		}
		return &whisperBackend{model: model}, nil
	}
}

// whisperBackend wraps a loaded whisper.cpp model.
type whisperBackend struct {
	model whisper.Model
}

// Transcribe runs whisper over mono 16 kHz samples and joins the segments.
func (b *whisperBackend) Transcribe(samples []float32) (string, error) {
	ctx, err := b.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	return strings.Join(segments, " "), nil
}

// Close releases the whisper model resources.
func (b *whisperBackend) Close() error {
	if b.model != nil {
		return b.model.Close()
	}
	return nil
}
