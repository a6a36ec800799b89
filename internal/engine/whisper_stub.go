//go:build nowhisper

package engine

import (
	"fmt"

	"speech-transcriber/internal/domain"
)

// newWhisperLoader is the non-cgo stand-in used when whisper.cpp support is
// compiled out.
func newWhisperLoader(acceleratorProbe) loaderFunc {
	return func(modelPath string, device domain.Device) (backend, error) {
		return nil, fmt.Errorf("whisper support is disabled in this build")
	}
}
