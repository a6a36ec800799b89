// Package engine wraps the speech model library behind a device-aware
// façade: model loading tries the accelerated backend first and falls back
// to the CPU backend, and transcription calls are serialized.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"speech-transcriber/internal/audio"
	"speech-transcriber/internal/domain"
)

// Failure categories surfaced to the orchestrator.
var (
	// ErrModelLoad is returned only when both device attempts fail.
	ErrModelLoad = errors.New("model load failed")

	// ErrPreconditionViolated marks a programming-contract breach: the
	// orchestrator must hand the engine mono 16 kHz audio.
	ErrPreconditionViolated = errors.New("transcription precondition violated")

	// ErrEmptyAudio distinguishes zero-length input from internal faults.
	ErrEmptyAudio = errors.New("transcription input is empty")

	// ErrTranscription covers internal library faults during inference.
	ErrTranscription = errors.New("transcription failed")

	// ErrNoModel is returned when Transcribe is called before LoadModel.
	ErrNoModel = errors.New("no model loaded")
)

// backend is one loaded instance of the model library on a specific device.
type backend interface {
	// Transcribe converts mono 16 kHz float32 samples to text.
	Transcribe(samples []float32) (string, error)
	// Close releases the model resources.
	Close() error
}

// loaderFunc initializes the model library for one device mode. A failed
// accelerated attempt is recoverable; the engine retries on the CPU.
type loaderFunc func(modelPath string, device domain.Device) (backend, error)

// ModelHandle records a loaded model and the device actually in effect.
type ModelHandle struct {
	Path   string
	Device domain.Device
}

// Engine owns at most one model handle for its lifetime and serializes
// transcription calls on it.
type Engine struct {
	loader loaderFunc

	mu      sync.Mutex
	backend backend
	handle  *ModelHandle
}

// New constructs an engine backed by the whisper.cpp bindings, probing the
// accelerated runtime through the environment.
func New() *Engine {
	return &Engine{loader: newWhisperLoader(defaultAcceleratorProbe())}
}

// NewWithLoader constructs an engine with an injectable backend loader.
func NewWithLoader(loader loaderFunc) *Engine {
	return &Engine{loader: loader}
}

// LoadModel initializes the model at path, attempting the accelerated device
// first and recovering internally on the CPU. forceCPU skips the accelerated
// attempt. Only failure of every attempted device is surfaced, wrapping each
// cause. A previously loaded handle is released on success.
func (e *Engine) LoadModel(modelPath string, forceCPU bool) (*ModelHandle, error) {
	devices := []domain.Device{domain.DeviceAccelerated, domain.DeviceCPU}
	if forceCPU {
		devices = []domain.Device{domain.DeviceCPU}
	}

	var attempts []string
	for _, device := range devices {
		b, err := e.loader(modelPath, device)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", device, err))
			continue
		}
		e.install(modelPath, device, b)
		return e.Handle(), nil
	}

	return nil, fmt.Errorf("%w: %s: %s", ErrModelLoad, modelPath, strings.Join(attempts, "; "))
}

// install swaps in a freshly loaded backend, closing any prior one.
func (e *Engine) install(modelPath string, device domain.Device, b backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		_ = e.backend.Close()
	}
	e.backend = b
	e.handle = &ModelHandle{Path: modelPath, Device: device}
}

// Handle returns the current model handle, or nil when no model is loaded.
func (e *Engine) Handle() *ModelHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil {
		return nil
	}
	h := *e.handle
	return &h
}

// Transcribe runs inference over a normalized buffer and returns plain text.
// The buffer must be mono at audio.TargetRate; a violation is a programmer
// error, not a recoverable runtime condition. The underlying library does
// not support mid-inference interruption, so ctx is only checked before the
// call starts; cancellation mid-run takes effect at the caller's next
// checkpoint.
func (e *Engine) Transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	if buf.SampleRate != audio.TargetRate || buf.Channels != 1 {
		return "", fmt.Errorf("%w: got %d Hz / %d channels, need %d Hz mono",
			ErrPreconditionViolated, buf.SampleRate, buf.Channels, audio.TargetRate)
	}
	if buf.Empty() {
		return "", ErrEmptyAudio
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return "", ErrNoModel
	}

	text, err := e.backend.Transcribe(buf.Samples)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the loaded model, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	e.handle = nil
	return err
}
