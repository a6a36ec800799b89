// Package audio decodes compressed audio containers into PCM buffers and
// normalizes them to the mono 16 kHz format the inference engine requires.
package audio

import "fmt"

// TargetRate is the sample rate the inference engine accepts.
const TargetRate = 16000

// Buffer holds interleaved float32 PCM samples with known format.
// Stages never mutate a Buffer in place; each produces a new one.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// NewBuffer validates the interleaving invariant and constructs a Buffer.
func NewBuffer(samples []float32, sampleRate, channels int) (Buffer, error) {
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, sampleRate)
	}
	if channels < 1 {
		return Buffer{}, fmt.Errorf("%w: channel count %d", ErrInvalidAudio, channels)
	}
	if len(samples)%channels != 0 {
		return Buffer{}, fmt.Errorf("%w: %d samples not divisible by %d channels", ErrInvalidAudio, len(samples), channels)
	}

	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the number of sample frames in the buffer.
func (b Buffer) Frames() int {
	if b.Channels < 1 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Empty reports whether the buffer contains no frames.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// Validate checks the format and interleaving invariants on an existing buffer.
func (b Buffer) Validate() error {
	_, err := NewBuffer(b.Samples, b.SampleRate, b.Channels)
	return err
}
