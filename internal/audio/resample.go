package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Downmix reduces a buffer to one channel by taking the arithmetic mean of
// the input channels at each frame, with equal weighting.
func Downmix(buf Buffer) (Buffer, error) {
	if err := buf.Validate(); err != nil {
		return Buffer{}, err
	}
	if buf.Channels == 1 {
		out := make([]float32, len(buf.Samples))
		copy(out, buf.Samples)
		return Buffer{Samples: out, SampleRate: buf.SampleRate, Channels: 1}, nil
	}

	frames := buf.Frames()
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < buf.Channels; ch++ {
			sum += float64(buf.Samples[i*buf.Channels+ch])
		}
		out[i] = float32(sum / float64(buf.Channels))
	}

	return Buffer{Samples: out, SampleRate: buf.SampleRate, Channels: 1}, nil
}

// Resample converts a buffer of any rate and channel count to mono at
// TargetRate. Total duration is preserved to within one frame of
// round(frames_in * TargetRate / rate_in). Zero-length input produces a
// zero-length mono buffer at TargetRate, never an error.
func Resample(buf Buffer) (Buffer, error) {
	mono, err := Downmix(buf)
	if err != nil {
		return Buffer{}, err
	}

	if mono.Empty() {
		return Buffer{Samples: []float32{}, SampleRate: TargetRate, Channels: 1}, nil
	}
	if mono.SampleRate == TargetRate {
		return mono, nil
	}

	expected := expectedFrames(mono.Frames(), mono.SampleRate, TargetRate)
	converted, err := convertRate(mono.Samples, mono.SampleRate, TargetRate)
	if err != nil {
		return Buffer{}, err
	}

	return Buffer{
		Samples:    fitLength(converted, expected),
		SampleRate: TargetRate,
		Channels:   1,
	}, nil
}

// expectedFrames is the duration-preserving output frame count.
func expectedFrames(frames, fromRate, toRate int) int {
	return int(math.Round(float64(frames) * float64(toRate) / float64(fromRate)))
}

// convertRate runs the windowed-sinc resampler over the whole mono signal.
func convertRate(samples []float32, fromRate, toRate int) ([]float32, error) {
	cfg := &resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	rs, err := resampling.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create resampler %d->%d Hz: %v", ErrInvalidAudio, fromRate, toRate, err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d Hz: %w", fromRate, toRate, err)
	}

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, nil
}

// fitLength trims or extends the converted signal to the expected frame
// count. Filter latency may leave the converter a few frames short; the tail
// is held at the final sample value to avoid introducing an audible click.
func fitLength(samples []float32, expected int) []float32 {
	if expected < 0 {
		expected = 0
	}
	if len(samples) >= expected {
		return samples[:expected]
	}

	out := make([]float32, expected)
	copy(out, samples)
	var tail float32
	if len(samples) > 0 {
		tail = samples[len(samples)-1]
	}
	for i := len(samples); i < expected; i++ {
		out[i] = tail
	}
	return out
}
