package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

// wavFormatIEEEFloat is the RIFF fmt tag for IEEE-float sample data.
const wavFormatIEEEFloat = 3

// decodeWAV reads a RIFF/WAVE file into an interleaved float32 buffer.
// Integer PCM is normalized to [-1, 1] by bit depth, 8-bit PCM is unsigned
// with silence at 0x80, and IEEE-float samples pass through unscaled.
func decodeWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("%w: malformed wav header", ErrDecode)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: read wav data: %v", ErrDecode, err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 || pcm.Format.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: wav file has no playable stream", ErrNoAudioTrack)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}

	samples := make([]float32, len(pcm.Data))
	switch {
	case dec.WavAudioFormat == wavFormatIEEEFloat:
		// The PCM buffer holds the raw 32-bit words of float samples;
		// reinterpret instead of scaling.
		if bitDepth != 32 {
			return Buffer{}, fmt.Errorf("%w: unsupported %d-bit float wav", ErrDecode, bitDepth)
		}
		for i, v := range pcm.Data {
			samples[i] = math.Float32frombits(uint32(int32(v)))
		}
	case bitDepth == 8:
		// 8-bit wav PCM is unsigned, centered on 0x80.
		for i, v := range pcm.Data {
			samples[i] = (float32(v) - 128) / 128
		}
	default:
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range pcm.Data {
			samples[i] = float32(v) / scale
		}
	}

	return NewBuffer(samples, pcm.Format.SampleRate, pcm.Format.NumChannels)
}
