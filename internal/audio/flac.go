package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// decodeFLAC decodes a native FLAC stream frame by frame.
func decodeFLAC(r io.Reader) (Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: parse flac stream: %v", ErrDecode, err)
	}
	defer stream.Close()

	info := stream.Info
	if info == nil || info.NChannels < 1 || info.SampleRate == 0 {
		return Buffer{}, fmt.Errorf("%w: flac stream carries no audio", ErrNoAudioTrack)
	}

	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	var samples []float32
	if info.NSamples > 0 {
		samples = make([]float32, 0, int(info.NSamples)*channels)
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Buffer{}, fmt.Errorf("%w: parse flac frame: %v", ErrDecode, err)
		}
		if len(frame.Subframes) != channels {
			return Buffer{}, fmt.Errorf("%w: flac frame channel mismatch", ErrDecode)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	return NewBuffer(samples, int(info.SampleRate), channels)
}
