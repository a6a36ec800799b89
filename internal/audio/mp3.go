package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decodes an MPEG audio stream. The decoder always produces
// 16-bit little-endian stereo at the source sample rate.
func decodeMP3(r io.Reader) (Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: open mp3 stream: %v", ErrDecode, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		// A truncated or corrupt frame mid-stream must fail the whole
		// decode rather than hand back a shortened waveform.
		return Buffer{}, fmt.Errorf("%w: read mp3 frames: %v", ErrDecode, err)
	}

	const channels = 2
	frameBytes := 2 * channels
	raw = raw[:len(raw)/frameBytes*frameBytes]

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768
	}

	return NewBuffer(samples, dec.SampleRate(), channels)
}
