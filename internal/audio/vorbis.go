package audio

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// decodeVorbis decodes an Ogg/Vorbis stream into interleaved float32 samples.
func decodeVorbis(r io.Reader) (Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: read ogg/vorbis stream: %v", ErrDecode, err)
	}
	if format == nil || format.Channels < 1 || format.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: ogg container carries no vorbis audio", ErrNoAudioTrack)
	}

	return NewBuffer(samples, format.SampleRate, format.Channels)
}
