package audio

import "errors"

// Decode and resample failure categories. Callers match with errors.Is to
// render actionable messages.
var (
	// ErrUnsupportedFormat is returned when the container or codec is not
	// recognized as one of the accepted audio families.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoAudioTrack is returned when a recognized container holds no
	// decodable audio stream.
	ErrNoAudioTrack = errors.New("no audio track found")

	// ErrDecode is returned when decoding fails mid-stream, e.g. on corrupt
	// data. A partial waveform is never returned silently.
	ErrDecode = errors.New("audio decode failed")

	// ErrInvalidAudio is returned for buffers violating format preconditions
	// (non-positive sample rate, zero channels, broken interleaving).
	ErrInvalidAudio = errors.New("invalid audio buffer")
)
