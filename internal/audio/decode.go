package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Decoder probes a file's container format and produces one Buffer holding
// the full decoded waveform. It has no persistent state beyond injected
// OS dependencies.
type Decoder struct {
	ffmpegPath string
	runner     commandRunner
	open       func(name string) (*os.File, error)
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
}

// NewDecoder constructs the production decoder with OS dependencies.
func NewDecoder() *Decoder {
	return &Decoder{
		ffmpegPath: "ffmpeg",
		runner:     &execRunner{},
		open:       os.Open,
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
	}
}

// Decode reads the file at path and returns its full waveform as interleaved
// float32 PCM with the stream's native sample rate and channel count.
// Unrecognized containers fail with ErrUnsupportedFormat, recognized ones
// without an audio stream with ErrNoAudioTrack, and corrupt streams with
// ErrDecode. A zero-length audio stream decodes to a zero-length Buffer.
func (d *Decoder) Decode(ctx context.Context, path string) (Buffer, error) {
	f, err := d.open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Buffer{}, fmt.Errorf("read file header: %w", err)
	}
	header = header[:n]

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Buffer{}, fmt.Errorf("rewind audio file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Buffer{}, err
	}

	switch format := DetectFormat(header, path); format {
	case FormatWAV:
		return decodeWAV(f)
	case FormatMP3:
		return decodeMP3(f)
	case FormatFLAC:
		return decodeFLAC(f)
	case FormatOggVorbis:
		return decodeVorbis(f)
	case FormatOggOpus, FormatMP4, FormatASF, FormatWebM:
		return d.decodeViaFFmpeg(ctx, path)
	default:
		return Buffer{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// NewDecoderForTests constructs a decoder with injectable dependencies.
func NewDecoderForTests(
	ffmpegPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *Decoder {
	return &Decoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		open:       os.Open,
		mkdirTemp:  mkdirTemp,
		removeAll:  removeAll,
	}
}
