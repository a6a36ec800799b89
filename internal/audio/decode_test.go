package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV synthesizes a 16-bit PCM WAV file for decoder tests.
func writeWAV(t *testing.T, path string, sampleRate, channels int, data []int) {
	t.Helper()
	writeWAVVariant(t, path, sampleRate, channels, 16, 1, data)
}

// writeWAVVariant synthesizes a WAV file with an explicit bit depth and
// format tag (1 = integer PCM, 3 = IEEE float).
func writeWAVVariant(t *testing.T, path string, sampleRate, channels, bitDepth, audioFormat int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, audioFormat)
	buf := &gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
}

// silence produces interleaved zero samples for the given duration.
func silence(sampleRate, channels int, seconds float64) []int {
	return make([]int, int(float64(sampleRate)*seconds)*channels)
}

func TestDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	// 16384/32768 normalizes to exactly 0.5.
	writeWAV(t, path, 44100, 2, []int{16384, -16384, 0, 8192})

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if buf.SampleRate != 44100 || buf.Channels != 2 {
		t.Fatalf("format = %d Hz / %d ch, want 44100 Hz / 2 ch", buf.SampleRate, buf.Channels)
	}
	want := []float32{0.5, -0.5, 0, 0.25}
	if len(buf.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Samples), len(want))
	}
	for i, w := range want {
		if buf.Samples[i] != w {
			t.Fatalf("sample[%d] = %v, want %v", i, buf.Samples[i], w)
		}
	}
}

func TestDecodeWAVFloat32(t *testing.T) {
	want := []float32{0.5, -0.5, 0.25, -1, 0}
	data := make([]int, len(want))
	for i, v := range want {
		data[i] = int(int32(math.Float32bits(v)))
	}

	path := filepath.Join(t.TempDir(), "float.wav")
	writeWAVVariant(t, path, 16000, 1, 32, 3, data)

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(buf.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Samples), len(want))
	}
	for i, w := range want {
		if buf.Samples[i] != w {
			t.Fatalf("sample[%d] = %v, want %v unscaled", i, buf.Samples[i], w)
		}
	}
}

func TestDecodeWAVFloat32TonePeak(t *testing.T) {
	// A 0.5-amplitude tone must come back with its amplitude intact.
	const rate = 16000
	data := make([]int, rate/10)
	for i := range data {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/rate))
		data[i] = int(int32(math.Float32bits(v)))
	}

	path := filepath.Join(t.TempDir(), "tone-float.wav")
	writeWAVVariant(t, path, rate, 1, 32, 3, data)

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var peak float64
	for _, s := range buf.Samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak < 0.49 || peak > 0.51 {
		t.Fatalf("peak = %v, want about 0.5", peak)
	}
}

func TestDecodeWAV8BitPCM(t *testing.T) {
	// 8-bit PCM is unsigned with silence at 0x80.
	path := filepath.Join(t.TempDir(), "8bit.wav")
	writeWAVVariant(t, path, 8000, 1, 8, 1, []int{128, 192, 64, 255, 0})

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []float32{0, 0.5, -0.5, 127.0 / 128, -1}
	if len(buf.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Samples), len(want))
	}
	for i, w := range want {
		if buf.Samples[i] != w {
			t.Fatalf("sample[%d] = %v, want %v", i, buf.Samples[i], w)
		}
	}
}

func TestDecodeWAV8BitSilenceHasNoOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence-8bit.wav")
	data := make([]int, 800)
	for i := range data {
		data[i] = 128
	}
	writeWAVVariant(t, path, 8000, 1, 8, 1, data)

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i, s := range buf.Samples {
		if s != 0 {
			t.Fatalf("sample[%d] = %v, want exactly 0 for 0x80 silence", i, s)
		}
	}
}

func TestDecodeWAVMislabeledExtension(t *testing.T) {
	// Magic bytes win over a wrong extension.
	path := filepath.Join(t.TempDir(), "mislabeled.mp3")
	writeWAV(t, path, 16000, 1, silence(16000, 1, 0.1))

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.SampleRate != 16000 || buf.Channels != 1 {
		t.Fatalf("format = %d Hz / %d ch, want 16000 Hz mono", buf.SampleRate, buf.Channels)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := NewDecoder().Decode(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeCorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wav")
	// A valid RIFF/WAVE magic with garbage after it.
	data := append([]byte("RIFF\xff\xff\xff\xffWAVE"), []byte("garbage follows here")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := NewDecoder().Decode(context.Background(), path)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := NewDecoder().Decode(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	if err == nil {
		t.Fatal("Decode of missing file succeeded")
	}
}

func TestDecodeCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 16000, 1, silence(16000, 1, 0.1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder().Decode(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// fakeRunner simulates ffmpeg: on success it writes a WAV file to the last
// argument, on failure it returns the configured stderr.
type fakeRunner struct {
	t       *testing.T
	fail    bool
	stderr  string
	noWrite bool
	calls   [][]string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.fail {
		return commandResult{Stderr: r.stderr, ExitCode: 1}, errors.New("exit status 1")
	}
	if !r.noWrite {
		outPath := args[len(args)-1]
		writeWAV(r.t, outPath, 48000, 2, silence(48000, 2, 0.05))
	}
	return commandResult{}, nil
}

func newFFmpegDecoder(t *testing.T, runner commandRunner) *Decoder {
	t.Helper()
	return NewDecoderForTests("ffmpeg", runner,
		func(dir, pattern string) (string, error) { return t.TempDir(), nil },
		func(path string) error { return nil },
	)
}

func TestDecodeViaFFmpeg(t *testing.T) {
	runner := &fakeRunner{t: t}
	d := newFFmpegDecoder(t, runner)

	// An Opus file triggers the converter path.
	path := filepath.Join(t.TempDir(), "voice.opus")
	header := append([]byte("OggS\x00\x02"), append(make([]byte, 22), []byte("OpusHead")...)...)
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	buf, err := d.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.SampleRate != 48000 || buf.Channels != 2 {
		t.Fatalf("format = %d Hz / %d ch, want 48000 Hz / 2 ch", buf.SampleRate, buf.Channels)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(runner.calls))
	}
	call := runner.calls[0]
	if call[0] != "ffmpeg" {
		t.Fatalf("command = %s, want ffmpeg", call[0])
	}
	joined := strings.Join(call, " ")
	for _, want := range []string{"-vn", "-map 0:a:0", "-c:a pcm_s16le", path} {
		if !strings.Contains(joined, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, joined)
		}
	}
}

func TestDecodeViaFFmpegNoAudioTrack(t *testing.T) {
	runner := &fakeRunner{t: t, fail: true, stderr: "Output file does not contain any stream"}
	d := newFFmpegDecoder(t, runner)

	path := filepath.Join(t.TempDir(), "video-only.webm")
	if err := os.WriteFile(path, []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := d.Decode(context.Background(), path)
	if !errors.Is(err, ErrNoAudioTrack) {
		t.Fatalf("error = %v, want ErrNoAudioTrack", err)
	}
}

func TestDecodeViaFFmpegFailure(t *testing.T) {
	runner := &fakeRunner{t: t, fail: true, stderr: "header damaged\nInvalid data found when processing input"}
	d := newFFmpegDecoder(t, runner)

	path := filepath.Join(t.TempDir(), "broken.m4a")
	if err := os.WriteFile(path, []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := d.Decode(context.Background(), path)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error does not carry last stderr line: %v", err)
	}
}

func TestDecodeViaFFmpegNoOutput(t *testing.T) {
	runner := &fakeRunner{t: t, noWrite: true}
	d := newFFmpegDecoder(t, runner)

	path := filepath.Join(t.TempDir(), "empty.wma")
	asf := append([]byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}, make([]byte, 8)...)
	if err := os.WriteFile(path, asf, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := d.Decode(context.Background(), path)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
}

func TestLastStderrLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"one\ntwo\nthree", "three"},
		{"only", "only"},
		{"trailing\n\n  \n", "trailing"},
		{"", "no diagnostic output"},
	}
	for _, tc := range cases {
		if got := lastStderrLine(tc.in); got != tc.want {
			t.Errorf("lastStderrLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeEmptyWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	writeWAV(t, path, 16000, 1, []int{})

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode of zero-length stream failed: %v", err)
	}
	if !buf.Empty() {
		t.Fatalf("decoded %d samples from empty stream", len(buf.Samples))
	}
}

func TestDecodedDurationMatchesSource(t *testing.T) {
	const seconds = 2.0
	path := filepath.Join(t.TempDir(), "long.wav")
	writeWAV(t, path, 8000, 1, silence(8000, 1, seconds))

	buf, err := NewDecoder().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	wantFrames := int(math.Round(seconds * 8000))
	if buf.Frames() != wantFrames {
		t.Fatalf("Frames() = %d, want %d", buf.Frames(), wantFrames)
	}
}
