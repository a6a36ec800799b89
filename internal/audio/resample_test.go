package audio

import (
	"errors"
	"math"
	"testing"
)

func TestDownmixStereoMean(t *testing.T) {
	in := Buffer{
		// Interleaved L/R pairs chosen so the mean is exactly representable.
		Samples:    []float32{0.25, 0.75, -0.5, 0.5, 1, 1, -1, 0},
		SampleRate: 44100,
		Channels:   2,
	}

	out, err := Downmix(in)
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}
	if out.Channels != 1 || out.SampleRate != 44100 {
		t.Fatalf("format = %d Hz / %d ch, want 44100 Hz mono", out.SampleRate, out.Channels)
	}

	want := []float32{0.5, 0, 1, -0.5}
	if len(out.Samples) != len(want) {
		t.Fatalf("downmixed %d frames, want %d", len(out.Samples), len(want))
	}
	for i, w := range want {
		if out.Samples[i] != w {
			t.Fatalf("frame[%d] = %v, want exactly %v", i, out.Samples[i], w)
		}
	}
}

func TestDownmixMonoCopies(t *testing.T) {
	in := Buffer{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 16000, Channels: 1}
	out, err := Downmix(in)
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}

	out.Samples[0] = 9
	if in.Samples[0] == 9 {
		t.Fatal("Downmix aliased the input slice")
	}
}

func TestDownmixFivePointOne(t *testing.T) {
	// One frame of six channels averaging to 0.5.
	in := Buffer{
		Samples:    []float32{1, 1, 1, 0, 0, 0},
		SampleRate: 48000,
		Channels:   6,
	}
	out, err := Downmix(in)
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}
	if out.Samples[0] != 0.5 {
		t.Fatalf("frame[0] = %v, want 0.5", out.Samples[0])
	}
}

func TestDownmixInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		buf  Buffer
	}{
		{"zero rate", Buffer{Samples: make([]float32, 4), SampleRate: 0, Channels: 2}},
		{"zero channels", Buffer{Samples: make([]float32, 4), SampleRate: 44100, Channels: 0}},
		{"ragged", Buffer{Samples: make([]float32, 5), SampleRate: 44100, Channels: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Downmix(tc.buf); !errors.Is(err, ErrInvalidAudio) {
				t.Fatalf("error = %v, want ErrInvalidAudio", err)
			}
		})
	}
}

func TestResampleStereo44100ToMono16k(t *testing.T) {
	const seconds = 3
	frames := 44100 * seconds
	in := Buffer{
		Samples:    make([]float32, frames*2),
		SampleRate: 44100,
		Channels:   2,
	}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.SampleRate != TargetRate || out.Channels != 1 {
		t.Fatalf("format = %d Hz / %d ch, want %d Hz mono", out.SampleRate, out.Channels, TargetRate)
	}

	// Duration preserved to within one frame.
	want := int(math.Round(float64(frames) * TargetRate / 44100))
	if diff := out.Frames() - want; diff < -1 || diff > 1 {
		t.Fatalf("Frames() = %d, want %d +/- 1", out.Frames(), want)
	}
}

func TestResampleUpsamples8k(t *testing.T) {
	in := Buffer{Samples: make([]float32, 8000), SampleRate: 8000, Channels: 1}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	want := 16000
	if diff := out.Frames() - want; diff < -1 || diff > 1 {
		t.Fatalf("Frames() = %d, want %d +/- 1", out.Frames(), want)
	}
}

func TestResampleTargetRateMonoPassthrough(t *testing.T) {
	in := Buffer{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: TargetRate, Channels: 1}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", out.Frames())
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Fatalf("sample[%d] = %v, want %v untouched", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestResampleTargetRateStereoStillDownmixes(t *testing.T) {
	in := Buffer{Samples: []float32{0.25, 0.75}, SampleRate: TargetRate, Channels: 2}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.Channels != 1 || out.Frames() != 1 {
		t.Fatalf("got %d ch / %d frames, want mono single frame", out.Channels, out.Frames())
	}
	if out.Samples[0] != 0.5 {
		t.Fatalf("frame[0] = %v, want 0.5", out.Samples[0])
	}
}

func TestResampleEmptyInput(t *testing.T) {
	in := Buffer{Samples: []float32{}, SampleRate: 44100, Channels: 2}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("empty input returned error: %v", err)
	}
	if !out.Empty() || out.SampleRate != TargetRate || out.Channels != 1 {
		t.Fatalf("got %d samples at %d Hz / %d ch, want empty %d Hz mono",
			len(out.Samples), out.SampleRate, out.Channels, TargetRate)
	}
}

func TestResampleInvalidInput(t *testing.T) {
	in := Buffer{Samples: make([]float32, 10), SampleRate: -1, Channels: 1}
	if _, err := Resample(in); !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("error = %v, want ErrInvalidAudio", err)
	}
}

func TestExpectedFrames(t *testing.T) {
	cases := []struct {
		frames, from, to int
		want             int
	}{
		{44100, 44100, 16000, 16000},
		{132300, 44100, 16000, 48000},
		{8000, 8000, 16000, 16000},
		{1, 48000, 16000, 0},
		{2, 48000, 16000, 1},
	}
	for _, tc := range cases {
		if got := expectedFrames(tc.frames, tc.from, tc.to); got != tc.want {
			t.Errorf("expectedFrames(%d, %d, %d) = %d, want %d", tc.frames, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestFitLength(t *testing.T) {
	t.Run("trims excess", func(t *testing.T) {
		got := fitLength([]float32{1, 2, 3, 4}, 2)
		if len(got) != 2 || got[1] != 2 {
			t.Fatalf("fitLength = %v, want [1 2]", got)
		}
	})

	t.Run("pads holding final sample", func(t *testing.T) {
		got := fitLength([]float32{1, 2}, 4)
		want := []float32{1, 2, 2, 2}
		if len(got) != len(want) {
			t.Fatalf("fitLength returned %d samples, want %d", len(got), len(want))
		}
		for i, w := range want {
			if got[i] != w {
				t.Fatalf("sample[%d] = %v, want %v", i, got[i], w)
			}
		}
	})

	t.Run("pads empty with zeros", func(t *testing.T) {
		got := fitLength(nil, 3)
		for i, s := range got {
			if s != 0 {
				t.Fatalf("sample[%d] = %v, want 0", i, s)
			}
		}
	})
}

func TestResampledEnergyPreserved(t *testing.T) {
	// A 440 Hz tone keeps roughly its amplitude across conversion.
	const rate = 44100
	in := Buffer{SampleRate: rate, Channels: 1, Samples: make([]float32, rate)}
	for i := range in.Samples {
		in.Samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	out, err := Resample(in)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	var peak float64
	for _, s := range out.Samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak < 0.4 || peak > 0.6 {
		t.Fatalf("peak after resample = %v, want about 0.5", peak)
	}
}
