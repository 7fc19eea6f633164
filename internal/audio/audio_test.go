package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/farcloser/cadence/internal/types"
)

func sine(n, rate int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*220*float64(i)/float64(rate))
	}

	return out
}

func TestWAVRoundTrip(t *testing.T) {
	for _, depth := range []int{16, 24} {
		path := filepath.Join(t.TempDir(), "clip.wav")
		samples := sine(4800, 24000, 0.5)
		samples[10] = 1.7 // clamped on write

		if err := WriteWAVFile(path, samples, 24000, depth); err != nil {
			t.Fatalf("WriteWAVFile(%d): %v", depth, err)
		}

		track, err := Load(context.Background(), path)
		if err != nil {
			t.Fatalf("Load(%d): %v", depth, err)
		}

		if track.SampleRate != 24000 || track.Channels != 1 || track.BitDepth != depth {
			t.Errorf("%d-bit: track = %d Hz, %d ch, %d bit", depth, track.SampleRate, track.Channels, track.BitDepth)
		}

		if len(track.Samples) != len(samples) || math.Abs(track.Duration()-0.2) > 1e-9 {
			t.Fatalf("%d-bit: %d samples", depth, len(track.Samples))
		}

		tolerance := 2 / math.Pow(2, float64(depth-1))
		for i, s := range samples {
			want := min(1, s)
			if math.Abs(track.Samples[i]-want) > tolerance {
				t.Fatalf("%d-bit: sample %d = %v, want %v", depth, i, track.Samples[i], want)
			}
		}
	}
}

func TestWriteWAVRejectsBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")

	if err := WriteWAVFile(path, []float64{0}, 24000, 8); !errors.Is(err, errBitDepth) {
		t.Errorf("err = %v, want errBitDepth", err)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	if _, err := ReadWAV(bytes.NewReader([]byte("definitely not a riff header"))); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestReadRawDownmixes(t *testing.T) {
	var buf bytes.Buffer

	// Two stereo frames: (0.5, -0.5) and (0.25, 0.75).
	for _, v := range []int16{16384, -16384, 8192, 24576} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	track, err := ReadRaw(&buf, types.PCMFormat{SampleRate: 8000, BitDepth: types.Depth16, Channels: 2})
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}

	if len(track.Samples) != 2 || track.Samples[0] != 0 || track.Samples[1] != 0.5 {
		t.Errorf("samples = %v", track.Samples)
	}
}

func TestReadRawErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format types.PCMFormat
		want   error
	}{
		{name: "bit depth", data: []byte{0, 0}, format: types.PCMFormat{SampleRate: 8000, BitDepth: 8, Channels: 1}, want: ErrUnsupported},
		{name: "no rate", data: []byte{0, 0}, format: types.PCMFormat{BitDepth: types.Depth16, Channels: 1}, want: ErrUnsupported},
		{name: "empty", format: types.PCMFormat{SampleRate: 8000, BitDepth: types.Depth16, Channels: 1}, want: ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadRaw(bytes.NewReader(tt.data), tt.format); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want a not-exist error", err)
	}
}
