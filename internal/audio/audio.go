// Package audio loads narration into mono float samples and writes normalized clips back out.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/integration/ffmpeg"
	"github.com/farcloser/cadence/internal/integration/ffprobe"
	"github.com/farcloser/cadence/internal/types"
)

var (
	// ErrUnsupported means the input is not something this package decodes natively.
	ErrUnsupported = errors.New("unsupported audio encoding")
	// ErrEmpty means the input decoded to zero samples.
	ErrEmpty = errors.New("no audio samples")
)

// Track is decoded mono audio.
type Track struct {
	Samples    []float64
	SampleRate int
	// Channels and BitDepth describe the source before downmix; BitDepth is zero for compressed input.
	Channels int
	BitDepth int
}

// Duration in seconds.
func (t *Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}

	return float64(len(t.Samples)) / float64(t.SampleRate)
}

// Load decodes path. PCM WAV files are read in process; anything else is probed with ffprobe and
// extracted with ffmpeg at its native sample rate.
func Load(ctx context.Context, path string) (*Track, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		track, err := ReadWAVFile(path)
		if err == nil {
			return track, nil
		}

		if !errors.Is(err, ErrUnsupported) {
			return nil, err
		}

		slog.Debug("audio.Load", "path", path, "fallback", "ffmpeg", "reason", err)
	}

	return extract(ctx, path)
}

func extract(ctx context.Context, path string) (*Track, error) {
	probed, err := ffprobe.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	stream, err := probed.Audio()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rate := stream.Rate()
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %s: sample rate %q", fault.ErrReadFailure, path, stream.SampleRate)
	}

	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer file.Close()

	samples, err := ffmpeg.ExtractMono(ctx, file, rate)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	return &Track{Samples: samples, SampleRate: rate, Channels: stream.Channels}, nil
}

// ReadRaw decodes headerless interleaved PCM, averaging channels.
func ReadRaw(reader io.Reader, format types.PCMFormat) (*Track, error) {
	switch format.BitDepth {
	case types.Depth16, types.Depth24, types.Depth32:
	default:
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, format.BitDepth)
	}

	if format.SampleRate <= 0 || format.Channels == 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrUnsupported, format.SampleRate, format.Channels)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	samples := shared.DecodeMono(data, format)
	if len(samples) == 0 {
		return nil, ErrEmpty
	}

	return &Track{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   int(format.Channels),  //nolint:gosec // small constant
		BitDepth:   int(format.BitDepth), //nolint:gosec // small constant
	}, nil
}
